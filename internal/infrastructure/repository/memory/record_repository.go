package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// RecordRepository keeps documents, line items and suppliers in process memory.
// Every mutation holds the write lock, so id assignment and delete-all are atomic
// with respect to concurrent inserts and queries.
type RecordRepository struct {
	mu sync.RWMutex

	nextDocumentID int64
	nextSupplierID int64

	documents []domain.Document
	suppliers []domain.Supplier
}

func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

func (r *RecordRepository) Insert(_ context.Context, doc *domain.Document, supplier *domain.Supplier) (int64, error) {
	if doc == nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "insert document", fmt.Errorf("document is nil"))
	}
	if !doc.FileType.Valid() {
		return 0, domain.WrapError(domain.ErrInvalidInput, "insert document", fmt.Errorf("filetype %q", doc.FileType))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneDocument(*doc)
	if supplier != nil {
		id := r.upsertSupplierLocked(*supplier)
		stored.SupplierID = &id
	}

	r.nextDocumentID++
	stored.ID = r.nextDocumentID
	for i := range stored.LineItems {
		stored.LineItems[i].DocumentID = stored.ID
		stored.LineItems[i].Position = i
	}
	r.documents = append(r.documents, stored)

	doc.ID = stored.ID
	doc.SupplierID = stored.SupplierID
	return stored.ID, nil
}

// upsertSupplierLocked applies the merge policy: tax id match, then name match, else create.
// Suppliers that both carry a tax id are never merged by name.
func (r *RecordRepository) upsertSupplierLocked(candidate domain.Supplier) int64 {
	candidateHasTaxID := hasTaxID(candidate.TaxID)
	if candidateHasTaxID {
		for _, s := range r.suppliers {
			if s.TaxID != nil && strings.EqualFold(*s.TaxID, *candidate.TaxID) {
				return s.ID
			}
		}
	}
	name := strings.TrimSpace(candidate.Name)
	if name != "" {
		for i, s := range r.suppliers {
			if !strings.EqualFold(s.Name, name) {
				continue
			}
			if candidateHasTaxID && hasTaxID(s.TaxID) {
				continue
			}
			if candidateHasTaxID {
				taxID := *candidate.TaxID
				r.suppliers[i].TaxID = &taxID
			}
			return s.ID
		}
	}

	r.nextSupplierID++
	created := domain.Supplier{ID: r.nextSupplierID, Name: name}
	if candidateHasTaxID {
		taxID := *candidate.TaxID
		created.TaxID = &taxID
	}
	r.suppliers = append(r.suppliers, created)
	return created.ID
}

func hasTaxID(taxID *string) bool {
	return taxID != nil && strings.TrimSpace(*taxID) != ""
}

func (r *RecordRepository) GetByID(_ context.Context, id int64) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, doc := range r.documents {
		if doc.ID == id {
			out := cloneDocument(doc)
			return &out, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%d", id))
}

func (r *RecordRepository) Query(_ context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Document, 0, len(r.documents))
	for _, doc := range r.documents {
		if filter.Matches(doc) {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

func (r *RecordRepository) Delete(_ context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, doc := range r.documents {
		if doc.ID == id {
			r.documents = append(r.documents[:i:i], r.documents[i+1:]...)
			return doc.StorageKey, nil
		}
	}
	return "", domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%d", id))
}

func (r *RecordRepository) DeleteAll(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.documents))
	for _, doc := range r.documents {
		keys = append(keys, doc.StorageKey)
	}
	r.documents = nil
	return keys, nil
}

func (r *RecordRepository) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Supplier, len(r.suppliers))
	copy(out, r.suppliers)
	return out, nil
}

func cloneDocument(doc domain.Document) domain.Document {
	out := doc
	out.LineItems = make([]domain.LineItem, len(doc.LineItems))
	copy(out.LineItems, doc.LineItems)
	return out
}
