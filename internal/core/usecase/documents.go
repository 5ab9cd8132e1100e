package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

var exportHeader = []string{
	"id", "filename", "filetype", "size_bytes", "uploaded_at", "document_date",
	"supplier", "supplier_tax_id", "invoice_number", "invoice_total",
	"page_count", "root_tag", "line_items",
}

type DocumentUseCase struct {
	repo    ports.RecordRepository
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func NewDocumentUseCase(repo ports.RecordRepository, storage ports.ObjectStorage, logger *slog.Logger) *DocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentUseCase{
		repo:    repo,
		storage: storage,
		logger:  logger,
	}
}

func (uc *DocumentUseCase) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentSummary, error) {
	docs, suppliers, err := uc.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.Summarize(doc, suppliers))
	}
	return out, nil
}

func (uc *DocumentUseCase) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Download returns the original upload bytes and the filename they arrived under.
func (uc *DocumentUseCase) Download(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get document: %w", err)
	}
	body, err := uc.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrTemporary, "open stored upload", err)
	}
	return body, doc.Filename, nil
}

func (uc *DocumentUseCase) Delete(ctx context.Context, id int64) error {
	key, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	uc.removeBlob(ctx, key)
	return nil
}

func (uc *DocumentUseCase) DeleteAll(ctx context.Context) (int, error) {
	keys, err := uc.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all documents: %w", err)
	}
	for _, key := range keys {
		uc.removeBlob(ctx, key)
	}
	return len(keys), nil
}

// ExportRows flattens the matching documents into one row each.
func (uc *DocumentUseCase) ExportRows(ctx context.Context, filter domain.DocumentFilter) ([]string, [][]string, error) {
	docs, suppliers, err := uc.load(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		s := domain.Summarize(doc, suppliers)
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Filename,
			string(s.FileType),
			strconv.FormatInt(s.SizeBytes, 10),
			s.UploadedAt.UTC().Format(time.RFC3339),
			formatDate(s.DocumentDate),
			s.SupplierName,
			s.SupplierTaxID,
			derefString(s.InvoiceNumber),
			derefDecimalString(s),
			formatInt(s.PageCount),
			derefString(s.RootTag),
			strconv.Itoa(s.LineItemCount),
		})
	}
	header := append([]string(nil), exportHeader...)
	return header, rows, nil
}

func (uc *DocumentUseCase) load(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, map[int64]domain.Supplier, error) {
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}
	docs, err := uc.repo.Query(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("query documents: %w", err)
	}
	suppliers, err := uc.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list suppliers: %w", err)
	}
	index := make(map[int64]domain.Supplier, len(suppliers))
	for _, s := range suppliers {
		index[s.ID] = s
	}
	return docs, index, nil
}

// removeBlob drops stored bytes after the record is gone; a leftover blob is
// unreachable, so failures are only logged.
func (uc *DocumentUseCase) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := uc.storage.Delete(ctx, key); err != nil {
		uc.logger.Warn("blob_delete_failed", "storage_key", key, "error", err.Error())
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefDecimalString(s domain.DocumentSummary) string {
	if s.InvoiceTotal == nil {
		return ""
	}
	return s.InvoiceTotal.String()
}
