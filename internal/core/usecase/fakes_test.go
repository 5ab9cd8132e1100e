package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/repository/memory"
)

type storageFake struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{blobs: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *storageFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

type publisherFake struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (f *publisherFake) PublishDocumentIngested(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

type extensionClassifier struct{}

func (extensionClassifier) Classify(filename string, _ []byte) domain.FileType {
	switch filepath.Ext(filename) {
	case ".pdf":
		return domain.FileTypePage
	case ".xml":
		return domain.FileTypeMarkup
	default:
		return domain.FileTypeUnknown
	}
}

type extractorFake struct {
	out domain.Extraction
	err error
}

func (f extractorFake) Extract(context.Context, []byte) (domain.Extraction, error) {
	return f.out, f.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func monthDate(year int, month time.Month) *time.Time {
	t := time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
	return &t
}

func item(product, qty, total string) domain.LineItem {
	q, t := dec(qty), dec(total)
	unit := decimal.Zero
	if !q.IsZero() {
		unit = t.Div(q)
	}
	return domain.LineItem{Product: product, Quantity: q, UnitPrice: unit, LineTotal: t}
}

// seed inserts one document per call straight into the repository.
func seed(repo *memory.RecordRepository, supplier *domain.Supplier, date *time.Time, items ...domain.LineItem) int64 {
	for i := range items {
		items[i].DocumentDate = date
	}
	doc := &domain.Document{
		Filename:     "seed.xml",
		FileType:     domain.FileTypeMarkup,
		SizeBytes:    100,
		UploadedAt:   time.Now().UTC(),
		DocumentDate: date,
		LineItems:    items,
	}
	id, err := repo.Insert(context.Background(), doc, supplier)
	if err != nil {
		panic(err)
	}
	return id
}
