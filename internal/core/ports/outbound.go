package ports

import (
	"context"
	"io"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// RecordRepository persists extracted documents, their line items and suppliers.
type RecordRepository interface {
	Insert(ctx context.Context, doc *domain.Document, supplier *domain.Supplier) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	Query(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)
	Delete(ctx context.Context, id int64) (string, error)
	DeleteAll(ctx context.Context) ([]string, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
}

// CategoryStore keeps the product to category mapping and every label ever assigned.
type CategoryStore interface {
	Assign(ctx context.Context, products []string, category string) error
	Lookup(ctx context.Context, product string) (string, bool, error)
	Assignments(ctx context.Context) ([]domain.CategoryAssignment, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// ObjectStorage stores original upload bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces stored documents.
type EventPublisher interface {
	PublishDocumentIngested(ctx context.Context, documentID int64) error
}

// EventSubscriber consumes stored-document announcements.
type EventSubscriber interface {
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, int64) error) error
}

// FormatClassifier decides which extractor strategy applies to an upload.
type FormatClassifier interface {
	Classify(filename string, content []byte) domain.FileType
}

// Extractor recovers document metadata and line items from raw bytes.
// It fails only when the stream cannot be decoded at all.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (domain.Extraction, error)
}

// TableExporter serializes tabular rows.
type TableExporter interface {
	ContentType() string
	Extension() string
	Export(ctx context.Context, header []string, rows [][]string) ([]byte, error)
}
