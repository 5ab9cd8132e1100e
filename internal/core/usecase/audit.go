package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

// AuditUseCase re-reads freshly ingested documents and reports which
// fields extraction could not recover.
type AuditUseCase struct {
	repo   ports.RecordRepository
	logger *slog.Logger
}

func NewAuditUseCase(repo ports.RecordRepository, logger *slog.Logger) *AuditUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditUseCase{repo: repo, logger: logger}
}

func (uc *AuditUseCase) AuditByID(ctx context.Context, id int64) (domain.AuditReport, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("load document %d: %w", id, err)
	}

	report := domain.AuditReport{
		DocumentID:    doc.ID,
		FileType:      doc.FileType,
		UploadedAt:    doc.UploadedAt,
		LineItems:     len(doc.LineItems),
		MissingFields: missingFields(*doc),
	}
	if report.Complete() {
		uc.logger.Info("document_audited", "document_id", id, "filetype", doc.FileType, "line_items", report.LineItems)
	} else {
		uc.logger.Warn("document_incomplete",
			"document_id", id,
			"filetype", doc.FileType,
			"line_items", report.LineItems,
			"missing_fields", report.MissingFields,
		)
	}
	return report, nil
}

func missingFields(doc domain.Document) []string {
	var missing []string
	if doc.DocumentDate == nil {
		missing = append(missing, "document_date")
	}
	if doc.SupplierID == nil {
		missing = append(missing, "supplier")
	}
	if doc.InvoiceNumber == nil {
		missing = append(missing, "invoice_number")
	}
	if doc.InvoiceTotal == nil {
		missing = append(missing, "invoice_total")
	}
	switch doc.FileType {
	case domain.FileTypePage:
		if doc.PageCount == nil {
			missing = append(missing, "page_count")
		}
	case domain.FileTypeMarkup:
		if doc.RootTag == nil {
			missing = append(missing, "root_tag")
		}
	}
	if len(doc.LineItems) == 0 {
		missing = append(missing, "line_items")
	}
	return missing
}
