package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

type IngestUseCase struct {
	classifier  ports.FormatClassifier
	extractors  map[domain.FileType]ports.Extractor
	repo        ports.RecordRepository
	storage     ports.ObjectStorage
	events      ports.EventPublisher
	parallelism int
	logger      *slog.Logger
	now         func() time.Time
}

func NewIngestUseCase(
	classifier ports.FormatClassifier,
	extractors map[domain.FileType]ports.Extractor,
	repo ports.RecordRepository,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	parallelism int,
	logger *slog.Logger,
) *IngestUseCase {
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		classifier:  classifier,
		extractors:  extractors,
		repo:        repo,
		storage:     storage,
		events:      events,
		parallelism: parallelism,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IngestBatch processes every upload independently. Results keep the input
// order and a failing file never stops the others.
func (uc *IngestUseCase) IngestBatch(ctx context.Context, uploads []domain.Upload) []domain.IngestResult {
	results := make([]domain.IngestResult, len(uploads))

	var g errgroup.Group
	g.SetLimit(uc.parallelism)
	for i, upload := range uploads {
		g.Go(func() error {
			results[i] = uc.ingestOne(ctx, upload)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (uc *IngestUseCase) ingestOne(ctx context.Context, upload domain.Upload) domain.IngestResult {
	result := domain.IngestResult{Filename: upload.Filename}

	doc, err := uc.ingest(ctx, upload)
	if err != nil {
		result.Error = err.Error()
		result.Reason = domain.FailureReason(err)
		if doc != nil {
			result.FileType = doc.FileType
		}
		uc.logger.Warn("document_rejected",
			"filename", upload.Filename,
			"reason", result.Reason,
			"error", err.Error(),
		)
		return result
	}

	result.DocumentID = doc.ID
	result.FileType = doc.FileType
	result.Document = doc
	uc.logger.Info("document_ingested",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"filetype", string(doc.FileType),
		"line_items", len(doc.LineItems),
	)
	return result
}

// ingest returns the partially built document alongside an error once the
// file type is known, so the caller can report it.
func (uc *IngestUseCase) ingest(ctx context.Context, upload domain.Upload) (*domain.Document, error) {
	if len(upload.Content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest upload", errors.New("file is empty"))
	}

	fileType := uc.classifier.Classify(upload.Filename, upload.Content)
	extractor, ok := uc.extractors[fileType]
	if !fileType.Valid() || !ok {
		return nil, domain.WrapError(domain.ErrUnrecognizedFormat, "classify upload", fmt.Errorf("cannot determine format of %q", upload.Filename))
	}
	doc := &domain.Document{Filename: upload.Filename, FileType: fileType}

	extraction, err := extractor.Extract(ctx, upload.Content)
	if err != nil {
		if domain.FailureReason(err) == "internal_error" {
			err = domain.WrapError(domain.ErrUndecodableStream, "extract upload", err)
		}
		return doc, err
	}

	sum := sha256.Sum256(upload.Content)
	doc.SizeBytes = int64(len(upload.Content))
	doc.Checksum = hex.EncodeToString(sum[:])
	doc.StorageKey = fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(upload.Filename))
	doc.UploadedAt = uc.now()
	doc.DocumentDate = extraction.DocumentDate
	doc.PageCount = extraction.PageCount
	doc.RootTag = extraction.RootTag
	doc.InvoiceNumber = extraction.InvoiceNumber
	doc.InvoiceTotal = extraction.InvoiceTotal
	doc.LineItems = make([]domain.LineItem, 0, len(extraction.LineItems))
	for i, item := range extraction.LineItems {
		item.Position = i
		item.DocumentDate = extraction.DocumentDate
		doc.LineItems = append(doc.LineItems, item)
	}

	if err := uc.storage.Save(ctx, doc.StorageKey, bytes.NewReader(upload.Content)); err != nil {
		return doc, domain.WrapError(domain.ErrTemporary, "save upload", err)
	}

	if _, err := uc.repo.Insert(ctx, doc, extraction.SupplierCandidate()); err != nil {
		if delErr := uc.storage.Delete(ctx, doc.StorageKey); delErr != nil {
			uc.logger.Warn("blob_delete_failed", "storage_key", doc.StorageKey, "error", delErr.Error())
		}
		if domain.FailureReason(err) == "internal_error" {
			err = domain.WrapError(domain.ErrTemporary, "insert document", err)
		}
		return doc, err
	}

	if err := uc.events.PublishDocumentIngested(ctx, doc.ID); err != nil {
		uc.logger.Warn("event_publish_failed",
			"document_id", doc.ID,
			"temporary", domain.IsKind(err, domain.ErrTemporary),
			"error", err.Error(),
		)
	}
	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}
