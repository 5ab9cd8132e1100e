package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FileType string

const (
	FileTypePage   FileType = "page"
	FileTypeMarkup FileType = "markup"
	// FileTypeUnknown is never stored; it is the classifier's rejection verdict.
	FileTypeUnknown FileType = "unrecognized"
)

func (t FileType) Valid() bool {
	return t == FileTypePage || t == FileTypeMarkup
}

type Document struct {
	ID            int64            `json:"id"`
	Filename      string           `json:"filename"`
	FileType      FileType         `json:"filetype"`
	SizeBytes     int64            `json:"size_bytes"`
	Checksum      string           `json:"checksum"`
	StorageKey    string           `json:"-"`
	UploadedAt    time.Time        `json:"uploaded_at"`
	DocumentDate  *time.Time       `json:"document_date,omitempty"`
	PageCount     *int             `json:"page_count,omitempty"`
	RootTag       *string          `json:"root_tag,omitempty"`
	SupplierID    *int64           `json:"supplier_id,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	InvoiceTotal  *decimal.Decimal `json:"invoice_total,omitempty"`
	LineItems     []LineItem       `json:"line_items"`
}

type Supplier struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	TaxID *string `json:"tax_id,omitempty"`
}

type LineItem struct {
	DocumentID   int64           `json:"document_id"`
	Position     int             `json:"position"`
	Product      string          `json:"product"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	DocumentDate *time.Time      `json:"document_date,omitempty"`
}

// Extraction is the output contract shared by every extractor strategy.
// Any field an extractor could not recover stays nil.
type Extraction struct {
	DocumentDate  *time.Time
	PageCount     *int
	RootTag       *string
	InvoiceNumber *string
	InvoiceTotal  *decimal.Decimal
	SupplierName  *string
	SupplierTaxID *string
	LineItems     []LineItem
}

// SupplierCandidate returns the supplier to upsert for an extraction, or nil
// when neither a name nor a tax identifier was found.
func (e Extraction) SupplierCandidate() *Supplier {
	if e.SupplierName == nil && e.SupplierTaxID == nil {
		return nil
	}
	s := &Supplier{TaxID: e.SupplierTaxID}
	switch {
	case e.SupplierName != nil:
		s.Name = *e.SupplierName
	default:
		s.Name = *e.SupplierTaxID
	}
	return s
}

// Upload is one file of a multi-file ingest request.
type Upload struct {
	Filename string
	Content  []byte
}

type IngestResult struct {
	Filename   string    `json:"filename"`
	DocumentID int64     `json:"document_id,omitempty"`
	FileType   FileType  `json:"filetype,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Document   *Document `json:"-"`
}

func (r IngestResult) OK() bool {
	return r.Error == ""
}

// DocumentSummary is the list/export projection of a document with its supplier resolved.
type DocumentSummary struct {
	ID            int64            `json:"id"`
	Filename      string           `json:"filename"`
	FileType      FileType         `json:"filetype"`
	SizeBytes     int64            `json:"size_bytes"`
	UploadedAt    time.Time        `json:"uploaded_at"`
	DocumentDate  *time.Time       `json:"document_date,omitempty"`
	PageCount     *int             `json:"page_count,omitempty"`
	RootTag       *string          `json:"root_tag,omitempty"`
	SupplierID    *int64           `json:"supplier_id,omitempty"`
	SupplierName  string           `json:"supplier_name,omitempty"`
	SupplierTaxID string           `json:"supplier_tax_id,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	InvoiceTotal  *decimal.Decimal `json:"invoice_total,omitempty"`
	LineItemCount int              `json:"line_item_count"`
}

func Summarize(doc Document, suppliers map[int64]Supplier) DocumentSummary {
	out := DocumentSummary{
		ID:            doc.ID,
		Filename:      doc.Filename,
		FileType:      doc.FileType,
		SizeBytes:     doc.SizeBytes,
		UploadedAt:    doc.UploadedAt,
		DocumentDate:  doc.DocumentDate,
		PageCount:     doc.PageCount,
		RootTag:       doc.RootTag,
		SupplierID:    doc.SupplierID,
		InvoiceNumber: doc.InvoiceNumber,
		InvoiceTotal:  doc.InvoiceTotal,
		LineItemCount: len(doc.LineItems),
	}
	if doc.SupplierID != nil {
		if s, ok := suppliers[*doc.SupplierID]; ok {
			out.SupplierName = s.Name
			if s.TaxID != nil {
				out.SupplierTaxID = *s.TaxID
			}
		}
	}
	return out
}
