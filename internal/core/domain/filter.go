package domain

import (
	"errors"
	"slices"
	"strings"
)

// DocumentFilter selects documents. Components compose with AND and an empty
// component matches everything.
type DocumentFilter struct {
	IDs             []int64
	SupplierIDs     []int64
	Types           []FileType
	InvoiceContains string
	From            *Month
	To              *Month
}

func (f DocumentFilter) Validate() error {
	for _, t := range f.Types {
		if !t.Valid() {
			return WrapError(ErrInvalidInput, "validate filter", errors.New("unknown document type "+string(t)))
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return WrapError(ErrInvalidInput, "validate filter", errors.New("date range end precedes start"))
	}
	return nil
}

func (f DocumentFilter) Matches(doc Document) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, doc.ID) {
		return false
	}
	if len(f.SupplierIDs) > 0 {
		if doc.SupplierID == nil || !slices.Contains(f.SupplierIDs, *doc.SupplierID) {
			return false
		}
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, doc.FileType) {
		return false
	}
	if needle := strings.TrimSpace(f.InvoiceContains); needle != "" {
		if doc.InvoiceNumber == nil || !strings.Contains(strings.ToLower(*doc.InvoiceNumber), strings.ToLower(needle)) {
			return false
		}
	}
	if f.From != nil || f.To != nil {
		if doc.DocumentDate == nil {
			return false
		}
		m := MonthOf(*doc.DocumentDate)
		if f.From != nil && m.Before(*f.From) {
			return false
		}
		if f.To != nil && f.To.Before(m) {
			return false
		}
	}
	return true
}

// Apply returns the matching documents, preserving input order.
func (f DocumentFilter) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if f.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}
