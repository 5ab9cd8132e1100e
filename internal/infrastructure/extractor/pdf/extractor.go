package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/extractor/rules"
)

// Extractor reads page-based documents. Only an unreadable stream is an error;
// every field the text layer does not yield stays nil.
type Extractor struct {
	matcher *rules.TextMatcher
	logger  *slog.Logger
}

func NewExtractor(set *rules.Set, decimalSep rune, order rules.DateOrder, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		matcher: rules.NewTextMatcher(set.Text, decimalSep, order),
		logger:  logger,
	}
}

func (e *Extractor) Extract(_ context.Context, content []byte) (domain.Extraction, error) {
	reader, pages, err := open(content)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrUndecodableStream, "extract pdf", err)
	}

	out := domain.Extraction{PageCount: &pages}
	text, err := plainText(reader, pages)
	if err != nil {
		e.logger.Warn("pdf_text_unavailable", "pages", pages, "error", err)
		return out, nil
	}
	return e.FromText(text, out), nil
}

// FromText fills the text-derived fields of out.
func (e *Extractor) FromText(text string, out domain.Extraction) domain.Extraction {
	date := e.matcher.DocumentDate(text)
	out.DocumentDate = date.Ptr()
	out.InvoiceNumber = e.matcher.InvoiceNumber(text).Ptr()
	out.InvoiceTotal = e.matcher.Total(text).Ptr()
	out.SupplierName = e.matcher.SupplierName(text).Ptr()
	out.SupplierTaxID = e.matcher.SupplierTaxID(text).Ptr()

	rows := e.matcher.LineItems(text)
	out.LineItems = make([]domain.LineItem, 0, len(rows))
	for i, row := range rows {
		out.LineItems = append(out.LineItems, domain.LineItem{
			Position:     i,
			Product:      row.Product,
			Quantity:     row.Quantity,
			UnitPrice:    row.UnitPrice,
			LineTotal:    row.LineTotal,
			DocumentDate: out.DocumentDate,
		})
	}
	return out
}

// open guards the parser: malformed cross-reference data can panic inside the library.
func open(content []byte) (reader *pdf.Reader, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reader, pages, err = nil, 0, fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	if len(content) == 0 {
		return nil, 0, errors.New("empty stream")
	}
	reader, err = pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()
	if pages <= 0 {
		return nil, 0, errors.New("pdf has no pages")
	}
	return reader, pages, nil
}

func plainText(reader *pdf.Reader, pages int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("pdf text panic: %v", rec)
		}
	}()

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		sort.SliceStable(rows, func(x, y int) bool { return rows[x].Position > rows[y].Position })
		for _, row := range rows {
			b.WriteString(joinRow(row.Content))
			b.WriteByte('\n')
		}
	}
	if strings.TrimSpace(b.String()) != "" {
		return b.String(), nil
	}

	// some producers emit no row geometry; fall back to the flat text stream
	flat, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	raw, err := io.ReadAll(flat)
	if err != nil {
		return "", fmt.Errorf("read plain text: %w", err)
	}
	return string(raw), nil
}

// joinRow glues glyph runs that touch and separates runs with a visible gap.
func joinRow(words pdf.TextHorizontal) string {
	var b strings.Builder
	prevEnd := 0.0
	for i, w := range words {
		if i > 0 {
			gap := w.X - prevEnd
			if gap > w.FontSize*0.2 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.S)
		prevEnd = w.X + w.W
	}
	return b.String()
}
