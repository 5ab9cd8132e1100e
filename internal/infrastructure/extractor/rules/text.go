package rules

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var rutPattern = regexp.MustCompile(`\b(\d{1,2}\.?\d{3}\.?\d{3}-[\dkK])\b`)

// TextMatcher applies the label vocabulary to plain text recovered from a page-based document.
type TextMatcher struct {
	decimalSep rune
	dateOrder  DateOrder

	invoice    *regexp.Regexp
	date       *regexp.Regexp
	total      *regexp.Regexp
	supplier   *regexp.Regexp
	taxID      *regexp.Regexp
	exclusions []string
	products   []string
	quantities []string
}

func NewTextMatcher(r TextRules, decimalSep rune, order DateOrder) *TextMatcher {
	return &TextMatcher{
		decimalSep: decimalSep,
		dateOrder:  order,
		invoice: regexp.MustCompile(`(?i)(?:^|[^\pL])(?:` + alternation(r.InvoiceLabels) + `)` +
			`\s*(?:n[°ºo]?\.?|nro\.?|num(?:ber|ero|\.)?|#)?\s*[:#.]?\s*([A-Za-z0-9/-]*\d[A-Za-z0-9/-]*)`),
		date:     regexp.MustCompile(`(?i)(?:^|[^\pL])(?:` + alternation(r.DateLabels) + `)\s*[:.]?\s*([^\n]{0,40})`),
		total:    regexp.MustCompile(`(?i)(?:^|[^\pL])(` + alternation(r.TotalLabels) + `)\s*[:.]?\s*(?:\$|clp|usd|eur|€)?\s*(-?\d[\d.,]*)`),
		supplier: regexp.MustCompile(`(?im)^[ \t]*(?:` + alternation(r.SupplierLabels) + `)[ \t]*[:.-]?[ \t]*(.+?)[ \t]*$`),
		taxID: regexp.MustCompile(`(?i)(?:^|[^\pL])(?:` + alternation(r.TaxIDLabels) + `)\s*[:#.]?\s*([A-Za-z0-9.-]*\d[A-Za-z0-9.-]*[0-9kK])`),
		exclusions: lowerAll(r.TotalExclusions),
		products:   lowerAll(r.ProductHeaders),
		quantities: lowerAll(r.QuantityHeaders),
	}
}

func (m *TextMatcher) InvoiceNumber(text string) Field[string] {
	match := m.invoice.FindStringSubmatch(text)
	if match == nil {
		return Missing[string]()
	}
	return Found(strings.Trim(match[1], "-/"))
}

func (m *TextMatcher) DocumentDate(text string) Field[time.Time] {
	for _, match := range m.date.FindAllStringSubmatch(text, -1) {
		if f := FindDate(match[1], m.dateOrder); f.Found() {
			return f
		}
	}
	return FindDate(text, m.dateOrder)
}

// Total returns the last labelled total that is not an excluded variant such as a subtotal.
func (m *TextMatcher) Total(text string) Field[decimal.Decimal] {
	result := Missing[decimal.Decimal]()
	for _, idx := range m.total.FindAllStringSubmatchIndex(text, -1) {
		labelStart := idx[2]
		if m.excluded(text[:labelStart]) {
			continue
		}
		if f := ParseAmount(text[idx[4]:idx[5]], m.decimalSep); f.Found() {
			result = f
		}
	}
	return result
}

func (m *TextMatcher) excluded(prefix string) bool {
	prefix = strings.ToLower(strings.TrimRight(prefix, " -\t"))
	for _, ex := range m.exclusions {
		if strings.HasSuffix(prefix, ex) {
			return true
		}
	}
	return false
}

func (m *TextMatcher) SupplierName(text string) Field[string] {
	for _, match := range m.supplier.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		if strings.IndexFunc(name, unicode.IsLetter) >= 0 {
			return Found(name)
		}
	}
	return Missing[string]()
}

func (m *TextMatcher) SupplierTaxID(text string) Field[string] {
	if match := m.taxID.FindStringSubmatch(text); match != nil {
		return Found(strings.ToUpper(match[1]))
	}
	if match := rutPattern.FindStringSubmatch(text); match != nil {
		return Found(strings.ToUpper(match[1]))
	}
	return Missing[string]()
}

// TableRow is one parsed line of a tabular region.
type TableRow struct {
	Product   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// LineItems parses rows below the first header line that names both a product
// column and a quantity column. Rows end with "qty unit_price line_total".
func (m *TextMatcher) LineItems(text string) []TableRow {
	lines := strings.Split(text, "\n")
	header := -1
	for i, line := range lines {
		if m.isHeader(line) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}

	var rows []TableRow
	for _, line := range lines[header+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m.total.MatchString(trimmed) || m.startsWithTotalLabel(trimmed) {
			break
		}
		row, ok := m.parseRow(trimmed)
		if !ok {
			if len(rows) > 0 {
				break
			}
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (m *TextMatcher) isHeader(line string) bool {
	lower := strings.ToLower(line)
	return containsAny(lower, m.products) && containsAny(lower, m.quantities)
}

func (m *TextMatcher) startsWithTotalLabel(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "total") || strings.HasPrefix(lower, "subtotal") || strings.HasPrefix(lower, "sub-total")
}

func (m *TextMatcher) parseRow(line string) (TableRow, bool) {
	tokens := make([]string, 0, 8)
	for _, tok := range strings.Fields(line) {
		if isCurrencyToken(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) < 4 {
		return TableRow{}, false
	}
	n := len(tokens)
	qty, okQty := ParseQuantity(tokens[n-3], m.decimalSep).Get()
	unit, okUnit := ParseAmount(tokens[n-2], m.decimalSep).Get()
	total, okTotal := ParseAmount(tokens[n-1], m.decimalSep).Get()
	if !okQty || !okUnit || !okTotal {
		return TableRow{}, false
	}
	product := strings.Join(tokens[:n-3], " ")
	if strings.IndexFunc(product, unicode.IsLetter) < 0 {
		return TableRow{}, false
	}
	return TableRow{Product: product, Quantity: qty, UnitPrice: unit, LineTotal: total}, true
}

func isCurrencyToken(tok string) bool {
	switch strings.ToUpper(tok) {
	case "$", "€", "£", "CLP", "USD", "EUR", "UF":
		return true
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// alternation builds a regexp alternation, longest label first.
func alternation(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, 0, len(sorted))
	for _, l := range sorted {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(l), " ", `\s+`))
	}
	if len(quoted) == 0 {
		return `\x00`
	}
	return strings.Join(quoted, "|")
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
