package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

type TextRules struct {
	InvoiceLabels   []string `yaml:"invoice_labels"`
	DateLabels      []string `yaml:"date_labels"`
	TotalLabels     []string `yaml:"total_labels"`
	TotalExclusions []string `yaml:"total_exclusions"`
	SupplierLabels  []string `yaml:"supplier_labels"`
	TaxIDLabels     []string `yaml:"tax_id_labels"`
	ProductHeaders  []string `yaml:"product_headers"`
	QuantityHeaders []string `yaml:"quantity_headers"`
}

// MarkupRules lists candidate element local names in priority order.
type MarkupRules struct {
	SupplierScopes []string `yaml:"supplier_scopes"`
	ExcludedScopes []string `yaml:"excluded_scopes"`
	SupplierName   []string `yaml:"supplier_name"`
	SupplierTaxID  []string `yaml:"supplier_tax_id"`
	InvoiceNumber  []string `yaml:"invoice_number"`
	DocumentDate   []string `yaml:"document_date"`
	InvoiceTotal   []string `yaml:"invoice_total"`
	LineElements   []string `yaml:"line_elements"`
	LineProduct    []string `yaml:"line_product"`
	LineQuantity   []string `yaml:"line_quantity"`
	LineUnitPrice  []string `yaml:"line_unit_price"`
	LineTotal      []string `yaml:"line_total"`
}

type Set struct {
	Text   TextRules   `yaml:"text"`
	Markup MarkupRules `yaml:"markup"`
}

// Load reads a rule set from path, or the embedded defaults when path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return Parse(defaultRules)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read extraction rules: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode extraction rules: %w", err)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// Default returns the embedded rule set.
func Default() *Set {
	set, err := Parse(defaultRules)
	if err != nil {
		panic(err)
	}
	return set
}

func (s *Set) validate() error {
	required := map[string][]string{
		"text.invoice_labels":   s.Text.InvoiceLabels,
		"text.total_labels":     s.Text.TotalLabels,
		"text.product_headers":  s.Text.ProductHeaders,
		"text.quantity_headers": s.Text.QuantityHeaders,
		"markup.line_elements":  s.Markup.LineElements,
		"markup.line_product":   s.Markup.LineProduct,
	}
	for name, values := range required {
		if len(values) == 0 {
			return errors.New("extraction rules: " + name + " must not be empty")
		}
	}
	return nil
}
