package classifier

import (
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

func utf16WithBOM(t *testing.T, s string) string {
	t.Helper()
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode utf-16: %v", err)
	}
	return string(out)
}

func TestClassify(t *testing.T) {
	c := New()
	cases := []struct {
		name     string
		filename string
		content  string
		want     domain.FileType
	}{
		{"pdf extension", "invoice.pdf", "anything", domain.FileTypePage},
		{"xml extension is case insensitive", "INVOICE.XML", "not really xml", domain.FileTypeMarkup},
		{"pdf magic without extension", "scan", "%PDF-1.7\n...", domain.FileTypePage},
		{"pdf magic after whitespace", "scan.bin", "\r\n %PDF-1.4", domain.FileTypePage},
		{"xml declaration", "upload", "  <?xml version=\"1.0\"?><a/>", domain.FileTypeMarkup},
		{"utf8 bom", "upload", "\xEF\xBB\xBF<?xml version=\"1.0\"?><a/>", domain.FileTypeMarkup},
		{"utf16 bom", "upload", utf16WithBOM(t, `<?xml version="1.0" encoding="UTF-16"?><Factura/>`), domain.FileTypeMarkup},
		{"utf16 bom without declaration", "upload", utf16WithBOM(t, "<Factura><Folio>1</Folio></Factura>"), domain.FileTypeMarkup},
		{"utf16 bom plain text", "upload", utf16WithBOM(t, "just words"), domain.FileTypeUnknown},
		{"leading comment", "upload", "<!-- generated -->\n<Factura><Folio>1</Folio></Factura>", domain.FileTypeMarkup},
		{"doctype", "upload", "<!DOCTYPE Factura>\n<Factura><Folio>1</Folio></Factura>", domain.FileTypeMarkup},
		{"doctype with internal subset", "upload", "<!DOCTYPE Factura [<!ENTITY x \"y\">]><Factura/>", domain.FileTypeMarkup},
		{"stylesheet instruction", "upload", "<?xml-stylesheet href=\"a.xsl\"?>\n<Factura/>", domain.FileTypeMarkup},
		{"unterminated comment", "upload", "<!-- never closed <Factura/>", domain.FileTypeUnknown},
		{"doctype without element", "upload", "<!DOCTYPE Factura> plain text", domain.FileTypeUnknown},
		{"bare root element", "upload.dat", "<Invoice><ID>1</ID></Invoice>", domain.FileTypeMarkup},
		{"plain text", "notes.txt", "just words", domain.FileTypeUnknown},
		{"empty", "empty", "", domain.FileTypeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.filename, []byte(tc.content)); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
