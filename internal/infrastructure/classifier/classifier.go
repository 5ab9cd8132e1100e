package classifier

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

const sniffLen = 4096

var (
	pdfMagic = []byte("%PDF-")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Classifier decides a document format from the declared extension first and
// falls back to content sniffing when the extension says nothing.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(filename string, content []byte) domain.FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.FileTypePage
	case ".xml":
		return domain.FileTypeMarkup
	}
	return Sniff(content)
}

// Sniff inspects magic bytes and leading markup declarations.
func Sniff(content []byte) domain.FileType {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if bytes.HasPrefix(trimmed, pdfMagic) {
		return domain.FileTypePage
	}
	if looksLikeMarkup(head) {
		return domain.FileTypeMarkup
	}
	return domain.FileTypeUnknown
}

func looksLikeMarkup(head []byte) bool {
	switch {
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}), bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), head[:len(head)&^1])
		if err != nil {
			return false
		}
		head = decoded
	case bytes.HasPrefix(head, utf8BOM):
		head = head[len(utf8BOM):]
	}
	head = bytes.TrimLeft(head, " \t\r\n")
	if bytes.HasPrefix(head, []byte("<?xml")) {
		return true
	}
	head = skipProlog(head)
	if len(head) < 2 || head[0] != '<' {
		return false
	}
	r, _ := utf8.DecodeRune(head[1:])
	return r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r > utf8.RuneSelf
}

// skipProlog drops comments, processing instructions and a DOCTYPE ahead of
// the root element. It returns nil when a construct is not closed within head.
func skipProlog(b []byte) []byte {
	for {
		b = bytes.TrimLeft(b, " \t\r\n")
		var end int
		switch {
		case bytes.HasPrefix(b, []byte("<?")):
			end = indexAfter(b, "?>")
		case bytes.HasPrefix(b, []byte("<!--")):
			end = indexAfter(b, "-->")
		case len(b) >= 9 && bytes.EqualFold(b[:9], []byte("<!DOCTYPE")):
			end = doctypeEnd(b)
		default:
			return b
		}
		if end < 0 {
			return nil
		}
		b = b[end:]
	}
}

func indexAfter(b []byte, terminator string) int {
	i := bytes.Index(b, []byte(terminator))
	if i < 0 {
		return -1
	}
	return i + len(terminator)
}

func doctypeEnd(b []byte) int {
	gt := bytes.IndexByte(b, '>')
	lb := bytes.IndexByte(b, '[')
	if lb < 0 || (gt >= 0 && gt < lb) {
		if gt < 0 {
			return -1
		}
		return gt + 1
	}
	rb := bytes.IndexByte(b[lb:], ']')
	if rb < 0 {
		return -1
	}
	closeAt := lb + rb
	gt = bytes.IndexByte(b[closeAt:], '>')
	if gt < 0 {
		return -1
	}
	return closeAt + gt + 1
}
