package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// node is a namespace-free view of an XML element.
type node struct {
	name     string
	text     string
	children []*node
}

func hasBOM(content []byte) bool {
	return bytes.HasPrefix(content, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(content, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF})
}

// parseTree decodes the whole document. Namespaces are dropped; only local names are kept.
func parseTree(content []byte) (*node, error) {
	var (
		src io.Reader = bytes.NewReader(content)
		bom           = hasBOM(content)
	)
	if bom {
		src = transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}
	dec := xml.NewDecoder(src)
	dec.CharsetReader = func(label string, in io.Reader) (io.Reader, error) {
		// a byte order mark wins over the declared encoding; the input is UTF-8 already
		if bom {
			return in, nil
		}
		return charset.NewReaderLabel(label, in)
	}
	dec.Strict = true

	var (
		root  *node
		stack []*node
		text  strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("decode xml: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
			text.Reset()
		case xml.CharData:
			if len(stack) > 0 {
				text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("decode xml: unbalanced end element")
			}
			cur := stack[len(stack)-1]
			if len(cur.children) == 0 {
				cur.text = strings.TrimSpace(text.String())
			}
			stack = stack[:len(stack)-1]
			text.Reset()
		}
	}
	if root == nil {
		return nil, errors.New("decode xml: no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("decode xml: unexpected end of document")
	}
	return root, nil
}

func nameIn(name string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

// findFirst searches breadth-first below n for the first candidate name, trying
// candidates in priority order. Subtrees whose root is in skip are not entered.
func (n *node) findFirst(candidates []string, skip []string) *node {
	for _, candidate := range candidates {
		if found := n.bfs(func(c *node) bool {
			return strings.EqualFold(c.name, candidate) && c.text != ""
		}, skip); found != nil {
			return found
		}
	}
	return nil
}

func (n *node) bfs(match func(*node) bool, skip []string) *node {
	queue := append([]*node(nil), n.children...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if nameIn(cur.name, skip) {
			continue
		}
		if match(cur) {
			return cur
		}
		queue = append(queue, cur.children...)
	}
	return nil
}

// collect returns every element named name in document order without descending into matches.
func (n *node) collect(name string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.children {
			if strings.EqualFold(c.name, name) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}
