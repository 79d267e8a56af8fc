package xscript

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Node is a minimal in-memory XML tree, standing in for the full external
// DOM/XPath/XSLT library spec.md assumes is already present (spec.md §2
// "Non-goals": the XML parser, XPath engine and XSLT processor themselves
// are out of scope). It carries just enough shape — elements, attributes,
// ordered children, text — for block output, XPointer splicing and the
// reduced XPath subset Stylesheet and Script need (spec.md §4.5, §4.8).
type Node struct {
	Name     string
	Attrs    []Attr
	Children []*Node
	Text     string // only meaningful when Children is empty
	Parent   *Node
}

// Attr is a single XML attribute, kept in an ordered slice rather than a
// map so serialization is deterministic.
type Attr struct {
	Name  string
	Value string
}

// NewElement returns a detached element node with the given local name.
func NewElement(name string) *Node {
	return &Node{Name: name}
}

// NewText returns a detached text node (represented as an unnamed node
// whose Text is set).
func NewText(text string) *Node {
	return &Node{Text: text}
}

// SetAttr sets (or replaces) an attribute value.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Attr returns an attribute's value and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetText replaces the node's children with a single text node.
func (n *Node) SetText(text string) {
	n.Children = nil
	n.Text = text
}

// AppendChild appends a child node, setting its Parent.
func (n *Node) AppendChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
	n.Text = ""
}

// IsText reports whether this node is a text leaf (no Name, no Children).
func (n *Node) IsText() bool {
	return n.Name == "" && len(n.Children) == 0
}

// InnerText concatenates all descendant text content, depth-first.
func (n *Node) InnerText() string {
	if n.IsText() {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.InnerText())
	}
	return b.String()
}

// Clone deep-copies the subtree rooted at n, detached from any parent.
func (n *Node) Clone() *Node {
	cp := &Node{Name: n.Name, Text: n.Text}
	cp.Attrs = append(cp.Attrs, n.Attrs...)
	for _, c := range n.Children {
		cc := c.Clone()
		cc.Parent = cp
		cp.Children = append(cp.Children, cc)
	}
	return cp
}

// ParseXML parses an XML byte stream into a single root Node, via
// encoding/xml — the stdlib is the right tool here since the spec's
// "abstract DOM library" assumption covers parsing fidelity, not a
// particular third-party implementation, and the pack carries no XML/XSLT
// library of its own to prefer over it (see DESIGN.md).
func ParseXML(data []byte) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	var stack []*Node
	var root *Node
	for {
		tok, err := dec.Token()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, fmt.Errorf("xscript: xml parse: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := NewElement(t.Name.Local)
			for _, a := range t.Attr {
				n.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) > 0 {
				stack[len(stack)-1].AppendChild(n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				text := string(t)
				if strings.TrimSpace(text) == "" {
					continue
				}
				stack[len(stack)-1].AppendChild(NewText(text))
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("xscript: empty document")
	}
	return root, nil
}

// Serialize renders the subtree as well-formed XML.
func (n *Node) Serialize() []byte {
	var b strings.Builder
	n.writeTo(&b)
	return []byte(b.String())
}

func (n *Node) writeTo(b *strings.Builder) {
	if n.IsText() {
		xml.EscapeText(b2w{b}, []byte(n.Text))
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Name)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		xml.EscapeText(b2w{b}, []byte(a.Value))
		b.WriteString(`"`)
	}
	if len(n.Children) == 0 && n.Text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if len(n.Children) == 0 {
		xml.EscapeText(b2w{b}, []byte(n.Text))
	}
	for _, c := range n.Children {
		c.writeTo(b)
	}
	b.WriteString("</")
	b.WriteString(n.Name)
	b.WriteByte('>')
}

// b2w adapts *strings.Builder to io.Writer for xml.EscapeText.
type b2w struct{ b *strings.Builder }

func (w b2w) Write(p []byte) (int, error) { return w.b.Write(p) }

// FindPath resolves a reduced XPath-like path understood by XPointer
// splicing and Stylesheet copy-select directives (spec.md §4.5, §4.8):
// an exact slash-separated tag path ("a/b/c") or a leading "//tag"
// descendant search. This is intentionally not a general XPath engine —
// just the subset the spec's testable scenarios exercise.
func (n *Node) FindPath(path string) []*Node {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "//") {
		return n.descendantsNamed(strings.TrimPrefix(path, "//"))
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	current := []*Node{n}
	for _, part := range parts {
		var next []*Node
		for _, cur := range current {
			for _, c := range cur.Children {
				if c.Name == part {
					next = append(next, c)
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

func (n *Node) descendantsNamed(name string) []*Node {
	var out []*Node
	if n.Name == name {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, c.descendantsNamed(name)...)
	}
	return out
}
