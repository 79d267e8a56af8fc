package xscript

import (
	"strings"
	"testing"
)

func TestParseXMLAndSerializeRoundTrip(t *testing.T) {
	src := `<page title="hi"><body>hello <b>world</b></body></page>`
	doc, err := ParseXML([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "page" {
		t.Fatalf("expected root 'page', got %q", doc.Name)
	}
	title, ok := doc.Attr("title")
	if !ok || title != "hi" {
		t.Fatalf("expected title=hi, got %q ok=%v", title, ok)
	}

	out := string(doc.Serialize())
	if !strings.Contains(out, `<page title="hi">`) {
		t.Errorf("serialized output missing root attrs: %s", out)
	}
	if !strings.Contains(out, "<b>world</b>") {
		t.Errorf("serialized output missing nested element: %s", out)
	}
}

func TestParseXMLEmptyDocumentErrors(t *testing.T) {
	if _, err := ParseXML([]byte("")); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestNodeFindPathExactSlashPath(t *testing.T) {
	doc, err := ParseXML([]byte(`<a><b><c>1</c></b><b><c>2</c></b></a>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := doc.FindPath("b/c")
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
	if found[0].InnerText() != "1" || found[1].InnerText() != "2" {
		t.Errorf("unexpected match contents: %q %q", found[0].InnerText(), found[1].InnerText())
	}
}

func TestNodeFindPathDescendantSearch(t *testing.T) {
	doc, err := ParseXML([]byte(`<a><x><y><target>here</target></y></x></a>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := doc.FindPath("//target")
	if len(found) != 1 {
		t.Fatalf("expected 1 match, got %d", len(found))
	}
	if found[0].InnerText() != "here" {
		t.Errorf("expected 'here', got %q", found[0].InnerText())
	}
}

func TestNodeFindPathNoMatchReturnsNil(t *testing.T) {
	doc, err := ParseXML([]byte(`<a><b/></a>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found := doc.FindPath("c/d"); found != nil {
		t.Errorf("expected nil, got %v", found)
	}
}

func TestNodeCloneIsDeepAndDetached(t *testing.T) {
	doc, err := ParseXML([]byte(`<a><b>x</b></a>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clone := doc.Clone()
	if clone == doc {
		t.Fatal("clone returned same pointer")
	}
	if clone.Parent != nil {
		t.Error("clone root should be detached")
	}
	clone.Children[0].SetText("changed")
	if doc.Children[0].InnerText() != "x" {
		t.Error("mutating clone affected original")
	}
}

func TestNodeAppendChildClearsText(t *testing.T) {
	n := NewElement("p")
	n.SetText("hello")
	n.AppendChild(NewText("world"))
	if n.Text != "" {
		t.Errorf("expected Text cleared after AppendChild, got %q", n.Text)
	}
	if len(n.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(n.Children))
	}
}

func TestSerializeEmptyElementSelfCloses(t *testing.T) {
	n := NewElement("br")
	out := string(n.Serialize())
	if out != "<br/>" {
		t.Errorf("expected self-closing tag, got %q", out)
	}
}

func TestSerializeEscapesAttributesAndText(t *testing.T) {
	n := NewElement("a")
	n.SetAttr("href", `"><script>`)
	n.SetText("<b>&amp;</b>")
	out := string(n.Serialize())
	if strings.Contains(out, `href="">"`) {
		t.Errorf("attribute not escaped: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("text not escaped: %s", out)
	}
}
