package xscript

import "testing"

func TestJSONToXMLObjectKeysSortedAndNested(t *testing.T) {
	doc, err := JSONToXML("root", []byte(`{"b": "two", "a": {"nested": "value"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "root" {
		t.Fatalf("expected root element, got %q", doc.Name)
	}
	if len(doc.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(doc.Children))
	}
	if doc.Children[0].Name != "a" || doc.Children[1].Name != "b" {
		t.Errorf("expected sorted key order a,b; got %q,%q", doc.Children[0].Name, doc.Children[1].Name)
	}
	nested := doc.Children[0].FindPath("nested")
	if len(nested) != 1 || nested[0].InnerText() != "value" {
		t.Errorf("expected nested/value, got %+v", nested)
	}
}

func TestJSONToXMLArrayBecomesItemElements(t *testing.T) {
	doc, err := JSONToXML("root", []byte(`{"list": [1, 2, 3]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := doc.FindPath("list")
	if len(list) != 1 {
		t.Fatalf("expected one 'list' element, got %d", len(list))
	}
	items := list[0].FindPath("//item")
	if len(items) != 3 {
		t.Fatalf("expected 3 item elements, got %d", len(items))
	}
	if items[0].InnerText() != "1" {
		t.Errorf("expected first item '1', got %q", items[0].InnerText())
	}
}

func TestJSONToXMLInvalidInput(t *testing.T) {
	if _, err := JSONToXML("root", []byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestJSONToXMLNullLeavesEmpty(t *testing.T) {
	doc, err := JSONToXML("root", []byte(`{"x": null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x := doc.FindPath("x")
	if len(x) != 1 {
		t.Fatalf("expected x element, got %d", len(x))
	}
	if x[0].InnerText() != "" {
		t.Errorf("expected empty text for null, got %q", x[0].InnerText())
	}
}
