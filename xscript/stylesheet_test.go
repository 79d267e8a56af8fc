package xscript

import (
	"strings"
	"testing"
	"time"
)

func newStylesheetTestContext() *Context {
	req := &Request{Args: []QueryArg{{Name: "q", Value: "v"}}}
	return NewContext(&Script{}, req, time.Second)
}

func TestStylesheetApplyIdentityWhenNoCopySelect(t *testing.T) {
	s := &Stylesheet{}
	doc := NewElement("root")
	ctx := newStylesheetTestContext()
	if got := s.Apply(ctx, doc); got != doc {
		t.Error("expected identity transform when CopySelect is empty")
	}
}

func TestStylesheetApplyCopySelectSingleMatch(t *testing.T) {
	doc, _ := ParseXML([]byte(`<root><a>one</a><b>two</b></root>`))
	s := &Stylesheet{CopySelect: "a"}
	ctx := newStylesheetTestContext()
	got := s.Apply(ctx, doc)
	if got.Name != "a" || got.InnerText() != "one" {
		t.Errorf("expected copied 'a' node, got %+v", got)
	}
}

func TestStylesheetApplyCopySelectNoMatchReturnsEmptyResult(t *testing.T) {
	doc, _ := ParseXML([]byte(`<root><a>one</a></root>`))
	s := &Stylesheet{CopySelect: "missing"}
	ctx := newStylesheetTestContext()
	got := s.Apply(ctx, doc)
	if got.Name != "result" || len(got.Children) != 0 {
		t.Errorf("expected empty <result/>, got %+v", got)
	}
}

func TestStylesheetContentTypeDefault(t *testing.T) {
	s := &Stylesheet{}
	if got := s.ContentType(); got != "text/xml" {
		t.Errorf("got %q, want text/xml", got)
	}
	s2 := &Stylesheet{MediaType: "application/xhtml+xml"}
	if got := s2.ContentType(); got != "application/xhtml+xml" {
		t.Errorf("got %q, want application/xhtml+xml", got)
	}
}

func TestExtHTTPRedirectSetsStatusAndLocation(t *testing.T) {
	ctx := newStylesheetTestContext()
	if err := ExtHTTPRedirect(ctx, "https://example.com/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Resp.Status() != 302 {
		t.Errorf("status = %d, want 302", ctx.Resp.Status())
	}
	if loc, ok := ctx.Resp.Header("Location"); !ok || loc != "https://example.com/" {
		t.Errorf("Location = %q, ok=%v", loc, ok)
	}
}

func TestExtGetQueryArg(t *testing.T) {
	ctx := newStylesheetTestContext()
	if got := ExtGetQueryArg(ctx, "q"); got != "v" {
		t.Errorf("got %q, want v", got)
	}
	if got := ExtGetQueryArg(ctx, "missing"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestExtMD5KnownValue(t *testing.T) {
	if got := ExtMD5(""); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("md5('') = %q, want d41d8cd98f00b204e9800998ecf8427e", got)
	}
}

func TestExtJSQuoteEscapesQuotesAndBackslashes(t *testing.T) {
	got := ExtJSQuote(`it's a "test"\`)
	if !strings.HasPrefix(got, "'") || !strings.HasSuffix(got, "'") {
		t.Fatalf("expected single-quoted output, got %q", got)
	}
	if !strings.Contains(got, `\'`) {
		t.Errorf("expected escaped apostrophe, got %q", got)
	}
}

func TestExtJSONQuoteEscapesControlChars(t *testing.T) {
	got := ExtJSONQuote("line1\nline2\ttabbed\"quoted\"")
	if !strings.Contains(got, `\n`) || !strings.Contains(got, `\t`) || !strings.Contains(got, `\"`) {
		t.Errorf("expected escaped control chars, got %q", got)
	}
}

func TestExtWBRInsertsMarkerEveryNChars(t *testing.T) {
	got := ExtWBR("abcdef", 2)
	want := "ab<wbr/>cd<wbr/>ef"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtWBRNonPositiveNReturnsUnchanged(t *testing.T) {
	if got := ExtWBR("abc", 0); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
}

func TestExtNL2BR(t *testing.T) {
	got := ExtNL2BR("a\nb")
	if got != "a<br/>\nb" {
		t.Errorf("got %q", got)
	}
}

func TestExtIf(t *testing.T) {
	if got := ExtIf(true, "yes", "no"); got != "yes" {
		t.Errorf("got %q, want yes", got)
	}
	if got := ExtIf(false, "yes", "no"); got != "no" {
		t.Errorf("got %q, want no", got)
	}
}

func TestExtSetStateStringWritesState(t *testing.T) {
	ctx := newStylesheetTestContext()
	ExtSetStateString(ctx, "key", "value")
	if got := ctx.State.Get("key"); got != "value" {
		t.Errorf("got %q, want value", got)
	}
}
