package xscript

import (
	"strings"
	"testing"
)

func TestSanitizeHTMLStripsScriptAndStyle(t *testing.T) {
	input := `<html><body><p>hi</p><script>alert(1)</script><style>p{color:red}</style></body></html>`
	got := SanitizeHTML(input, 0)
	if strings.Contains(got, "alert") {
		t.Errorf("expected script content stripped, got %q", got)
	}
	if strings.Contains(got, "color:red") {
		t.Errorf("expected style content stripped, got %q", got)
	}
	if !strings.Contains(got, "hi") {
		t.Errorf("expected paragraph text retained, got %q", got)
	}
}

func TestSanitizeHTMLStripsComments(t *testing.T) {
	input := `<p>visible<!-- secret --></p>`
	got := SanitizeHTML(input, 0)
	if strings.Contains(got, "secret") {
		t.Errorf("expected comment stripped, got %q", got)
	}
}

func TestSanitizeHTMLLineLimit(t *testing.T) {
	input := "<p>one\ntwo\nthree\nfour</p>"
	got := SanitizeHTML(input, 1)
	if strings.Contains(got, "four") {
		t.Errorf("expected output truncated by line limit, got %q", got)
	}
}
