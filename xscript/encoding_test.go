package xscript

import "testing"

func TestURLEncodeDecodeRoundTrip(t *testing.T) {
	original := "hello world & friends = 100%"
	encoded := URLEncode(original)
	decoded, err := URLDecode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: got %q, want %q", decoded, original)
	}
}

func TestURLDecodeInvalidEscape(t *testing.T) {
	if _, err := URLDecode("%zz"); err == nil {
		t.Error("expected error for invalid percent-escape")
	}
}

func TestRepairUTF8ValidStringPassesThrough(t *testing.T) {
	s := "already valid utf-8"
	if got := RepairUTF8(s, nil); got != s {
		t.Errorf("got %q, want unchanged %q", got, s)
	}
}

func TestRepairUTF8ReencodesFromLegacyCharset(t *testing.T) {
	// 0xC0 in windows-1251 decodes to Cyrillic А (U+0410); as a lone byte
	// it is invalid UTF-8, so RepairUTF8 should re-map it rather than pass
	// the raw byte through or escape it.
	invalid := string([]byte{0xC0})
	got := RepairUTF8(invalid, nil)
	if got == invalid {
		t.Error("expected input to be re-encoded, not passed through unchanged")
	}
	if len(got) == 0 {
		t.Error("expected non-empty repaired string")
	}
}

func TestItoa(t *testing.T) {
	tests := map[int]string{0: "0", 7: "7", 42: "42", 12345: "12345"}
	for in, want := range tests {
		if got := itoa(in); got != want {
			t.Errorf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}
