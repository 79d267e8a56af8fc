package xscript

import "testing"

func TestRangeBytesAndString(t *testing.T) {
	r := NewRange([]byte("hello world"))
	if r.String() != "hello world" {
		t.Errorf("String() = %q", r.String())
	}
	if r.Len() != 11 {
		t.Errorf("Len() = %d, want 11", r.Len())
	}
}

func TestRangeSliceClamped(t *testing.T) {
	r := NewRange([]byte("hello"))
	if got := r.Slice(-5, 100).String(); got != "hello" {
		t.Errorf("Slice(-5,100) = %q, want hello", got)
	}
	if got := r.Slice(3, 1).String(); got != "" {
		t.Errorf("Slice(3,1) = %q, want empty", got)
	}
}

func TestRangeSplit(t *testing.T) {
	r := NewRange([]byte("a,b,,c"))
	parts := r.Split(',')
	want := []string{"a", "b", "", "c"}
	if len(parts) != len(want) {
		t.Fatalf("got %d parts, want %d", len(parts), len(want))
	}
	for i, w := range want {
		if parts[i].String() != w {
			t.Errorf("part %d = %q, want %q", i, parts[i].String(), w)
		}
	}
}

func TestRangeTrimSpace(t *testing.T) {
	r := NewRange([]byte("  \t hi there \r\n"))
	if got := r.TrimSpace().String(); got != "hi there" {
		t.Errorf("TrimSpace() = %q", got)
	}
}

func TestRangeEmpty(t *testing.T) {
	if !NewRange(nil).Empty() {
		t.Error("expected empty range for nil data")
	}
	if NewRange([]byte("x")).Empty() {
		t.Error("expected non-empty range")
	}
}

func TestRangeIndexByte(t *testing.T) {
	r := NewRange([]byte("a=b"))
	if idx := r.IndexByte('='); idx != 1 {
		t.Errorf("IndexByte('=') = %d, want 1", idx)
	}
	if idx := r.IndexByte('z'); idx != -1 {
		t.Errorf("IndexByte('z') = %d, want -1", idx)
	}
}

func TestRangeEqual(t *testing.T) {
	a := NewRange([]byte("same"))
	b := NewRange([]byte("same"))
	c := NewRange([]byte("diff"))
	if !a.Equal(b) {
		t.Error("expected equal ranges to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected different ranges to compare unequal")
	}
}
