package xscript

import (
	"testing"
	"time"
)

func TestParseCookieHeader(t *testing.T) {
	got := ParseCookieHeader("a=1; b=2 ; c=")
	want := []struct{ Name, Value string }{
		{"a", "1"},
		{"b", "2"},
		{"c", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d cookies, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cookie %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseCookieHeaderEmpty(t *testing.T) {
	if got := ParseCookieHeader(""); len(got) != 0 {
		t.Errorf("expected no cookies, got %v", got)
	}
}

func TestSetCookieHeaderFormatting(t *testing.T) {
	c := Cookie{Name: "session", Value: "abc123", Domain: "example.com", Path: "/", Secure: true}
	want := "session=abc123; domain=example.com; path=/; secure"
	if got := c.SetCookieHeader(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSetCookieHeaderWithExpires(t *testing.T) {
	exp := time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC)
	c := Cookie{Name: "id", Value: "1", Expires: exp}
	want := "id=1; expires=Wed, 02 Jan 2030 03:04:05 GMT"
	if got := c.SetCookieHeader(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSetCookieHeaderMinimal(t *testing.T) {
	c := Cookie{Name: "x", Value: "y"}
	if got := c.SetCookieHeader(); got != "x=y" {
		t.Errorf("got %q, want %q", got, "x=y")
	}
}

func TestSortCookiesByName(t *testing.T) {
	cookies := []Cookie{
		{Name: "zeta", Value: "1"},
		{Name: "alpha", Value: "2"},
		{Name: "mid", Value: "3"},
	}
	SortCookies(cookies)
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if cookies[i].Name != name {
			t.Errorf("position %d: got %q, want %q", i, cookies[i].Name, name)
		}
	}
}
