package xscript

import "testing"

func TestParseHTTPDateRFC1123(t *testing.T) {
	got, ok := ParseHTTPDate("Mon, 02 Jan 2006 15:04:05 GMT")
	if !ok {
		t.Fatal("expected successful parse")
	}
	if got.Year() != 2006 || got.Month().String() != "January" || got.Day() != 2 {
		t.Errorf("unexpected parse result: %v", got)
	}
}

func TestParseHTTPDateInvalid(t *testing.T) {
	if _, ok := ParseHTTPDate("not a date"); ok {
		t.Error("expected failure for garbage input")
	}
	if _, ok := ParseHTTPDate(""); ok {
		t.Error("expected failure for empty input")
	}
}

func TestParseCookieExpiresPermissive(t *testing.T) {
	got, ok := ParseCookieExpires("2030-01-02T03:04:05Z")
	if !ok {
		t.Fatal("expected successful parse")
	}
	if got.Year() != 2030 {
		t.Errorf("expected year 2030, got %d", got.Year())
	}
}

func TestTagUndefined(t *testing.T) {
	var tag Tag
	if !tag.Undefined() {
		t.Error("zero-value Tag should be undefined")
	}
	tag.LastModified, _ = ParseHTTPDate("Mon, 02 Jan 2006 15:04:05 GMT")
	if tag.Undefined() {
		t.Error("Tag with LastModified set should not be undefined")
	}
}

func TestNewTagFromHeaders(t *testing.T) {
	tag := NewTagFromHeaders("Mon, 02 Jan 2006 15:04:05 GMT", "")
	if tag.LastModified.IsZero() {
		t.Error("expected LastModified set")
	}
	if !tag.ExpireTime.IsZero() {
		t.Error("expected ExpireTime left zero for empty header")
	}
}

func TestNewTagFromHeadersBothUnparsable(t *testing.T) {
	tag := NewTagFromHeaders("garbage", "also garbage")
	if !tag.Undefined() {
		t.Error("expected undefined tag when neither header parses")
	}
}
