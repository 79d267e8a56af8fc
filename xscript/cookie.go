package xscript

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Cookie is the (name, value, domain, path, expires, secure) tuple from
// spec.md §3. Response cookies are emitted as Set-Cookie headers in name
// order (spec.md §6).
type Cookie struct {
	Name    string
	Value   string
	Domain  string
	Path    string
	Expires time.Time // zero value means a session cookie (no Expires attribute)
	Secure  bool
}

// SetCookieHeader renders the cookie as a Set-Cookie header value:
// name=value[; domain=…][; path=…][; expires=<RFC-1123>][; secure].
func (c Cookie) SetCookieHeader() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; path=")
		b.WriteString(c.Path)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; expires=")
		b.WriteString(c.Expires.UTC().Format(http1123))
	}
	if c.Secure {
		b.WriteString("; secure")
	}
	return b.String()
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

// SortCookies orders cookies by name, as the Response requires (spec.md §6).
func SortCookies(cookies []Cookie) {
	sort.SliceStable(cookies, func(i, j int) bool {
		return cookies[i].Name < cookies[j].Name
	})
}

// ParseCookieHeader splits an HTTP_COOKIE value into raw (name,value) pairs:
// split on ';', trim, split each on the first '='. Decoding and charset
// repair are applied by the caller (Parser), per spec.md §4.1.
func ParseCookieHeader(header string) []struct{ Name, Value string } {
	var out []struct{ Name, Value string }
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		out = append(out, struct{ Name, Value string }{strings.TrimSpace(name), strings.TrimSpace(value)})
	}
	return out
}

// String implements fmt.Stringer for debug output.
func (c Cookie) String() string {
	return fmt.Sprintf("%s=%s", c.Name, c.Value)
}
