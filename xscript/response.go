package xscript

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrHeadersSent is returned by any header/cookie/status mutation attempted
// after the response has latched (spec.md §3: "After the latch is set no
// further header/cookie/status mutation is permitted").
var ErrHeadersSent = errors.New("xscript: response headers already sent")

// BinaryWriter is implemented by a deferred, caller-owned sink a block can
// stream bytes into directly (e.g. a file block with a known finite body),
// bypassing the in-memory buffer (spec.md §3 "a single BinaryWriter owned
// deferred writer").
type BinaryWriter interface {
	io.Writer
	io.Closer
}

// Response accumulates a status, a case-insensitive header map, a cookie
// set and exactly one of {buffered byte stream, BinaryWriter}. Once Commit
// latches it, no further header/cookie/status mutation is permitted;
// remaining writes go straight through.
type Response struct {
	mu      sync.Mutex
	status  int
	headers map[string]string // lower-cased name -> value
	order   []string          // preserves header insertion order for serialization
	cookies []Cookie
	buf     bytes.Buffer
	writer  BinaryWriter
	sent    bool
}

// NewResponse returns a Response defaulted to status 200 (spec.md §3).
func NewResponse() *Response {
	return &Response{status: 200, headers: make(map[string]string)}
}

// SetStatus sets the HTTP status code. No-op error after the latch.
func (r *Response) SetStatus(code int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrHeadersSent
	}
	r.status = code
	return nil
}

// Status returns the current status code.
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetHeader sets a response header by case-insensitive name.
func (r *Response) SetHeader(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrHeadersSent
	}
	key := strings.ToLower(name)
	if _, exists := r.headers[key]; !exists {
		r.order = append(r.order, key)
	}
	r.headers[key] = value
	return nil
}

// Header returns a previously set response header.
func (r *Response) Header(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// SetCookie appends a cookie to the response's cookie set.
func (r *Response) SetCookie(c Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent {
		return ErrHeadersSent
	}
	r.cookies = append(r.cookies, c)
	return nil
}

// UseBinaryWriter switches the response to deferred-writer mode. Mutually
// exclusive with the buffered stream; must be called before any Write.
func (r *Response) UseBinaryWriter(w BinaryWriter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() > 0 {
		return errors.New("xscript: response already has buffered content")
	}
	r.writer = w
	return nil
}

// Commit latches the response: headers, status and cookies become
// immutable, and the header block is considered sent.
func (r *Response) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = true
}

// Sent reports whether Commit has been called.
func (r *Response) Sent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Write implements io.Writer: appends to the buffer, or forwards to the
// BinaryWriter if one has been installed.
func (r *Response) Write(p []byte) (int, error) {
	r.mu.Lock()
	w := r.writer
	r.mu.Unlock()
	if w != nil {
		return w.Write(p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Bytes returns the buffered body (empty if a BinaryWriter was installed).
func (r *Response) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Bytes()
}

// OrderedHeaders returns headers in first-set order, then the Set-Cookie
// lines in sorted cookie-name order (spec.md §6 serialization rule).
func (r *Response) OrderedHeaders() []struct{ Name, Value string } {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]struct{ Name, Value string }, 0, len(r.order)+len(r.cookies))
	for _, k := range r.order {
		out = append(out, struct{ Name, Value string }{k, r.headers[k]})
	}
	cookies := append([]Cookie(nil), r.cookies...)
	SortCookies(cookies)
	for _, c := range cookies {
		out = append(out, struct{ Name, Value string }{"set-cookie", c.SetCookieHeader()})
	}
	return out
}

// Close releases the BinaryWriter, if any.
func (r *Response) Close() error {
	r.mu.Lock()
	w := r.writer
	r.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}
