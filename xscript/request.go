package xscript

import "strings"

// QueryArg is one (name, value) pair from a query string or form body,
// kept in an ordered list rather than a map: repeated names are legal and
// position matters for positional block parameters (spec.md §3).
type QueryArg struct {
	Name  string
	Value string
}

// UploadedFile is one part of a multipart/form-data request body.
type UploadedFile struct {
	Name        string // form field name
	Filename    string
	ContentType string
	Data        []byte
}

// Request is immutable after construction (spec.md §3): CGI-style
// variables, cookies, case-insensitive headers, ordered query arguments,
// uploaded files and the raw body. The Parser is the only producer.
type Request struct {
	Method  string
	URI     string
	Query   string
	Env     map[string]string // CGI-style variables: HTTP_*, REMOTE_ADDR, SERVER_*, ...
	Headers map[string]string // lower-cased header name -> value
	Cookies []Cookie
	Args    []QueryArg
	Files   []UploadedFile
	Body    []byte
	Host    string
	Proto   string // "http" or "https"
}

// Header returns a request header value by case-insensitive name.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// EnvVar returns a CGI-style environment variable, e.g. "HTTP_USER_AGENT".
func (r *Request) EnvVar(name string) (string, bool) {
	v, ok := r.Env[name]
	return v, ok
}

// Cookie returns the first cookie with the given name.
func (r *Request) Cookie(name string) (Cookie, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

// Arg returns the first query/form argument with the given name.
func (r *Request) Arg(name string) (string, bool) {
	for _, a := range r.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// ArgsNamed returns every value bound to name, in request order.
func (r *Request) ArgsNamed(name string) []string {
	var out []string
	for _, a := range r.Args {
		if a.Name == name {
			out = append(out, a.Value)
		}
	}
	return out
}

// IsSecure reports whether the request arrived over HTTPS, directly or via
// a trusted reverse proxy (spec.md §4.1 proxy-aware scheme detection).
func (r *Request) IsSecure() bool {
	return r.Proto == "https"
}
