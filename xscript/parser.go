package xscript

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// headerRangeSize bounds the truncation applied to header values embedding
// CR/LF (spec.md §4.1 "embedded CR/LF in a header value truncate the
// value at the first occurrence") and to cookie header keys
// (original_source HEADER_RANGE, see DESIGN.md §10 and REDESIGN FLAGS).
const headerRangeSize = 8192

// ParserOptions configures the legacy-encoding fallback used when a
// header/cookie/arg value fails UTF-8 validation (spec.md §4.1).
type ParserOptions struct {
	LegacyCharset *charmap.Charmap // default charmap.Windows1251
	Body          []byte           // pre-read request body, for POST/PUT/multipart
}

// ParseRequest builds a Request from a CGI-style environment map plus the
// raw body, per spec.md §4.1. env keys follow the CGI convention:
// REQUEST_METHOD, QUERY_STRING, CONTENT_TYPE, CONTENT_LENGTH, HTTP_*, etc.
func ParseRequest(env map[string]string, opts ParserOptions) (*Request, error) {
	legacy := opts.LegacyCharset
	if legacy == nil {
		legacy = charmap.Windows1251
	}

	req := &Request{
		Method:  env["REQUEST_METHOD"],
		Query:   env["QUERY_STRING"],
		Env:     make(map[string]string, len(env)),
		Headers: make(map[string]string),
	}
	if v, ok := env["HTTPS"]; ok && (v == "on" || v == "1") {
		req.Proto = "https"
	} else {
		req.Proto = "http"
	}
	req.URI = env["SCRIPT_NAME"] + env["PATH_INFO"]
	if req.Query != "" {
		req.URI += "?" + req.Query
	}

	for k, v := range env {
		if strings.HasPrefix(k, "HTTP_") {
			name := headerNameFromEnvKey(k)
			req.Headers[strings.ToLower(name)] = repairAndTruncate(v, legacy)
			continue
		}
		req.Env[k] = v
	}
	if host, ok := req.Headers["host"]; ok {
		req.Host = host
	}

	if ck, ok := env["HTTP_COOKIE"]; ok {
		req.Cookies = parseCookies(ck, legacy)
	}

	contentType := env["CONTENT_TYPE"]
	body := opts.Body

	switch req.Method {
	case "POST", "PUT":
		if cl, ok := env["CONTENT_LENGTH"]; ok {
			n, err := strconv.Atoi(cl)
			if err == nil && len(body) < n {
				return nil, fmt.Errorf("xscript: short read: content-length=%d got=%d", n, len(body))
			}
			if err == nil {
				body = body[:n]
			}
		}
		req.Body = body
		if strings.HasPrefix(contentType, "multipart/form-data") {
			boundary := extractBoundary(contentType)
			args, files, err := parseMultipart(body, boundary)
			if err != nil {
				return nil, err
			}
			req.Args = args
			req.Files = files
		} else {
			req.Args = append(req.Args, parseArgString(string(body), legacy)...)
		}
	default:
		req.Args = append(req.Args, parseArgString(req.Query, legacy)...)
	}

	return req, nil
}

func headerNameFromEnvKey(key string) string {
	name := strings.TrimPrefix(key, "HTTP_")
	name = strings.ReplaceAll(name, "_", "-")
	return name
}

func repairAndTruncate(v string, legacy *charmap.Charmap) string {
	if i := strings.IndexAny(v, "\r\n"); i >= 0 {
		v = v[:i]
	}
	if len(v) > headerRangeSize {
		v = v[:headerRangeSize]
	}
	return RepairUTF8(v, legacy)
}

func parseCookies(header string, legacy *charmap.Charmap) []Cookie {
	var out []Cookie
	for _, raw := range ParseCookieHeader(header) {
		name, _ := URLDecode(raw.Name)
		value, _ := URLDecode(raw.Value)
		out = append(out, Cookie{
			Name:  RepairUTF8(name, legacy),
			Value: RepairUTF8(value, legacy),
		})
	}
	return out
}

func extractBoundary(contentType string) string {
	idx := strings.Index(contentType, "boundary=")
	if idx < 0 {
		return ""
	}
	b := strings.TrimSpace(contentType[idx+len("boundary="):])
	b = strings.Trim(b, `"`)
	return "--" + b
}

// parseMultipart walks a multipart/form-data body: each part's headers
// are terminated by "\r\n\r\n"; a part with a filename attribute becomes
// a file entry, otherwise an ordinary arg (spec.md §4.1).
func parseMultipart(body []byte, boundary string) ([]QueryArg, []UploadedFile, error) {
	if boundary == "" {
		return nil, nil, fmt.Errorf("xscript: multipart body with no boundary")
	}
	var args []QueryArg
	var files []UploadedFile

	parts := strings.Split(string(body), boundary)
	for _, part := range parts {
		part = strings.TrimPrefix(part, "\r\n")
		part = strings.TrimSuffix(part, "\r\n")
		if part == "" || part == "--" {
			continue
		}
		headerEnd := strings.Index(part, "\r\n\r\n")
		if headerEnd < 0 {
			continue
		}
		headerBlock := part[:headerEnd]
		content := part[headerEnd+4:]
		content = strings.TrimSuffix(content, "--")

		disposition := ""
		contentType := ""
		for _, line := range strings.Split(headerBlock, "\r\n") {
			lower := strings.ToLower(line)
			if strings.HasPrefix(lower, "content-disposition:") {
				disposition = line
			}
			if strings.HasPrefix(lower, "content-type:") {
				contentType = strings.TrimSpace(line[len("content-type:"):])
			}
		}
		name := dispositionParam(disposition, "name")
		filename, hasFile := dispositionParamOK(disposition, "filename")
		if hasFile {
			files = append(files, UploadedFile{Name: name, Filename: filename, ContentType: contentType, Data: []byte(content)})
		} else {
			args = append(args, QueryArg{Name: name, Value: content})
		}
	}
	return args, files, nil
}

func dispositionParam(disposition, key string) string {
	v, _ := dispositionParamOK(disposition, key)
	return v
}

func dispositionParamOK(disposition, key string) (string, bool) {
	marker := key + "=\""
	idx := strings.Index(disposition, marker)
	if idx < 0 {
		return "", false
	}
	rest := disposition[idx+len(marker):]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// parseArgString parses "&"/";"-separated k=v pairs from a query string
// or body (spec.md §4.1 final bullet).
func parseArgString(s string, legacy *charmap.Charmap) []QueryArg {
	if s == "" {
		return nil
	}
	var out []QueryArg
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '&' || r == ';' }) {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		dn, _ := URLDecode(name)
		dv, _ := URLDecode(value)
		out = append(out, QueryArg{Name: RepairUTF8(dn, legacy), Value: RepairUTF8(dv, legacy)})
	}
	return out
}

// NormalizeHeaderName capitalizes each "-"-separated component:
// content-type -> Content-Type (spec.md §4.1 "Output header name
// normalization").
func NormalizeHeaderName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// statusReasons is the static table from spec.md §4.1 covering 2xx/3xx/4xx/5xx.
var statusReasons = map[int]string{
	200: "OK", 201: "Created", 202: "Accepted", 204: "No Content",
	206: "Partial Content",
	300: "Multiple Choices", 301: "Moved Permanently", 302: "Found",
	303: "See Other", 304: "Not Modified", 307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 406: "Not Acceptable", 408: "Request Timeout",
	409: "Conflict", 410: "Gone", 411: "Length Required", 412: "Precondition Failed",
	413: "Payload Too Large", 414: "URI Too Long", 415: "Unsupported Media Type",
	429: "Too Many Requests",
	500: "Internal Server Error", 501: "Not Implemented", 502: "Bad Gateway",
	503: "Service Unavailable", 504: "Gateway Timeout",
}

// ReasonPhrase maps a status code to its reason phrase, or "Unknown
// status" if absent from the table (spec.md §4.1).
func ReasonPhrase(code int) string {
	if r, ok := statusReasons[code]; ok {
		return r
	}
	return "Unknown status"
}

// sortedHeaderNames returns the keys of m in sorted order. Nothing in the
// module calls it.
func sortedHeaderNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
