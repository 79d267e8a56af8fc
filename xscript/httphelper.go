package xscript

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// httpTransportClient is shared across HttpHelper instances; connection
// reuse is deliberately disabled per instance (below) to match the
// spec's "disable connection reuse" directive, matching the teacher's
// evalFetchStatement pattern of building a fresh client per request
// (pkg/parsley/evaluator/eval_network_io.go) rather than a shared pool.
var httpTransportClient = &http.Client{}

// HttpHelper is one outbound exchange (spec.md §4.5): owns the transport
// handle, an appended-headers list, the captured response body buffer and
// a response-header multimap, case-insensitive and order-preserving for
// duplicates.
type HttpHelper struct {
	url     string
	timeout time.Duration
	method  string
	body    []byte
	headers http.Header

	status      int
	contentType string
	charset     string
	respHeaders map[string][]string // lower-cased name -> values, insertion order within a name preserved
	respBody    []byte
}

// NewHttpHelper sets the URL and timeout, and configures the exchange to
// disable connection reuse (spec.md §4.5 "disable connection reuse") so a
// slow or hung upstream cannot pin a pooled connection across requests.
func NewHttpHelper(url string, timeout time.Duration) *HttpHelper {
	return &HttpHelper{
		url:     url,
		timeout: timeout,
		method:  http.MethodGet,
		headers: make(http.Header),
	}
}

// AppendHeaders appends caller headers, injecting Expect:, Connection:
// close, and a conditional If-Modified-Since unless the caller already set
// those names (spec.md §4.5 append_headers).
func (h *HttpHelper) AppendHeaders(list []struct{ Name, Value string }, modifiedSince time.Time) {
	seen := make(map[string]bool, len(list))
	for _, kv := range list {
		h.headers.Set(kv.Name, kv.Value)
		seen[strings.ToLower(kv.Name)] = true
	}
	if !seen["expect"] {
		h.headers.Set("Expect", "")
	}
	if !seen["connection"] {
		h.headers.Set("Connection", "close")
	}
	if !seen["if-modified-since"] && !modifiedSince.IsZero() {
		h.headers.Set("If-Modified-Since", modifiedSince.UTC().Format(http1123))
	}
}

// PostData switches the exchange to POST and attaches body.
func (h *HttpHelper) PostData(body []byte) {
	h.method = http.MethodPost
	h.body = body
}

// Perform executes the synchronous round trip, returning the status code
// and populating content-type/charset and the response header multimap
// (spec.md §4.5 perform).
func (h *HttpHelper) Perform() (int, error) {
	var bodyReader io.Reader
	if len(h.body) > 0 {
		bodyReader = bytes.NewReader(h.body)
	}
	req, err := http.NewRequest(h.method, h.url, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("xscript: build request: %w", err)
	}
	req.Header = h.headers.Clone()
	req.Close = true // disables connection reuse

	client := &http.Client{Timeout: h.timeout, Transport: httpTransportClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("xscript: read response body: %w", err)
	}

	h.status = resp.StatusCode
	h.respBody = data
	h.respHeaders = make(map[string][]string, len(resp.Header))
	for k, vs := range resp.Header {
		h.respHeaders[strings.ToLower(k)] = vs
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, params, err := mime.ParseMediaType(ct)
		if err == nil {
			h.contentType = mediaType
			h.charset = params["charset"]
		} else {
			h.contentType = ct
		}
	}
	return h.status, nil
}

// CheckStatus applies the classification from spec.md §4.4 step 5.
func (h *HttpHelper) CheckStatus(sentIfModifiedSince bool) error {
	switch {
	case h.status == 0 || (h.status >= 200 && h.status < 300):
		return nil
	case h.status == 304:
		if !sentIfModifiedSince {
			return &InvokeError{URL: h.url, Status: h.status, Reason: "304 without If-Modified-Since"}
		}
		return nil
	case h.status >= 400 && h.status < 500:
		return &InvokeError{URL: h.url, Status: h.status, ContentType: h.contentType, Reason: "client error"}
	case h.status >= 500:
		return &RetryInvokeError{Cause: fmt.Errorf("xscript: upstream status %d", h.status)}
	}
	return &InvokeError{URL: h.url, Status: h.status, Reason: "unexpected status"}
}

// CreateTag extracts Last-Modified and Expires into a Tag; on 304 it marks
// modified=false (spec.md §4.5 create_tag).
func (h *HttpHelper) CreateTag() Tag {
	tag := NewTagFromHeaders(h.headerFirst("last-modified"), h.headerFirst("expires"))
	tag.Modified = h.status != 304
	return tag
}

func (h *HttpHelper) headerFirst(name string) string {
	if vs, ok := h.respHeaders[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Status, ContentType, Charset, Body and ResponseHeaders expose the
// captured exchange.
func (h *HttpHelper) Status() int              { return h.status }
func (h *HttpHelper) ContentType() string      { return h.contentType }
func (h *HttpHelper) Charset() string          { return h.charset }
func (h *HttpHelper) Body() []byte             { return h.respBody }
func (h *HttpHelper) ResponseHeaders() map[string][]string { return h.respHeaders }

// IsXML, IsJSON, IsHTML, IsText are pure functions of the captured content
// type (spec.md §4.5, §4.4 step 7).
func (h *HttpHelper) IsXML() bool {
	ct := h.contentType
	return ct == "text/xml" || ct == "application/xml" || ct == "application/xml-dtd" ||
		ct == "application/xml-external-parsed-entity" || strings.HasSuffix(ct, "+xml")
}
func (h *HttpHelper) IsJSON() bool { return h.contentType == "application/json" }
func (h *HttpHelper) IsHTML() bool { return h.contentType == "text/html" }
func (h *HttpHelper) IsText() bool { return strings.HasPrefix(h.contentType, "text/") }
