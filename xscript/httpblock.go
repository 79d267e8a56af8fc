package xscript

import (
	"fmt"
	"sort"
	"strings"
)

// httpMethodSpec captures the fixed arity/body/proxy/tag policy of one of
// the seven HttpBlock methods (spec.md §4.4 table).
type httpMethodSpec struct {
	minArity       int
	allowsTag      bool
	proxyByDefault bool
}

var httpMethods = map[string]httpMethodSpec{
	"getHttp":       {minArity: 1, allowsTag: true},
	"getBinaryPage": {minArity: 1, allowsTag: false},
	"post":          {minArity: 1, allowsTag: true},
	"postHttp":      {minArity: 2, allowsTag: true},
	"postByRequest": {minArity: 1, allowsTag: false},
	"getByRequest":  {minArity: 1, allowsTag: false},
	"getByState":    {minArity: 1, allowsTag: false},
}

// headerSkipSet lists the inbound headers never copied when proxy="yes"
// (spec.md §4.4 step 3).
var headerSkipSet = map[string]bool{
	"host":              true,
	"if-modified-since": true,
	"accept-encoding":   true,
	"keep-alive":        true,
	"connection":        true,
	"content-length":    true,
}

// HttpBlock implements the seven-method state machine from spec.md §4.4.
type HttpBlock struct {
	core   BlockCore
	policy HttpPolicy
}

// HttpPolicy carries the deployment-level choices HttpBlock needs but
// that live outside any single block: whether file:// URLs are permitted,
// whether to append a real-IP header, and which header name to use for
// it. Modeled as a small struct rather than free functions so the Policy
// is explicit and testable (spec.md §4.4 step 2-3 "scheme filtering in
// Policy").
type HttpPolicy struct {
	AllowFileScheme bool
	RealIPHeader    string // e.g. "X-Real-IP"; empty disables it
	AppendRealIP    bool
}

// NewHttpBlock validates the method name and returns an HttpBlock bound to
// the deployment's HttpPolicy (file-scheme and real-IP header rules).
func NewHttpBlock(core BlockCore, policy HttpPolicy) (Block, error) {
	if _, ok := httpMethods[core.Method]; !ok {
		return nil, &ParseError{Message: fmt.Sprintf("unknown http block method %q", core.Method)}
	}
	return &HttpBlock{core: core, policy: policy}, nil
}

func (b *HttpBlock) Core() *BlockCore { return &b.core }

func (b *HttpBlock) CacheKeyContribution(ctx *Context) []byte {
	var parts []string
	for _, h := range b.core.Headers {
		if v, err := h.Eval(ctx); err == nil {
			parts = append(parts, h.ID+"="+v)
		}
	}
	sort.Strings(parts)
	return []byte(strings.Join(parts, "&"))
}

// Invoke runs the shared sub-machine from spec.md §4.4 steps 1-8.
func (b *HttpBlock) Invoke(ctx *Context, args []string) (*InvokeContext, error) {
	spec, ok := httpMethods[b.core.Method]
	if !ok {
		return nil, &CriticalInvokeError{Block: b.core.ID, Message: "unknown method"}
	}
	if len(args) < spec.minArity {
		return nil, &CriticalInvokeError{Block: b.core.ID, Message: "too few arguments"}
	}
	if ctx.Stopped() {
		return nil, &SkipResultInvokeError{}
	}
	if v, ok := ctx.Param("dont-use-remote-call"); ok && v == true {
		ic := NewInvokeContext()
		ic.Doc = NewElement("xscript_invoke_skipped")
		return ic, nil
	}

	url, body, isMultipart, err := b.assembleURLAndBody(ctx, args)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(url, "file://") && !b.policy.AllowFileScheme {
		return nil, &CriticalInvokeError{Block: b.core.ID, Message: "file:// scheme rejected by policy"}
	}

	cacheable := spec.allowsTag
	if isMultipart {
		cacheable = false
	}

	var cachedTag Tag
	haveCachedTag := false
	// Caller (Script pipeline) populates a prior tag via ctx params when a
	// cache entry exists; HttpBlock only needs to know whether to send
	// If-Modified-Since.
	if v, ok := ctx.Param(cacheTagParamKey(b.core.Index)); ok && cacheable {
		if t, ok := v.(Tag); ok && !t.Undefined() {
			cachedTag, haveCachedTag = t, true
		}
	}

	headers := b.assembleHeaders(ctx, haveCachedTag, cachedTag)

	timeout := ctx.EffectiveTimeout(b.core.RemoteTimeout)
	attempts := 1 + b.core.RetryCount

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Stopped() {
			return nil, &SkipResultInvokeError{}
		}
		helper := NewHttpHelper(url, timeout)
		helper.AppendHeaders(headers, cachedTag.LastModified)
		if len(body) > 0 {
			helper.PostData(body)
		}
		status, err := helper.Perform()
		if err != nil {
			lastErr = &RetryInvokeError{Cause: err}
			continue
		}
		if cerr := helper.CheckStatus(haveCachedTag); cerr != nil {
			if _, retryable := cerr.(*RetryInvokeError); retryable && attempt < attempts-1 {
				lastErr = cerr
				continue
			}
			if rie, ok := cerr.(*RetryInvokeError); ok {
				return nil, &InvokeError{URL: url, Status: status, Reason: rie.Error()}
			}
			ic := NewInvokeContext()
			if ie, ok := cerr.(*InvokeError); ok {
				ic.Failed(ie)
				return ic, nil
			}
			return nil, cerr
		}

		ic := NewInvokeContext()
		ic.Args = args
		ic.Tag = helper.CreateTag()
		ic.URL = url
		ic.Status = status
		ic.Retries = attempt
		if status != 304 {
			doc, cerr := classifyBody(helper)
			if cerr != nil {
				ic.Failed(cerr)
				return ic, nil
			}
			ic.Doc = doc
		}
		if b.core.HasMeta {
			ic.Meta = buildMeta(helper, url)
		}
		return ic, nil
	}
	if lastErr != nil {
		if rie, ok := lastErr.(*RetryInvokeError); ok {
			return nil, &InvokeError{URL: url, Reason: rie.Error()}
		}
		return nil, lastErr
	}
	return nil, &InvokeError{URL: url, Reason: "exhausted retries"}
}

func cacheTagParamKey(blockIndex int) string {
	return fmt.Sprintf("http-block-cached-tag-%d", blockIndex)
}

// assembleURLAndBody implements spec.md §4.4 step 2 and the per-method
// body-source column of the method table.
func (b *HttpBlock) assembleURLAndBody(ctx *Context, args []string) (url string, body []byte, isMultipart bool, err error) {
	switch b.core.Method {
	case "getHttp", "getBinaryPage", "getByRequest":
		return strings.Join(args, ""), nil, false, nil
	case "getByState":
		url = strings.Join(args, "")
		var q []string
		for _, k := range ctx.State.Keys() {
			q = append(q, URLEncode(k)+"="+URLEncode(ctx.State.Get(k)))
		}
		if len(q) > 0 {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url += sep + strings.Join(q, "&")
		}
		return url, nil, false, nil
	case "post":
		url = strings.Join(args[:len(args)-1], "")
		qp, err := b.core.EvalQueryParamsAsMultipart(ctx)
		if err != nil {
			return "", nil, false, err
		}
		return url, qp.Body, qp.Multipart, nil
	case "postHttp":
		url = strings.Join(args[:len(args)-1], "")
		return url, []byte(args[len(args)-1]), false, nil
	case "postByRequest":
		url = strings.Join(args, "")
		if ctx.Request.Method == "POST" || ctx.Request.Method == "PUT" {
			return url, ctx.Request.Body, false, nil
		}
		return url, nil, false, nil
	}
	return "", nil, false, &CriticalInvokeError{Block: b.core.ID, Message: "unreachable method"}
}

// MultipartResult is the encoded body for the "post" method's
// extension-query-params form.
type MultipartResult struct {
	Body      []byte
	Multipart bool
}

// EvalQueryParamsAsMultipart encodes the block's <xscript:query-param>
// children as application/x-www-form-urlencoded (spec.md §4.4 "post"
// row). It never builds multipart/form-data: Multipart is always false.
func (c *BlockCore) EvalQueryParamsAsMultipart(ctx *Context) (MultipartResult, error) {
	var b strings.Builder
	for i, qp := range c.QueryParams {
		v, err := qp.Eval(ctx)
		if err != nil {
			return MultipartResult{}, err
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(qp.ID)
		b.WriteByte('=')
		b.WriteString(URLEncode(v))
	}
	return MultipartResult{Body: []byte(b.String())}, nil
}

// assembleHeaders implements spec.md §4.4 step 3.
func (b *HttpBlock) assembleHeaders(ctx *Context, haveCachedTag bool, cachedTag Tag) []struct{ Name, Value string } {
	var out []struct{ Name, Value string }
	haveRealIP := false
	haveXFF := false

	if b.core.Proxy {
		for name, value := range ctx.Request.Headers {
			if headerSkipSet[name] {
				continue
			}
			out = append(out, struct{ Name, Value string }{name, value})
			if name == strings.ToLower(b.policy.RealIPHeader) {
				haveRealIP = true
			}
			if name == "x-forwarded-for" {
				haveXFF = true
			}
		}
	}
	for _, h := range b.core.Headers {
		v, err := h.Eval(ctx)
		if err != nil {
			continue
		}
		out = append(out, struct{ Name, Value string }{h.ID, v})
		if strings.EqualFold(h.ID, b.policy.RealIPHeader) {
			haveRealIP = true
		}
		if strings.EqualFold(h.ID, "x-forwarded-for") {
			haveXFF = true
		}
	}
	if b.policy.AppendRealIP && !haveRealIP && b.policy.RealIPHeader != "" {
		if ip, ok := ctx.Request.EnvVar("REMOTE_ADDR"); ok {
			out = append(out, struct{ Name, Value string }{b.policy.RealIPHeader, ip})
		}
	}
	if b.core.XForwardedFor && !haveXFF {
		if ip, ok := ctx.Request.EnvVar("REMOTE_ADDR"); ok {
			out = append(out, struct{ Name, Value string }{"X-Forwarded-For", ip})
		}
	}
	return out
}

// classifyBody implements spec.md §4.4 step 7.
func classifyBody(h *HttpHelper) (*Node, *InvokeError) {
	body := h.Body()
	switch {
	case h.IsXML():
		n, err := ParseXML(body)
		if err != nil {
			return nil, &InvokeError{URL: "", Status: h.Status(), ContentType: h.ContentType(), Reason: "xml parse failed: " + err.Error()}
		}
		return n, nil
	case h.IsJSON():
		n, err := JSONToXML("result", body)
		if err != nil {
			return nil, &InvokeError{Status: h.Status(), ContentType: h.ContentType(), Reason: "json parse failed: " + err.Error()}
		}
		return n, nil
	case h.IsHTML():
		clean := SanitizeHTML(string(body), 0)
		n, err := ParseXML([]byte("<html>" + clean + "</html>"))
		if err != nil {
			return NewText(clean), nil
		}
		return n, nil
	case h.IsText():
		n := NewElement("text")
		if len(body) > 0 {
			n.SetText(string(body))
		}
		return n, nil
	}
	return nil, &InvokeError{Status: h.Status(), ContentType: h.ContentType(), Reason: "format is not recognized"}
}

// buildMeta populates a Meta document with HTTP_<HEADER> for each response
// header (multi-valued headers become arrays) and URL = final URL
// (spec.md §4.4 step 8).
func buildMeta(h *HttpHelper, url string) *Node {
	meta := NewElement("meta")
	urlNode := NewElement("URL")
	urlNode.SetText(url)
	meta.AppendChild(urlNode)

	names := make([]string, 0, len(h.ResponseHeaders()))
	for k := range h.ResponseHeaders() {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		vs := h.ResponseHeaders()[k]
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if len(vs) == 1 {
			n := NewElement(key)
			n.SetText(vs[0])
			meta.AppendChild(n)
			continue
		}
		n := NewElement(key)
		for _, v := range vs {
			item := NewElement("item")
			item.SetText(v)
			n.AppendChild(item)
		}
		meta.AppendChild(n)
	}
	return meta
}
