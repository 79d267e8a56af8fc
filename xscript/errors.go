package xscript

import "fmt"

// The error taxonomy from spec.md §7, modeled as an explicit result sum
// type matched at each block boundary (spec.md §9 "Exceptions for control
// flow") rather than thrown and caught deep in the call stack.

// ParseError signals ill-formed script XML, an unknown block namespace, or
// a malformed parameter type. Fatal at script-load time.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// CriticalInvokeError signals a structurally wrong request: bad arity,
// a disallowed parameter type, or a rejected URL scheme. Terminates the
// block AND the enclosing request with 500.
type CriticalInvokeError struct {
	Block   string
	Message string
}

func (e *CriticalInvokeError) Error() string {
	return fmt.Sprintf("critical invoke error in %s: %s", e.Block, e.Message)
}

// InvokeError is a runtime failure that yields a <xscript_invoke_failed>
// element in place of the block's output (spec.md §7).
type InvokeError struct {
	URL         string
	Status      int
	ContentType string
	Reason      string
	Info        map[string]string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("invoke error: %s (url=%s status=%d)", e.Reason, e.URL, e.Status)
}

// RetryInvokeError is a transient transport failure or 5xx response,
// consumed by the retry loop up to retry-count, then demoted to InvokeError.
type RetryInvokeError struct {
	Cause error
}

func (e *RetryInvokeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("retryable invoke error: %v", e.Cause)
	}
	return "retryable invoke error"
}

func (e *RetryInvokeError) Unwrap() error { return e.Cause }

// SkipResultInvokeError signals the request was cancelled; the block
// contributes no output and no error node.
type SkipResultInvokeError struct{}

func (e *SkipResultInvokeError) Error() string { return "block skipped: context stopped" }

// SkipCacheException signals the computed result is not safely cacheable
// (e.g. a multipart POST body); the producer still runs but nothing is
// stored in DocCache.
type SkipCacheException struct{ Reason string }

func (e *SkipCacheException) Error() string { return "skip cache: " + e.Reason }

// ValidatorException signals a parameter failed declarative validation.
// Treated as an InvokeError by the pipeline; may set a named guard flag in
// State (spec.md §10 Validators).
type ValidatorException struct {
	Param   string
	Message string
	Guard   string // State key to set to "1" on failure, if any
}

func (e *ValidatorException) Error() string {
	return fmt.Sprintf("validator exception for %s: %s", e.Param, e.Message)
}

// UnboundRuntimeError wraps an unexpected failure from the external XML/XSLT
// library boundary; surfaces as an InvokeError with the underlying message
// attached.
type UnboundRuntimeError struct{ Cause error }

func (e *UnboundRuntimeError) Error() string {
	return fmt.Sprintf("unbound runtime error: %v", e.Cause)
}
func (e *UnboundRuntimeError) Unwrap() error { return e.Cause }

// InvokeFailedElement renders the canonical <xscript_invoke_failed> element
// for an InvokeError, per spec.md §4.3 and §7.
func InvokeFailedElement(e *InvokeError) *Node {
	n := NewElement("xscript_invoke_failed")
	n.SetAttr("url", e.URL)
	n.SetAttr("status", fmt.Sprintf("%d", e.Status))
	n.SetAttr("content-type", e.ContentType)
	n.SetAttr("reason", e.Reason)
	for k, v := range e.Info {
		info := NewElement("info")
		info.SetAttr("key", k)
		info.SetText(v)
		n.AppendChild(info)
	}
	return n
}
