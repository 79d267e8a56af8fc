package xscript

// InvokeContext is the per-block result carrier (spec.md §3, §4.2): the
// document a block produced (possibly empty on a conditional-GET "not
// modified" cache hit), a meta fragment, a freshness Tag, the argument
// list the block was actually invoked with, any extension argument lists
// (http headers, http query params) and an error flag.
type InvokeContext struct {
	Doc     *Node
	Meta    *Node
	Tag     Tag
	Args    []string
	Ext     map[string][]string // e.g. "http-header" -> raw header lines, "http-query-param" -> raw params
	Err     *InvokeError
	Error   bool
	URL     string // the final request URL, for http blocks (profiling/dev log)
	Status  int    // the upstream HTTP status, for http blocks (0 if not applicable)
	Retries int    // number of retry attempts consumed before this result
}

// NewInvokeContext returns a zero-value InvokeContext ready to be
// populated by a block invocation.
func NewInvokeContext() *InvokeContext {
	return &InvokeContext{Ext: make(map[string][]string)}
}

// Failed marks the slot as an error result, storing the canonical
// <xscript_invoke_failed> element as its document (spec.md §7).
func (ic *InvokeContext) Failed(err *InvokeError) {
	ic.Error = true
	ic.Err = err
	ic.Doc = InvokeFailedElement(err)
}
