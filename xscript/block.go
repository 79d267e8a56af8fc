package xscript

import "time"

// CacheStrategySpec is the parsed form of a block's cache-strategy
// attribute: `{distributed|local}* strategy_name:seconds` (spec.md §6).
type CacheStrategySpec struct {
	Distributed bool
	Local       bool
	Name        string
	TTL         time.Duration
}

// BlockCore holds the attributes and child declarations common to every
// block, regardless of namespace (spec.md §6 "Attributes recognized on any
// block"). Namespace-specific block types (HttpBlock, and any plugin
// block) embed BlockCore for its shared bookkeeping.
type BlockCore struct {
	ID             string
	Method         string
	Threaded       bool
	WantTag        bool
	CacheStrategy  *CacheStrategySpec
	RetryCount     int
	RemoteTimeout  time.Duration
	Timeout        time.Duration
	Proxy          bool
	XForwardedFor  bool
	PrintErrorBody bool

	Params      []Param
	Headers     []Param
	QueryParams []Param
	Guards      []Guard
	XSLTPath    string
	HasMeta     bool

	Namespace string // "http", "mist", "lua", ...
	Index     int    // position within the script, used for cache-key identity and slot addressing
}

// Block is the abstract invocation surface every block namespace
// implements: capability-set trait {parse, evaluate, info,
// cache-key-contribution} per spec.md §9 "Dynamic dispatch".
type Block interface {
	Core() *BlockCore
	// Invoke runs the block's method against the evaluated argument list,
	// producing an InvokeContext. Implementations must respect
	// ctx.Stopped() and ctx.EffectiveTimeout.
	Invoke(ctx *Context, args []string) (*InvokeContext, error)
	// CacheKeyContribution returns the bytes this block contributes to a
	// cache fingerprint beyond the shared identity/stylesheet/argument
	// components DocCache already folds in (spec.md §4.7 items 4-6):
	// selected header values, selected query args, selected cookies.
	CacheKeyContribution(ctx *Context) []byte
}

// EvalGuards reports whether every guard on the block passes.
func (c *BlockCore) EvalGuards(ctx *Context) bool {
	for _, g := range c.Guards {
		if !g.Eval(ctx) {
			return false
		}
	}
	return true
}

// EvalParams resolves every declared Param in order to its string value.
func (c *BlockCore) EvalParams(ctx *Context) ([]string, error) {
	out := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		v, err := p.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// IsThreaded implements the spec.md §4.3 threading rule: a block is
// threaded iff its `threaded` attribute is set AND no prior block's
// output is referenced by its guard; the caller supplies
// guardReferencesPriorOutput. Script does not call IsThreaded: its
// threadedPartition applies the rule itself.
func (c *BlockCore) IsThreaded(guardReferencesPriorOutput bool) bool {
	return c.Threaded && !guardReferencesPriorOutput
}
