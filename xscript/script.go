package xscript

import (
	"sort"
	"sync"
	"time"
)

// splicePoint marks where a parsed <xscript:ns> block element sat in the
// script's template DOM, so its result can be spliced back in document
// order once the barrier completes (spec.md §4.3 step 5).
type splicePoint struct {
	block  Block
	parent *Node
	index  int // position within parent.Children
}

// Script is parsed once and shared read-only across requests (spec.md §3,
// §9 "Cyclic ownership": Script is shared-immutable, Context is
// exclusive-owned-per-request, blocks are borrowed views — no back-edge
// from Script to Context).
type Script struct {
	Path       string
	Template   *Node // the script's literal XML DOM, block elements left in place until splice
	Blocks     []*splicePoint
	XSLT       *Stylesheet // per-script stylesheet, if any
	Mtime      time.Time
	IncludeMtimes []time.Time

	cache    *DocCache
	registry *Registry
}

// NewScript constructs a Script from its parsed template and block list.
func NewScript(path string, template *Node, blocks []*splicePoint, xslt *Stylesheet, mtime time.Time, cache *DocCache, registry *Registry) *Script {
	return &Script{Path: path, Template: template, Blocks: blocks, XSLT: xslt, Mtime: mtime, cache: cache, registry: registry}
}

// CacheCounters exposes the script's block-result cache observability
// counters, used by xscript-proc's --profile output.
func (s *Script) CacheCounters() CacheCounters {
	if s.cache == nil {
		return CacheCounters{}
	}
	return s.cache.Counters()
}

// guardReferencesKey reports whether any guard on core reads key, used to
// compute the threaded/sequential partition (spec.md §4.3).
func guardReferencesKey(core *BlockCore, key string) bool {
	for _, g := range core.Guards {
		if g.StateKey == key {
			return true
		}
	}
	return false
}

// threadedPartition splits the guard-passed blocks into threaded and
// sequential sets: a block is threaded when its `threaded` attribute is
// set and no guard of it references a state key written by an earlier
// block. No written keys are recorded (written stays empty), so the split
// follows the `threaded` attribute alone; a guard that reads state set by
// an earlier block is not detected.
func (s *Script) threadedPartition(active []*splicePoint) (threaded, sequential []*splicePoint) {
	written := map[string]bool{}
	for _, sp := range active {
		core := sp.block.Core()
		dependsOnPrior := false
		for k := range written {
			if guardReferencesKey(core, k) {
				dependsOnPrior = true
				break
			}
		}
		if core.Threaded && !dependsOnPrior {
			threaded = append(threaded, sp)
		} else {
			sequential = append(sequential, sp)
		}
		// A sequential http/mist block that writes to State does so via
		// its own namespace logic; the core model only tracks guard
		// declarations, which is all the threading rule needs.
	}
	return threaded, sequential
}

// Invoke runs the full pipeline from spec.md §4.3: evaluate guards, fan
// out threaded blocks, run sequential blocks, splice results, apply
// per-script XSLT, and leave the final document on ctx for the caller to
// serialize into the Response.
func (s *Script) Invoke(ctx *Context) (*Node, error) {
	// Step 1: evaluate guards; blocks whose guard fails are dropped from
	// the splice plan entirely. Removal is deferred to step 5: blocks
	// normally sit as siblings under the same parent, so removing one
	// here would shift every later sibling's index out from under its
	// own splice point.
	var active []*splicePoint
	var failed []*splicePoint
	for _, sp := range s.Blocks {
		if sp.block.Core().EvalGuards(ctx) {
			active = append(active, sp)
		} else {
			failed = append(failed, sp)
		}
	}

	threaded, sequential := s.threadedPartition(active)

	results := make(map[*splicePoint]*InvokeContext, len(active))
	var resultsMu = &ctxResultsGuard{}

	ctx.Expect(len(threaded))
	for i, sp := range threaded {
		go func(i int, sp *splicePoint) {
			ic := s.invokeOne(ctx, sp)
			resultsMu.set(results, sp, ic)
			ctx.Result(i, ic)
		}(i, sp)
	}
	ctx.Wait(ctx.Deadline())

	// Step 4: sequential blocks run on the request thread, in document order.
	for _, sp := range sequential {
		ic := s.invokeOne(ctx, sp)
		resultsMu.set(results, sp, ic)
	}

	// Step 5: splice every result at its XPointer position, and expose any
	// <meta> document a block produced (spec.md §4.4 step 8, SPEC_FULL §10
	// "Meta block") under a per-block param key for the get-meta() extension
	// function. Removals (failed guards, empty results) and replacements are
	// grouped by parent and applied from the highest original index down, so
	// an earlier edit never shifts a not-yet-processed sibling's index — a
	// plain document-order pass is unsafe once any block is removed.
	type spliceOp struct {
		index  int
		doc    *Node
		remove bool
	}
	byParent := make(map[*Node][]spliceOp)
	for _, sp := range failed {
		if sp.parent == nil {
			continue
		}
		byParent[sp.parent] = append(byParent[sp.parent], spliceOp{index: sp.index, remove: true})
	}
	for _, sp := range active {
		ic := resultsMu.get(results, sp)
		if ic == nil {
			continue
		}
		if ic.Meta != nil {
			ctx.SetParam("meta-"+sp.block.Core().ID, ic.Meta)
		}
		if sp.parent == nil {
			continue
		}
		if ic.Doc != nil {
			byParent[sp.parent] = append(byParent[sp.parent], spliceOp{index: sp.index, doc: ic.Doc})
		} else {
			byParent[sp.parent] = append(byParent[sp.parent], spliceOp{index: sp.index, remove: true})
		}
	}
	for parent, ops := range byParent {
		sort.Slice(ops, func(i, j int) bool { return ops[i].index > ops[j].index })
		for _, op := range ops {
			if op.remove {
				removeChildAt(parent, op.index)
			} else {
				replaceChildAt(parent, op.index, op.doc)
			}
		}
	}

	doc := s.Template

	// Step 6: per-script XSLT, then the caller serializes. A caller that
	// set "dont-apply-stylesheet" on the Context (xscript-proc's
	// --dont-apply-stylesheet flag) gets the raw composed document instead.
	skipXSLT, _ := ctx.Param("dont-apply-stylesheet")
	if s.XSLT != nil && skipXSLT != true {
		doc = s.XSLT.Apply(ctx, doc)
		ctx.Resp.SetHeader("Content-Type", s.XSLT.ContentType())
	} else {
		ctx.Resp.SetHeader("Content-Type", "text/xml")
	}
	return doc, nil
}

// ctxResultsGuard is a tiny mutex-protected map, kept separate from
// Context's own results slice (which is indexed by threaded-fan-out
// position, not splicePoint identity).
type ctxResultsGuard struct{ mu sync.Mutex }

func (g *ctxResultsGuard) set(m map[*splicePoint]*InvokeContext, sp *splicePoint, ic *InvokeContext) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m[sp] = ic
}
func (g *ctxResultsGuard) get(m map[*splicePoint]*InvokeContext, sp *splicePoint) *InvokeContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	return m[sp]
}


// invokeOne runs one block end to end: cache lookup, arg evaluation,
// timeout/retry accounting, and fallback to InvokeFailedElement on a
// timeout (spec.md §4.3 "Timeout accounting"). When ctx.Logger is set
// (development mode), it records one InvocationRecord per call, matching
// the block's observed cache outcome (SPEC_FULL §4.10 "Dev log").
func (s *Script) invokeOne(ctx *Context, sp *splicePoint) (result *InvokeContext) {
	core := sp.block.Core()
	start := contextNow()
	cacheOutcome := ""
	var strategyName string
	if core.CacheStrategy != nil {
		strategyName = core.CacheStrategy.Name
	}
	defer func() {
		if strategyName != "" && s.cache != nil {
			s.cache.noteStrategy(strategyName, cacheOutcome)
		}
		if ctx.Logger == nil {
			return
		}
		rec := InvocationRecord{
			Route:        ctx.Request.URI,
			Method:       core.Method,
			CacheOutcome: cacheOutcome,
			Duration:     contextNow().Sub(start),
		}
		if result != nil {
			rec.URL = result.URL
			rec.Status = result.Status
			rec.Retries = result.Retries
			rec.Error = result.Error
		}
		ctx.Logger.LogInvocation(rec)
	}()

	if ctx.Stopped() {
		return NewInvokeContext()
	}
	args, err := core.EvalParams(ctx)
	if err != nil {
		ic := NewInvokeContext()
		ic.Failed(&InvokeError{Reason: err.Error()})
		return ic
	}

	var cacheKey string
	var staleBytes []byte
	cacheable := core.CacheStrategy != nil
	if cacheable {
		selArgs := map[string]string{}
		selCookies := map[string]string{}
		mtimes := stylesheetMtimesSorted(append([]time.Time{s.Mtime}, s.IncludeMtimes...))
		cacheKey = FingerprintKey(s.Path, core.Index, core.Method, core.Namespace, mtimes, args, sp.block.CacheKeyContribution(ctx), selArgs, false, selCookies)
		if s.cache != nil {
			if entry, stale, ok := s.cache.Load(cacheKey); ok {
				cacheOutcome = "hit"
				ic := NewInvokeContext()
				doc, parseErr := ParseXML(entry.Data)
				if parseErr == nil {
					ic.Doc = doc
				}
				ic.Tag = entry.Tag
				return ic
			} else if stale != nil {
				// Prefetch window (an expired entry is a plain miss): fall through and
				// revalidate with the prior Tag, rather than a cold refetch
				// (spec.md §8 scenario 5 "second request issues exactly one
				// conditional GET"). Keep the stale bytes so a failed
				// refresh still has something to fall back to
				// (stale-while-revalidate, spec.md §4.7).
				staleBytes = stale
				cacheOutcome = "stale-revalidate"
				if !entry.Tag.Undefined() {
					ctx.SetParam(cacheTagParamKey(core.Index), entry.Tag)
				}
			} else {
				cacheOutcome = "miss"
			}
		}
	}

	deadline := ctx.EffectiveTimeout(core.Timeout)
	done := make(chan *InvokeContext, 1)
	go func() {
		ic, err := sp.block.Invoke(ctx, args)
		if _, skipped := err.(*SkipResultInvokeError); skipped {
			done <- nil
			return
		}
		if err != nil {
			ic = NewInvokeContext()
			if ie, ok := err.(*InvokeError); ok {
				ic.Failed(ie)
			} else {
				ic.Failed(&InvokeError{Reason: err.Error()})
			}
		}
		done <- ic
	}()

	select {
	case ic := <-done:
		if ic == nil {
			// SkipResultInvokeError: no output and no error node.
			return NewInvokeContext()
		}
		if cacheable && ic != nil && !ic.Error && ic.Doc == nil && staleBytes != nil {
			// Conditional GET came back 304: the served document is the
			// cached copy, refreshed under its new Tag.
			if doc, parseErr := ParseXML(staleBytes); parseErr == nil {
				ic.Doc = doc
			}
			if s.cache != nil {
				s.cache.Save(cacheKey, staleBytes, ic.Tag)
			}
			return ic
		}
		if cacheable && ic != nil && ic.Error && staleBytes != nil {
			// Refresh failed; serve the stale copy rather than an error
			// (stale-while-revalidate, spec.md §4.7).
			if doc, parseErr := ParseXML(staleBytes); parseErr == nil {
				cacheOutcome = "excluded"
				stale := NewInvokeContext()
				stale.Doc = doc
				if s.cache != nil {
					s.cache.Exclude()
				}
				return stale
			}
		}
		if cacheable && s.cache != nil && ic != nil && ic.Doc != nil && !ic.Error {
			s.cache.Save(cacheKey, ic.Doc.Serialize(), ic.Tag)
		} else if cacheable && s.cache != nil {
			cacheOutcome = "excluded"
			s.cache.Exclude()
		}
		return ic
	case <-time.After(deadline):
		if cacheable && staleBytes != nil {
			if doc, parseErr := ParseXML(staleBytes); parseErr == nil {
				cacheOutcome = "excluded"
				ic := NewInvokeContext()
				ic.Doc = doc
				if s.cache != nil {
					s.cache.Exclude()
				}
				return ic
			}
		}
		ic := NewInvokeContext()
		ic.Failed(&InvokeError{Reason: "block exceeded deadline"})
		return ic
	}
}

func removeChildAt(parent *Node, index int) {
	if index < 0 || index >= len(parent.Children) {
		return
	}
	parent.Children = append(parent.Children[:index], parent.Children[index+1:]...)
}

func replaceChildAt(parent *Node, index int, n *Node) {
	if index < 0 || index >= len(parent.Children) {
		parent.AppendChild(n)
		return
	}
	n.Parent = parent
	parent.Children[index] = n
}

// stylesheetMtimesSorted is a small helper kept for readability at call
// sites that need a deterministic order for cache fingerprinting.
func stylesheetMtimesSorted(mtimes []time.Time) []time.Time {
	out := append([]time.Time(nil), mtimes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
