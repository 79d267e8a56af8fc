package xscript

import "fmt"

// BlockFactory constructs a Block from its parsed BlockCore. Registered
// per (namespace) at process start; no singletons in the hot path
// (spec.md §9 "Global mutable state" redesign note).
type BlockFactory func(core BlockCore) (Block, error)

// ValidatorFactory constructs a Validator from its declared name/config.
type ValidatorFactory func(name string) (Validator, error)

// Registry is an explicit, process-lifetime table of block namespaces and
// validators, built once at startup and threaded through every Context
// rather than reached for via package-level globals. Block types and
// parameter types are closed in the core but extensible by plugins
// (spec.md §9): Register is the plugin seam.
type Registry struct {
	blocks     map[string]BlockFactory
	validators map[string]ValidatorFactory
}

// NewRegistry returns an empty Registry. Call RegisterCoreBlocks and
// RegisterCoreValidators (or equivalents) to populate it before use.
func NewRegistry() *Registry {
	return &Registry{
		blocks:     make(map[string]BlockFactory),
		validators: make(map[string]ValidatorFactory),
	}
}

// RegisterBlock adds a block factory under namespace. Re-registering the
// same namespace replaces the previous factory (useful for tests).
func (r *Registry) RegisterBlock(namespace string, f BlockFactory) {
	r.blocks[namespace] = f
}

// NewBlock constructs a block for namespace from core, failing with a
// ParseError if the namespace is unknown (spec.md §7 "unknown block
// namespace" is a parse error).
func (r *Registry) NewBlock(namespace string, core BlockCore) (Block, error) {
	f, ok := r.blocks[namespace]
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("unknown block namespace %q", namespace)}
	}
	return f(core)
}

// RegisterValidator adds a validator factory under name.
func (r *Registry) RegisterValidator(name string, f ValidatorFactory) {
	r.validators[name] = f
}

// NewValidator constructs a validator by declared name.
func (r *Registry) NewValidator(name string) (Validator, error) {
	f, ok := r.validators[name]
	if !ok {
		return nil, fmt.Errorf("xscript: unknown validator %q", name)
	}
	return f(name)
}

// RegisterCoreBlocks installs the block namespaces the core ships with:
// currently just "http" (HttpBlock, spec.md §4.4), bound to policy (the
// file-scheme and real-IP rules every http block in this process shares).
// Plugin namespaces (mist, lua, ...) register themselves the same way
// from their own packages; none are wired here since the spec treats
// them as external.
func (r *Registry) RegisterCoreBlocks(policy HttpPolicy) {
	r.RegisterBlock("http", func(core BlockCore) (Block, error) {
		return NewHttpBlock(core, policy)
	})
}

// RegisterCoreValidators installs the range and regex validators
// supplemented from original_source/standard/ (see DESIGN.md).
func (r *Registry) RegisterCoreValidators() {
	r.RegisterValidator("range", func(name string) (Validator, error) {
		return &RangeValidator{}, nil
	})
	r.RegisterValidator("regex", func(name string) (Validator, error) {
		return &RegexValidator{}, nil
	})
}
