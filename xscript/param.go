package xscript

import "fmt"

// ParamKind enumerates the parameter variants a block's <xscript:param>
// (and sibling <xscript:header>/<xscript:query-param>) elements can carry
// (spec.md §3, §6).
type ParamKind int

const (
	ParamLiteral ParamKind = iota
	ParamTypedLiteral
	ParamQueryArg
	ParamStateArg
	ParamCookie
	ParamHeader
	ParamVhostArg
	ParamRequestBody
	ParamProtocolArg
	ParamStateBag
	ParamRequestObject
	ParamRequestData
)

// Param is one parsed <xscript:param>/<xscript:header>/<xscript:query-param>
// declaration: a variant, the literal/name payload from the XML, an
// optional declared type, and an optional validator name.
type Param struct {
	Kind      ParamKind
	ID        string // for name-indexed variants: query-arg name, cookie name, header name, vhost-arg name, protocol-arg name
	Literal   string // literal text content for ParamLiteral/ParamTypedLiteral
	As        string // declared type for ParamTypedLiteral: "long", "double", "string" (default)
	Default   string
	Validator string
}

// Eval resolves a Param to its string value in ctx, per spec.md §3 "Each
// parameter evaluates to a string or a TypedValue in a given Context."
func (p Param) Eval(ctx *Context) (string, error) {
	switch p.Kind {
	case ParamLiteral, ParamTypedLiteral:
		return p.Literal, nil
	case ParamQueryArg:
		if v, ok := ctx.Request.Arg(p.ID); ok {
			return v, nil
		}
		return p.Default, nil
	case ParamStateArg:
		if ctx.State.Has(p.ID) {
			return ctx.State.Get(p.ID), nil
		}
		return p.Default, nil
	case ParamCookie:
		if c, ok := ctx.Request.Cookie(p.ID); ok {
			return c.Value, nil
		}
		return p.Default, nil
	case ParamHeader:
		if v, ok := ctx.Request.Header(p.ID); ok {
			return v, nil
		}
		return p.Default, nil
	case ParamVhostArg:
		if v, ok := ctx.Param("vhost-args"); ok {
			if m, ok := v.(map[string]string); ok {
				if s, ok := m[p.ID]; ok {
					return s, nil
				}
			}
		}
		return p.Default, nil
	case ParamRequestBody:
		return string(ctx.Request.Body), nil
	case ParamProtocolArg:
		return protocolArg(ctx, p.ID), nil
	case ParamStateBag:
		return ctx.State.AsString(), nil
	case ParamRequestObject, ParamRequestData:
		return "", nil // consumed structurally by blocks that accept the whole request, not as text
	}
	return "", fmt.Errorf("xscript: unknown param kind %d", p.Kind)
}

// AsString renders State as a canonical "key=value&key=value" string,
// mirroring TypedMap.AsString, for ParamStateBag.
func (s *State) AsString() string {
	var out string
	for i, k := range s.Keys() {
		if i > 0 {
			out += "&"
		}
		out += k + "=" + s.Get(k)
	}
	return out
}

func protocolArg(ctx *Context, name string) string {
	switch name {
	case "method":
		return ctx.Request.Method
	case "uri":
		return ctx.Request.URI
	case "remote-ip":
		if v, ok := ctx.Request.EnvVar("REMOTE_ADDR"); ok {
			return v
		}
		return ""
	case "host":
		return ctx.Request.Host
	case "query":
		return ctx.Request.Query
	}
	return ""
}

// Guard is a parsed <xscript:guard state="k" [value="v"] [not="1"]/>
// element, evaluated before a block runs (spec.md §4.3, §6).
type Guard struct {
	StateKey string
	Value    string
	HasValue bool
	Not      bool
}

// Eval reports whether the guard passes for ctx. With no Value, the guard
// passes iff State.Is(key) (truthiness); with a Value, it requires an
// exact string match. Not inverts the result.
func (g Guard) Eval(ctx *Context) bool {
	var pass bool
	if g.HasValue {
		pass = ctx.State.Has(g.StateKey) && ctx.State.Get(g.StateKey) == g.Value
	} else {
		pass = ctx.State.Is(g.StateKey)
	}
	if g.Not {
		return !pass
	}
	return pass
}
