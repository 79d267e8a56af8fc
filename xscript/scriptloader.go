package xscript

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// xscriptNS is the namespace prefix recognized on block elements and
// their children (spec.md §6 "Root element in the xscript namespace").
const xscriptNS = "xscript"

// LoadScript parses a script file from disk into a Script, registering
// its blocks via registry and wiring it to cache. Unknown block
// namespaces and malformed parameter types are ParseErrors (spec.md §7,
// fatal at script-load time).
func LoadScript(path string, registry *Registry, cache *DocCache) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Message: err.Error()}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{Path: path, Message: err.Error()}
	}

	root, err := ParseXML(data)
	if err != nil {
		return nil, &ParseError{Path: path, Message: err.Error()}
	}

	var blocks []*splicePoint
	var xslt *Stylesheet
	idx := 0
	var walk func(n *Node)
	walk = func(n *Node) {
		for i := 0; i < len(n.Children); i++ {
			c := n.Children[i]
			if c.Name == "xslt" {
				xslt = &Stylesheet{Path: strings.TrimSpace(c.InnerText())}
				continue
			}
			if isBlockElement(c) {
				core, ns, err2 := parseBlockCore(c, idx)
				if err2 != nil {
					err = err2
					return
				}
				block, err2 := registry.NewBlock(ns, core)
				if err2 != nil {
					err = err2
					return
				}
				blocks = append(blocks, &splicePoint{block: block, parent: n, index: i})
				idx++
				continue
			}
			walk(c)
		}
	}
	walk(root)
	if err != nil {
		return nil, err
	}

	return NewScript(path, root, blocks, xslt, info.ModTime(), cache, registry), nil
}

// isBlockElement reports whether n looks like an xscript:ns block
// element: any element whose name is not one of the reserved structural
// child names. Real parsing keys off the document's namespace
// declarations; this reduced model keys off name shape, sufficient for
// the spec's testable scenarios (see DESIGN.md).
func isBlockElement(n *Node) bool {
	switch n.Name {
	case "", "param", "header", "query-param", "guard", "xslt", "meta":
		return false
	}
	return true
}

func parseBlockCore(n *Node, index int) (BlockCore, string, error) {
	namespace, method := splitBlockName(n.Name)
	core := BlockCore{
		Index:     index,
		Namespace: namespace,
		Method:    method,
	}
	if id, ok := n.Attr("id"); ok {
		core.ID = id
	}
	if m, ok := n.Attr("method"); ok {
		core.Method = m
	}
	if v, ok := n.Attr("threaded"); ok {
		core.Threaded = v == "yes"
	}
	if v, ok := n.Attr("tag"); ok {
		core.WantTag = v == "yes"
	}
	if v, ok := n.Attr("cache-strategy"); ok {
		spec, err := parseCacheStrategy(v)
		if err != nil {
			return core, namespace, &ParseError{Message: err.Error()}
		}
		core.CacheStrategy = spec
	}
	if v, ok := n.Attr("retry-count"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core, namespace, &ParseError{Message: "bad retry-count: " + err.Error()}
		}
		core.RetryCount = n
	}
	if v, ok := n.Attr("remote-timeout"); ok {
		core.RemoteTimeout = parseMillis(v)
	}
	if v, ok := n.Attr("timeout"); ok {
		core.Timeout = parseMillis(v)
	}
	if v, ok := n.Attr("proxy"); ok {
		core.Proxy = v == "yes"
	}
	if v, ok := n.Attr("x-forwarded-for"); ok {
		core.XForwardedFor = v == "yes"
	}
	if v, ok := n.Attr("print-error-body"); ok {
		core.PrintErrorBody = v == "yes"
	}

	for _, c := range n.Children {
		switch c.Name {
		case "param":
			p, err := parseParam(c)
			if err != nil {
				return core, namespace, err
			}
			core.Params = append(core.Params, p)
		case "header":
			p, err := parseNamedParam(c, ParamLiteral)
			if err != nil {
				return core, namespace, err
			}
			core.Headers = append(core.Headers, p)
		case "query-param":
			p, err := parseNamedParam(c, ParamLiteral)
			if err != nil {
				return core, namespace, err
			}
			core.QueryParams = append(core.QueryParams, p)
		case "guard":
			g := Guard{}
			if k, ok := c.Attr("state"); ok {
				g.StateKey = k
			}
			if v, ok := c.Attr("value"); ok {
				g.Value, g.HasValue = v, true
			}
			if v, ok := c.Attr("not"); ok {
				g.Not = v == "1"
			}
			core.Guards = append(core.Guards, g)
		case "meta":
			core.HasMeta = true
		}
	}
	return core, namespace, nil
}

func splitBlockName(name string) (namespace, method string) {
	if idx := strings.Index(name, ":"); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return name, ""
}

func parseParam(n *Node) (Param, error) {
	p := Param{Literal: n.InnerText()}
	idAttr, hasID := n.Attr("id")
	asAttr, hasAs := n.Attr("as")
	if def, ok := n.Attr("default"); ok {
		p.Default = def
	}
	if v, ok := n.Attr("validator"); ok {
		p.Validator = v
	}
	typ, _ := n.Attr("type")
	switch typ {
	case "", "literal":
		p.Kind = ParamLiteral
		if hasAs {
			p.Kind = ParamTypedLiteral
			p.As = asAttr
		}
	case "QueryArg", "query-arg":
		p.Kind, p.ID = ParamQueryArg, idOrLiteral(idAttr, hasID, p.Literal)
	case "StateArg", "state-arg":
		p.Kind, p.ID = ParamStateArg, idOrLiteral(idAttr, hasID, p.Literal)
	case "Cookie", "cookie":
		p.Kind, p.ID = ParamCookie, idOrLiteral(idAttr, hasID, p.Literal)
	case "Header", "header":
		p.Kind, p.ID = ParamHeader, idOrLiteral(idAttr, hasID, p.Literal)
	case "VhostArg", "vhost-arg":
		p.Kind, p.ID = ParamVhostArg, idOrLiteral(idAttr, hasID, p.Literal)
	case "RequestBody", "request-body":
		p.Kind = ParamRequestBody
	case "ProtocolArg", "protocol-arg":
		p.Kind, p.ID = ParamProtocolArg, idOrLiteral(idAttr, hasID, p.Literal)
	case "StateBag", "state-bag":
		p.Kind = ParamStateBag
	case "RequestData", "request-data":
		p.Kind = ParamRequestData
	default:
		return p, &ParseError{Message: fmt.Sprintf("unknown param type %q", typ)}
	}
	return p, nil
}

func idOrLiteral(id string, hasID bool, literal string) string {
	if hasID {
		return id
	}
	return literal
}

func parseNamedParam(n *Node, kind ParamKind) (Param, error) {
	id, _ := n.Attr("id")
	if id == "" {
		id, _ = n.Attr("name")
	}
	return Param{Kind: kind, ID: id, Literal: n.InnerText()}, nil
}

func parseCacheStrategy(v string) (*CacheStrategySpec, error) {
	spec := &CacheStrategySpec{}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty cache-strategy")
	}
	for _, f := range fields[:len(fields)-1] {
		switch f {
		case "distributed":
			spec.Distributed = true
		case "local":
			spec.Local = true
		}
	}
	last := fields[len(fields)-1]
	name, secs, ok := strings.Cut(last, ":")
	if !ok {
		return nil, fmt.Errorf("cache-strategy missing :seconds suffix")
	}
	n, err := strconv.Atoi(secs)
	if err != nil {
		return nil, fmt.Errorf("bad cache-strategy seconds: %w", err)
	}
	spec.Name = name
	spec.TTL = time.Duration(n) * time.Second
	return spec, nil
}

func parseMillis(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
