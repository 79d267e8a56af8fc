package xscript

import (
	"testing"
	"time"
)

func newParamTestContext() *Context {
	req := &Request{
		Method:  "GET",
		URI:     "/x?a=1",
		Query:   "a=1",
		Host:    "example.com",
		Env:     map[string]string{"REMOTE_ADDR": "10.0.0.1"},
		Headers: map[string]string{"x-token": "secret"},
		Args:    []QueryArg{{Name: "a", Value: "1"}},
		Cookies: []Cookie{{Name: "session", Value: "abc"}},
	}
	ctx := NewContext(&Script{}, req, time.Second)
	ctx.State.SetString("greeting", "hi")
	return ctx
}

func TestParamEvalLiteral(t *testing.T) {
	ctx := newParamTestContext()
	p := Param{Kind: ParamLiteral, Literal: "fixed"}
	got, err := p.Eval(ctx)
	if err != nil || got != "fixed" {
		t.Errorf("got %q, %v, want fixed, nil", got, err)
	}
}

func TestParamEvalQueryArgPresentAndDefault(t *testing.T) {
	ctx := newParamTestContext()
	p := Param{Kind: ParamQueryArg, ID: "a", Default: "dflt"}
	if got, _ := p.Eval(ctx); got != "1" {
		t.Errorf("got %q, want 1", got)
	}
	p2 := Param{Kind: ParamQueryArg, ID: "missing", Default: "dflt"}
	if got, _ := p2.Eval(ctx); got != "dflt" {
		t.Errorf("got %q, want dflt", got)
	}
}

func TestParamEvalStateArg(t *testing.T) {
	ctx := newParamTestContext()
	p := Param{Kind: ParamStateArg, ID: "greeting", Default: "none"}
	if got, _ := p.Eval(ctx); got != "hi" {
		t.Errorf("got %q, want hi", got)
	}
	p2 := Param{Kind: ParamStateArg, ID: "missing", Default: "none"}
	if got, _ := p2.Eval(ctx); got != "none" {
		t.Errorf("got %q, want none", got)
	}
}

func TestParamEvalCookieAndHeader(t *testing.T) {
	ctx := newParamTestContext()
	cp := Param{Kind: ParamCookie, ID: "session", Default: "x"}
	if got, _ := cp.Eval(ctx); got != "abc" {
		t.Errorf("cookie got %q, want abc", got)
	}
	hp := Param{Kind: ParamHeader, ID: "x-token", Default: "x"}
	if got, _ := hp.Eval(ctx); got != "secret" {
		t.Errorf("header got %q, want secret", got)
	}
}

func TestParamEvalVhostArg(t *testing.T) {
	ctx := newParamTestContext()
	ctx.SetParam("vhost-args", map[string]string{"region": "eu"})
	p := Param{Kind: ParamVhostArg, ID: "region", Default: "none"}
	if got, _ := p.Eval(ctx); got != "eu" {
		t.Errorf("got %q, want eu", got)
	}
	missing := Param{Kind: ParamVhostArg, ID: "missing", Default: "none"}
	if got, _ := missing.Eval(ctx); got != "none" {
		t.Errorf("got %q, want none", got)
	}
}

func TestParamEvalProtocolArg(t *testing.T) {
	ctx := newParamTestContext()
	tests := map[string]string{
		"method":    "GET",
		"uri":       "/x?a=1",
		"remote-ip": "10.0.0.1",
		"host":      "example.com",
		"query":     "a=1",
	}
	for name, want := range tests {
		p := Param{Kind: ParamProtocolArg, ID: name}
		if got, _ := p.Eval(ctx); got != want {
			t.Errorf("protocol arg %q = %q, want %q", name, got, want)
		}
	}
}

func TestParamEvalStateBag(t *testing.T) {
	ctx := newParamTestContext()
	ctx.State.SetString("b", "2")
	p := Param{Kind: ParamStateBag}
	got, _ := p.Eval(ctx)
	if got != "greeting=hi&b=2" {
		t.Errorf("got %q, want greeting=hi&b=2", got)
	}
}

func TestGuardEvalTruthinessAndValueMatch(t *testing.T) {
	ctx := newParamTestContext()
	truthy := Guard{StateKey: "greeting"}
	if !truthy.Eval(ctx) {
		t.Error("expected truthy guard to pass")
	}

	exact := Guard{StateKey: "greeting", Value: "hi", HasValue: true}
	if !exact.Eval(ctx) {
		t.Error("expected exact-match guard to pass")
	}

	wrong := Guard{StateKey: "greeting", Value: "bye", HasValue: true}
	if wrong.Eval(ctx) {
		t.Error("expected mismatched guard to fail")
	}

	inverted := Guard{StateKey: "greeting", Not: true}
	if inverted.Eval(ctx) {
		t.Error("expected Not to invert a passing guard")
	}

	missing := Guard{StateKey: "absent"}
	if missing.Eval(ctx) {
		t.Error("expected guard on missing key to fail")
	}
}
