package xscript

import "testing"

func TestParseRequestBasicGET(t *testing.T) {
	env := map[string]string{
		"REQUEST_METHOD": "GET",
		"SCRIPT_NAME":    "",
		"PATH_INFO":      "/users",
		"QUERY_STRING":   "id=42&name=alice",
		"HTTP_HOST":      "example.com",
		"HTTP_USER_AGENT": "test-agent",
	}
	req, err := ParseRequest(env, ParserOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if req.URI != "/users?id=42&name=alice" {
		t.Errorf("URI = %q", req.URI)
	}
	if req.Host != "example.com" {
		t.Errorf("Host = %q, want example.com", req.Host)
	}
	if req.Proto != "http" {
		t.Errorf("Proto = %q, want http", req.Proto)
	}
	if ua, ok := req.Headers["user-agent"]; !ok || ua != "test-agent" {
		t.Errorf("expected user-agent header, got %q ok=%v", ua, ok)
	}
	if len(req.Args) != 2 {
		t.Fatalf("expected 2 query args, got %d", len(req.Args))
	}
}

func TestParseRequestHTTPSDetection(t *testing.T) {
	env := map[string]string{"REQUEST_METHOD": "GET", "HTTPS": "on"}
	req, err := ParseRequest(env, ParserOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Proto != "https" {
		t.Errorf("Proto = %q, want https", req.Proto)
	}
}

func TestParseRequestPostBodyArgs(t *testing.T) {
	env := map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_TYPE":   "application/x-www-form-urlencoded",
		"CONTENT_LENGTH": "11",
	}
	req, err := ParseRequest(env, ParserOptions{Body: []byte("a=1&b=2xxx")[:11]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Args) != 2 {
		t.Fatalf("expected 2 args, got %d: %+v", len(req.Args), req.Args)
	}
}

func TestParseRequestShortBodyErrors(t *testing.T) {
	env := map[string]string{
		"REQUEST_METHOD": "POST",
		"CONTENT_LENGTH": "100",
	}
	_, err := ParseRequest(env, ParserOptions{Body: []byte("short")})
	if err == nil {
		t.Fatal("expected short-read error")
	}
}

func TestParseRequestHeaderTruncatesAtCRLF(t *testing.T) {
	env := map[string]string{
		"REQUEST_METHOD": "GET",
		"HTTP_X_CUSTOM":  "value\r\nInjected: true",
	}
	req, err := ParseRequest(env, ParserOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Headers["x-custom"]; got != "value" {
		t.Errorf("expected header truncated at CRLF, got %q", got)
	}
}

func TestParseRequestCookies(t *testing.T) {
	env := map[string]string{
		"REQUEST_METHOD": "GET",
		"HTTP_COOKIE":    "session=abc; theme=dark",
	}
	req, err := ParseRequest(env, ParserOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(req.Cookies))
	}
	if req.Cookies[0].Name != "session" || req.Cookies[0].Value != "abc" {
		t.Errorf("unexpected cookie: %+v", req.Cookies[0])
	}
}

func TestNormalizeHeaderName(t *testing.T) {
	tests := map[string]string{
		"content-type": "Content-Type",
		"X-CUSTOM-ID":  "X-Custom-Id",
		"host":         "Host",
	}
	for in, want := range tests {
		if got := NormalizeHeaderName(in); got != want {
			t.Errorf("NormalizeHeaderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReasonPhrase(t *testing.T) {
	if got := ReasonPhrase(200); got != "OK" {
		t.Errorf("ReasonPhrase(200) = %q, want OK", got)
	}
	if got := ReasonPhrase(404); got != "Not Found" {
		t.Errorf("ReasonPhrase(404) = %q, want Not Found", got)
	}
	if got := ReasonPhrase(999); got != "Unknown status" {
		t.Errorf("ReasonPhrase(999) = %q, want Unknown status", got)
	}
}
