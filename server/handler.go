package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sambeau/xscriptd/config"
	"github.com/sambeau/xscriptd/xscript"
)

// defaultScriptName is served when a request URI resolves to a directory,
// mirroring the teacher's static-file index convention.
const defaultScriptName = "index.xml"

// routeRequest is the mux entry point: resolve the vhost, serve the
// whole-response cache if hit, otherwise run the full xscript pipeline.
func (s *Server) routeRequest(w http.ResponseWriter, r *http.Request) {
	vh, ok := s.resolveVhost(r)
	if !ok {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}

	if r.Method == http.MethodGet {
		if entry := s.respCache.Get(r); entry != nil {
			for name, values := range entry.headers {
				for _, v := range values {
					w.Header().Add(name, v)
				}
			}
			w.WriteHeader(entry.status)
			w.Write(entry.body)
			return
		}
	}

	scriptPath, err := s.resolveScriptPath(vh, r.URL.Path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	script, err := s.loadScript(scriptPath)
	if err != nil {
		s.renderError(w, err, http.StatusInternalServerError)
		return
	}

	xreq, err := s.buildRequest(r, vh)
	if err != nil {
		s.renderError(w, err, http.StatusBadRequest)
		return
	}

	budget := time.Duration(s.config.RequestBudgetMs) * time.Millisecond
	ctx := xscript.NewContext(script, xreq, budget)
	if s.devlog != nil {
		ctx.Logger = s.devlog
	}
	stopper := xscript.NewContextStopper(ctx, s.cleanup)
	defer stopper.Release()

	doc, err := script.Invoke(ctx)
	if err != nil {
		s.renderError(w, err, http.StatusInternalServerError)
		return
	}

	body := doc.Serialize()
	ctx.Resp.Commit()

	for _, h := range ctx.Resp.OrderedHeaders() {
		w.Header().Add(xscript.NormalizeHeaderName(h.Name), h.Value)
	}
	status := ctx.Resp.Status()
	if extra := ctx.Resp.Bytes(); len(extra) > 0 {
		body = extra
	}
	w.WriteHeader(status)
	w.Write(body)

	if r.Method == http.MethodGet && status == 200 && vh.CacheTTL() > 0 {
		s.respCache.Set(r, vh.CacheTTL(), status, w.Header(), body)
	}
}

// resolveVhost matches the request Host header against configured vhosts,
// normalizing IDN hostnames via punycode (spec.md §4.1).
func (s *Server) resolveVhost(r *http.Request) (config.Vhost, bool) {
	host := r.Host
	if h, _, err := splitHostPort(host); err == nil {
		host = h
	}
	ascii, err := xscript.ToASCII(host)
	if err == nil {
		host = ascii
	}
	for _, vh := range s.config.Vhosts {
		if strings.EqualFold(vh.Host, host) {
			return vh, true
		}
	}
	if len(s.config.Vhosts) == 1 {
		return s.config.Vhosts[0], true
	}
	return config.Vhost{}, false
}

func splitHostPort(hostport string) (string, string, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, "", nil
	}
	idx := strings.LastIndex(hostport, ":")
	return hostport[:idx], hostport[idx+1:], nil
}

// resolveScriptPath maps a URI path onto a script file under the vhost's
// docroot, refusing to escape the docroot.
func (s *Server) resolveScriptPath(vh config.Vhost, uriPath string) (string, error) {
	clean := filepath.Clean("/" + uriPath)
	full := filepath.Join(vh.DocRoot, clean)
	if !strings.HasPrefix(full, filepath.Clean(vh.DocRoot)) {
		return "", os.ErrPermission
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		full = filepath.Join(full, defaultScriptName)
	}
	return full, nil
}

// loadScript returns a cached compiled Script, reparsing from disk when
// the file's mtime has advanced past what was cached (spec.md §4.10).
func (s *Server) loadScript(path string) (*xscript.Script, error) {
	s.scriptsMu.RLock()
	cached, ok := s.scripts[path]
	s.scriptsMu.RUnlock()

	if ok {
		info, err := os.Stat(path)
		if err == nil && !info.ModTime().After(cached.Mtime) {
			return cached, nil
		}
	}

	script, err := xscript.LoadScript(path, s.registry, s.cache)
	if err != nil {
		return nil, err
	}

	s.scriptsMu.Lock()
	s.scripts[path] = script
	s.scriptsMu.Unlock()
	return script, nil
}

// buildRequest converts the incoming net/http.Request into a CGI-style
// environment map and hands it to xscript.ParseRequest (spec.md §4.1).
func (s *Server) buildRequest(r *http.Request, vh config.Vhost) (*xscript.Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	env := map[string]string{
		"REQUEST_METHOD": r.Method,
		"SCRIPT_NAME":    "",
		"PATH_INFO":      r.URL.Path,
		"QUERY_STRING":   r.URL.RawQuery,
		"CONTENT_TYPE":   r.Header.Get("Content-Type"),
		"CONTENT_LENGTH": strconv.Itoa(len(body)),
		"REMOTE_ADDR":    ClientIP(r, s.config.Server.Proxy),
		"SERVER_NAME":    vh.Host,
	}
	if r.TLS != nil {
		env["HTTPS"] = "on"
	}
	for name, values := range r.Header {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env[key] = strings.Join(values, ", ")
	}
	for k, v := range vh.Args {
		env["XSCRIPT_VHOST_"+strings.ToUpper(k)] = v
	}

	return xscript.ParseRequest(env, xscript.ParserOptions{Body: body})
}

// renderError writes a minimal or diagnostic error body depending on the
// operation-mode switch (spec.md §7).
func (s *Server) renderError(w http.ResponseWriter, err error, status int) {
	s.logError("%v", err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if s.config.IsDevelopment() {
		io.WriteString(w, err.Error())
		return
	}
	io.WriteString(w, http.StatusText(status))
}
