// Package server hosts the XScript daemon: the HTTP listener, vhost
// routing, middleware chain and graceful shutdown, adapted from the
// teacher's daemon loop (sambeau-basil's server/server.go) onto the
// xscript request/script/context pipeline instead of Basil's
// route/Parsley-handler model.
package server

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/acme/autocert"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sambeau/xscriptd/config"
	"github.com/sambeau/xscriptd/xscript"
)

// Server is the running daemon: one xscript.Registry and DocCache shared
// across vhosts, a per-vhost compiled-script cache, and the stock
// net/http listener plumbing.
type Server struct {
	config     *config.Config
	configPath string
	version    string
	commit     string
	stdout     io.Writer
	stderr     io.Writer

	registry *xscript.Registry
	cache    *xscript.DocCache
	cleanup  *xscript.CleanupManager
	db       *sql.DB

	scriptsMu sync.RWMutex
	scripts   map[string]*xscript.Script // absolute script path -> compiled script

	respCache *responseCache
	devlog    *DevLog

	mux     *http.ServeMux
	server  *http.Server
	watcher *Watcher
}

// New builds a Server from a loaded Config: registers the core block
// namespaces, opens the distributed cache backend if configured, and
// wires the vhost router.
func New(cfg *config.Config, configPath, version, commit string, stdout, stderr io.Writer) (*Server, error) {
	registry := xscript.NewRegistry()
	registry.RegisterCoreBlocks(xscript.HttpPolicy{
		AllowFileScheme: cfg.HTTPBlock.AllowFileScheme,
		RealIPHeader:    cfg.HTTPBlock.RealIPHeader,
		AppendRealIP:    cfg.HTTPBlock.AppendRealIP,
	})
	registry.RegisterCoreValidators()

	var db *sql.DB
	if cfg.Cache.Distributed != nil {
		var err error
		db, err = openDistributedCache(cfg.Cache.Distributed)
		if err != nil {
			return nil, fmt.Errorf("opening distributed cache: %w", err)
		}
	}

	s := &Server{
		config:     cfg,
		configPath: configPath,
		version:    version,
		commit:     commit,
		stdout:     stdout,
		stderr:     stderr,
		registry:   registry,
		cache:      xscript.NewDocCache(cfg.Cache.LocalMaxEntries, cfg.Cache.PrefetchRatio, db),
		cleanup:    xscript.NewCleanupManager(1024),
		db:         db,
		scripts:    make(map[string]*xscript.Script),
		respCache:  newResponseCache(cfg.Server.Dev, cfg.Cache.LocalMaxEntries > 0),
	}

	if cfg.Server.Dev {
		devlog, err := newDevLogFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening dev log: %w", err)
		}
		s.devlog = devlog
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.routeRequest)
	if s.devlog != nil {
		s.mux.HandleFunc("/__/devtools", s.serveDevtools)
		s.mux.HandleFunc("/__/devtools/clear", s.serveDevtoolsClear)
	}
	return s, nil
}

// newDevLogFromConfig constructs the development-mode invocation log from
// config.DevConfig, defaulting the database location under BaseDir when
// log_database is unset (spec.md §4.10 "Dev log", development-mode only).
func newDevLogFromConfig(cfg *config.Config) (*DevLog, error) {
	dlCfg := DefaultDevLogConfig()
	dlCfg.Path = cfg.Dev.LogDatabase
	if cfg.Dev.LogMaxSize != "" {
		size, err := config.ParseSize(cfg.Dev.LogMaxSize)
		if err != nil {
			return nil, fmt.Errorf("parsing dev.log_max_size: %w", err)
		}
		dlCfg.MaxSize = size
	}
	if cfg.Dev.LogTruncatePct > 0 {
		dlCfg.TruncatePct = cfg.Dev.LogTruncatePct
	}
	return NewDevLog(cfg.BaseDir, dlCfg)
}

// openDistributedCache opens the database/sql connection for one of the
// three pluggable backends named by spec.md §4.7 "optional distributed
// backend": modernc.org/sqlite (pure Go, no CGO — the teacher's own
// choice for embedded SQL), go-sql-driver/mysql, or lib/pq.
func openDistributedCache(dsn *config.DistributedDSN) (*sql.DB, error) {
	var driverName string
	switch dsn.Driver {
	case "sqlite":
		driverName = "sqlite"
	case "mysql":
		driverName = "mysql"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unknown distributed cache driver %q", dsn.Driver)
	}
	db, err := sql.Open(driverName, dsn.DSN)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS xscript_cache (
		cache_key TEXT PRIMARY KEY,
		data BLOB,
		last_modified INTEGER,
		expire_time INTEGER
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}
	return db, nil
}

// ReloadScripts drops the compiled-script cache so the next request for
// each vhost reparses its script from disk (spec.md §4.10, triggered by
// Watcher on fsnotify events).
func (s *Server) ReloadScripts() {
	s.scriptsMu.Lock()
	s.scripts = make(map[string]*xscript.Script)
	s.scriptsMu.Unlock()
	s.respCache.Clear()
	s.logInfo("scripts reloaded")
}

// Close releases the cleanup manager and any open distributed-cache
// connection.
func (s *Server) Close() {
	s.cleanup.Close()
	if s.db != nil {
		s.db.Close()
	}
	if s.devlog != nil {
		s.devlog.Close()
	}
}

func (s *Server) logInfo(format string, args ...any) {
	if s.config.Logging.Quiet {
		return
	}
	fmt.Fprintf(s.stdout, "INFO  "+format+"\n", args...)
}

func (s *Server) logError(format string, args ...any) {
	fmt.Fprintf(s.stderr, "ERROR "+format+"\n", args...)
}

// Run starts the listener and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	fmt.Fprintf(s.stdout, "xscriptd %s\n", s.version)

	addr := s.listenAddr()

	if s.config.Server.Dev || s.config.Dev.WatchReload {
		watcher, err := NewWatcher(s, s.stdout, s.stderr)
		if err != nil {
			s.logError("failed to create watcher: %v", err)
		} else {
			s.watcher = watcher
			if err := s.watcher.Start(ctx); err != nil {
				s.logError("failed to start watcher: %v", err)
			}
			defer s.watcher.Close()
		}
	}

	var handler http.Handler = s.mux
	handler = newProxyAware(handler, s.config.Server.Proxy)
	handler = newSecurityHeaders(handler, s.config.Security, s.config.Server.Dev)
	if s.config.Logging.Level != "error" {
		handler = newRequestLogger(handler, s.stdout, s.config.Logging.Format)
	}
	handler = newCompressionHandler(handler, s.config.Compression)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if s.config.Server.Dev {
			fmt.Fprintf(s.stdout, "listening on http://%s (development mode)\n", addr)
			errCh <- s.server.ListenAndServe()
		} else {
			fmt.Fprintf(s.stdout, "listening on https://%s\n", addr)
			errCh <- s.listenAndServeTLS()
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintf(s.stdout, "shutting down\n")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Close()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) listenAddr() string {
	host := s.config.Server.Host
	port := s.config.Server.Port
	if s.config.Server.Dev {
		if host == "" {
			host = "localhost"
		}
		if port == 0 || port == 443 {
			port = 8080
		}
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func (s *Server) listenAndServeTLS() error {
	cfg := s.config.Server.HTTPS
	if cfg.Cert != "" && cfg.Key != "" {
		s.logInfo("using manual TLS certificates")
		return s.server.ListenAndServeTLS(cfg.Cert, cfg.Key)
	}
	if !cfg.Auto {
		return fmt.Errorf("https requires either auto: true or cert/key paths")
	}
	return s.listenAndServeAutocert()
}

func (s *Server) listenAndServeAutocert() error {
	cfg := s.config.Server.HTTPS
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(s.config.BaseDir, "certs")
	}
	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(cacheDir),
		HostPolicy: s.hostPolicy(),
	}
	if cfg.Email != "" {
		manager.Email = cfg.Email
	}
	s.server.TLSConfig = &tls.Config{
		GetCertificate: manager.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
	}
	go s.runHTTPRedirect(manager)
	s.logInfo("automatic TLS enabled via Let's Encrypt (cache: %s)", cacheDir)
	return s.server.ListenAndServeTLS("", "")
}

func (s *Server) hostPolicy() autocert.HostPolicy {
	hosts := make([]string, 0, len(s.config.Vhosts))
	for _, vh := range s.config.Vhosts {
		hosts = append(hosts, vh.Host)
	}
	if len(hosts) == 0 {
		return nil
	}
	return autocert.HostWhitelist(hosts...)
}

func (s *Server) runHTTPRedirect(manager *autocert.Manager) {
	redirectHandler := manager.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := "https://" + r.Host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	}))
	httpServer := &http.Server{Addr: ":80", Handler: redirectHandler, ReadHeaderTimeout: 10 * time.Second}
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logError("http redirect server: %v", err)
	}
}
