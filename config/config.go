// Package config holds the daemon's YAML configuration: vhosts, cache
// backend selection, operation mode and the other process-wide settings
// that xscript/ consumes through a Registry rather than globals.
package config

import "time"

// Config is the top-level daemon configuration, loaded once at startup.
type Config struct {
	BaseDir string `yaml:"-"` // directory containing the config file, for resolving relative paths

	Server      ServerConfig      `yaml:"server"`
	Vhosts      []Vhost           `yaml:"vhosts"`
	Cache       CacheConfig       `yaml:"cache"`
	Logging     LoggingConfig     `yaml:"logging"`
	Dev         DevConfig         `yaml:"dev"`
	Compression CompressionConfig `yaml:"compression"`
	Security    SecurityConfig    `yaml:"security"`
	HTTPBlock   HTTPBlockConfig   `yaml:"http_block"`

	Mode            string `yaml:"mode"`             // "production" or "development"
	DefaultEncoding string `yaml:"default_encoding"`  // legacy encoding for re-encode fallback, default "windows-1251"
	RequestBudgetMs int    `yaml:"request_budget_ms"` // default per-request deadline

	Secrets SecretTracker `yaml:"-"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host  string      `yaml:"host"`
	Port  int         `yaml:"port"`
	Dev   bool        `yaml:"-"` // set via CLI --dev flag, not config
	HTTPS HTTPSConfig `yaml:"https"`
	Proxy ProxyConfig `yaml:"proxy"`
}

// HTTPSConfig holds TLS settings (manual cert/key or Let's Encrypt autocert).
type HTTPSConfig struct {
	Auto     bool   `yaml:"auto"`
	Email    string `yaml:"email"`
	CacheDir string `yaml:"cache_dir"`
	Cert     string `yaml:"cert"`
	Key      string `yaml:"key"`
}

// ProxyConfig controls whether X-Forwarded-* headers are trusted when
// HttpBlock decides whether to append a real-IP / X-Forwarded-For header
// (spec.md §4.4.3).
type ProxyConfig struct {
	Trusted    bool     `yaml:"trusted"`
	TrustedIPs []string `yaml:"trusted_ips"`
}

// HTTPBlockConfig controls the deployment-level policy choices an
// http: block needs but that live outside any single block declaration
// (spec.md §4.4 "scheme filtering in Policy" and step 3's real-IP header).
type HTTPBlockConfig struct {
	AllowFileScheme bool   `yaml:"allow_file_scheme"`
	RealIPHeader    string `yaml:"real_ip_header"`
	AppendRealIP    bool   `yaml:"append_real_ip"`
}

// Vhost maps a hostname to a script docroot, mirroring VHostArgParam's
// resolution and the XSCRIPT_* environment surface (spec.md §6).
type Vhost struct {
	Host            string            `yaml:"host"`
	DocRoot         string            `yaml:"docroot"`
	Args            map[string]string `yaml:"args"`              // values exposed to VHostArgParam
	Stylesheet      string            `yaml:"stylesheet"`        // optional site-wide stylesheet override
	CacheTTLSeconds int               `yaml:"cache_ttl_seconds"` // whole-response cache TTL; 0 disables
}

// CacheTTL returns the vhost's whole-response cache TTL as a duration.
func (v Vhost) CacheTTL() time.Duration {
	return time.Duration(v.CacheTTLSeconds) * time.Second
}

// CacheConfig configures DocCache's two tiers (spec.md §4.7).
type CacheConfig struct {
	LocalMaxEntries int             `yaml:"local_max_entries"`
	PrefetchRatio   float64         `yaml:"prefetch_ratio"` // 0 disables prefetch
	Distributed     *DistributedDSN `yaml:"distributed"`
}

// DistributedDSN selects and configures the optional distributed cache
// backend. Driver must be sqlite, mysql or postgres (validation rejects
// any other name); the server package registers those three drivers.
type DistributedDSN struct {
	Driver string `yaml:"driver"` // "sqlite" | "mysql" | "postgres"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig controls request/diagnostic logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
	Output string `yaml:"output"` // "-" for stdout, else file path
	Quiet  bool   `yaml:"quiet"`
}

// DevConfig configures development-mode-only tooling.
type DevConfig struct {
	LogDatabase    string `yaml:"log_database"`
	LogMaxSize     string `yaml:"log_max_size"`
	LogTruncatePct int    `yaml:"log_truncate_pct"`
	WatchReload    bool   `yaml:"watch_reload"`
}

// CompressionConfig configures the gzhttp response-compression middleware
// fronting the daemon (github.com/klauspost/compress/gzhttp).
type CompressionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`    // "fastest"|"default"|"best"|"none"
	MinSize int    `yaml:"min_size"` // bytes; below this, responses pass through uncompressed
}

// HSTSConfig configures the Strict-Transport-Security header.
type HSTSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	MaxAge            string `yaml:"max_age"`
	IncludeSubDomains bool   `yaml:"include_subdomains"`
	Preload           bool   `yaml:"preload"`
}

// SecurityConfig configures the response security-header middleware.
type SecurityConfig struct {
	HSTS                HSTSConfig `yaml:"hsts"`
	ContentTypeOptions  string     `yaml:"content_type_options"`
	FrameOptions        string     `yaml:"frame_options"`
	XSSProtection       string     `yaml:"xss_protection"`
	ReferrerPolicy      string     `yaml:"referrer_policy"`
	CSP                 string     `yaml:"csp"`
	PermissionsPolicy   string     `yaml:"permissions_policy"`
}

// Defaults returns a Config with sane zero-value overrides applied.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Cache: CacheConfig{
			LocalMaxEntries: 10000,
			PrefetchRatio:   0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "-",
		},
		Compression: CompressionConfig{
			Enabled: true,
			Level:   "default",
			MinSize: 1024,
		},
		Security: SecurityConfig{
			ContentTypeOptions: "nosniff",
			FrameOptions:       "SAMEORIGIN",
			ReferrerPolicy:     "strict-origin-when-cross-origin",
		},
		Mode:            "production",
		DefaultEncoding: "windows-1251",
		RequestBudgetMs: int(30 * time.Second / time.Millisecond),
	}
}

// IsDevelopment reports whether the operation-mode switch (spec.md §7) is
// in development mode, where full diagnostic messages are passed through
// instead of minimal sanitized error bodies.
func (c *Config) IsDevelopment() bool {
	return c.Server.Dev || c.Mode == "development"
}
