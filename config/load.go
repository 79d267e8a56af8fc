package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file with ${VAR} environment interpolation.
// If configPath is empty, default locations are searched.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path, useful when the caller needs to know the file location
// (e.g. to watch it for hot reload).
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolving config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parsing config: %w", err)
	}
	cfg.BaseDir = baseDir

	for i := range cfg.Vhosts {
		if cfg.Vhosts[i].DocRoot != "" && !filepath.IsAbs(cfg.Vhosts[i].DocRoot) {
			cfg.Vhosts[i].DocRoot = filepath.Join(baseDir, cfg.Vhosts[i].DocRoot)
		}
		if cfg.Vhosts[i].Stylesheet != "" && !filepath.IsAbs(cfg.Vhosts[i].Stylesheet) {
			cfg.Vhosts[i].Stylesheet = filepath.Join(baseDir, cfg.Vhosts[i].Stylesheet)
		}
	}

	if err := validateBasic(cfg); err != nil {
		return nil, "", err
	}

	return cfg, absPath, nil
}

// Validate performs full configuration validation including HTTPS settings.
// Call after CLI overrides (like --dev) have been applied.
func Validate(cfg *Config) error {
	if err := validateBasic(cfg); err != nil {
		return err
	}
	return validateHTTPS(cfg)
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > XSCRIPT_CONFIG env > ./xscript.yaml > ~/.config/xscript/xscript.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("XSCRIPT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("XSCRIPT_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("xscript.yaml"); err == nil {
		return "xscript.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "xscript", "xscript.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no config file found (tried XSCRIPT_CONFIG, xscript.yaml, ~/.config/xscript/xscript.yaml)")
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := string(parts[1])
		value := getenv(varName)
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

func validateBasic(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port: %d (must be 1-65535)", cfg.Server.Port))
	}

	seen := make(map[string]bool)
	for i, v := range cfg.Vhosts {
		if v.Host == "" {
			errs = append(errs, fmt.Sprintf("vhosts[%d]: host is required", i))
		}
		if seen[v.Host] {
			errs = append(errs, fmt.Sprintf("vhosts[%d]: duplicate host %q", i, v.Host))
		}
		seen[v.Host] = true
		if v.DocRoot == "" {
			errs = append(errs, fmt.Sprintf("vhosts[%d]: docroot is required", i))
		}
	}

	if cfg.Mode != "production" && cfg.Mode != "development" {
		errs = append(errs, fmt.Sprintf("invalid mode: %s (must be production or development)", cfg.Mode))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if cfg.Cache.Distributed != nil {
		switch cfg.Cache.Distributed.Driver {
		case "sqlite", "mysql", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("cache.distributed.driver: unknown driver %q (supported: sqlite, mysql, postgres)", cfg.Cache.Distributed.Driver))
		}
		if cfg.Cache.Distributed.DSN == "" {
			errs = append(errs, "cache.distributed.dsn is required when cache.distributed is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateHTTPS(cfg *Config) error {
	if cfg.Server.Dev {
		return nil
	}
	var errs []string
	if !cfg.Server.HTTPS.Auto && (cfg.Server.HTTPS.Cert == "" || cfg.Server.HTTPS.Key == "") {
		errs = append(errs, "production mode requires https.auto=true or both https.cert and https.key")
	}
	if cfg.Server.HTTPS.Auto && cfg.Server.HTTPS.Email == "" {
		errs = append(errs, "https.auto requires https.email for Let's Encrypt notifications")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseSize parses a size string like "10MB", "1GB", "500KB" to bytes.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSpace(strings.ToUpper(s))
	suffixes := []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}
	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.suffix))
			var num int64
			if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			return num * sf.mult, nil
		}
	}
	var num int64
	if _, err := fmt.Sscanf(s, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid size format: %s (use B, KB, MB, or GB suffix)", s)
	}
	return num, nil
}
