package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scrape providers.
const (
	ProviderFirecrawl = "firecrawl"
	ProviderLocal     = "local"
)

const (
	homeEnv          = "READLATER_HOME"
	firecrawlKeyEnv  = "FIRECRAWL_API_KEY"
	openRouterKeyEnv = "OPENROUTER_API_KEY"
	envPrefix        = "READLATER_"
)

// Config holds application configuration.
type Config struct {
	// Bind is the listen address for the web server
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`

	// Port is the listen port for the web server
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// ScrapeProvider selects the scraper: "firecrawl" or "local".
	// Empty means firecrawl when an API key is set, local otherwise.
	ScrapeProvider string `json:"scrape_provider,omitempty" yaml:"scrape_provider,omitempty"`

	FirecrawlEndpoint string `json:"firecrawl_endpoint,omitempty" yaml:"firecrawl_endpoint,omitempty"`
	FirecrawlAPIKey   string `json:"firecrawl_api_key,omitempty" yaml:"firecrawl_api_key,omitempty"`

	// AIBaseURL is an OpenAI-compatible API root (OpenRouter by default)
	AIBaseURL string `json:"ai_base_url,omitempty" yaml:"ai_base_url,omitempty"`
	AIAPIKey  string `json:"ai_api_key,omitempty" yaml:"ai_api_key,omitempty"`
	AIModel   string `json:"ai_model,omitempty" yaml:"ai_model,omitempty"`

	// MapLimit caps the number of links returned by link discovery
	MapLimit int `json:"map_limit,omitempty" yaml:"map_limit,omitempty"`

	// SessionTTLHours is how long a login session stays valid
	SessionTTLHours int `json:"session_ttl_hours,omitempty" yaml:"session_ttl_hours,omitempty"`

	// ScrapeTimeoutSeconds bounds each outbound scrape or map call
	ScrapeTimeoutSeconds int `json:"scrape_timeout_seconds,omitempty" yaml:"scrape_timeout_seconds,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// MCPUserEmail is the account the MCP server acts as
	MCPUserEmail string `json:"mcp_user_email,omitempty" yaml:"mcp_user_email,omitempty"`

	// CookieSecure marks the session cookie Secure (set behind TLS)
	CookieSecure bool `json:"cookie_secure,omitempty" yaml:"cookie_secure,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:                 "127.0.0.1",
		Port:                 8080,
		LogLevel:             "info",
		FirecrawlEndpoint:    "https://api.firecrawl.dev",
		AIBaseURL:            "https://openrouter.ai/api/v1",
		AIModel:              "arcee-ai/trinity-mini:free",
		MapLimit:             5,
		SessionTTLHours:      24 * 7,
		ScrapeTimeoutSeconds: 60,
	}
}

// BaseDir returns the data directory: $READLATER_HOME or ~/.readlater.
func BaseDir() (string, error) {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".readlater"), nil
}

// Load builds configuration from defaults, then baseDir/config.json
// (or config.yaml), then environment variables.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.readlater.
func Load(baseDir string) (*Config, error) {
	file, err := loadFileRaw(baseDir)
	if err != nil {
		return nil, err
	}
	cfg := Merge(DefaultConfig(), file)
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFileRaw reads config.json, falling back to config.yaml.
// Returns zero-valued config if neither exists (not defaults).
func loadFileRaw(baseDir string) (*Config, error) {
	candidates := []struct {
		name      string
		unmarshal func([]byte, any) error
	}{
		{"config.json", json.Unmarshal},
		{"config.yaml", yaml.Unmarshal},
		{"config.yml", yaml.Unmarshal},
	}

	for _, c := range candidates {
		path := filepath.Join(baseDir, c.name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		cfg := &Config{}
		if err := c.unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return cfg, nil
	}
	return &Config{}, nil
}

// applyEnv overrides fields from READLATER_* variables and the provider API key variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}

	str(firecrawlKeyEnv, &c.FirecrawlAPIKey)
	str(openRouterKeyEnv, &c.AIAPIKey)

	str(envPrefix+"BIND", &c.Bind)
	str(envPrefix+"LOG_LEVEL", &c.LogLevel)
	str(envPrefix+"SCRAPE_PROVIDER", &c.ScrapeProvider)
	str(envPrefix+"FIRECRAWL_ENDPOINT", &c.FirecrawlEndpoint)
	str(envPrefix+"FIRECRAWL_API_KEY", &c.FirecrawlAPIKey)
	str(envPrefix+"AI_BASE_URL", &c.AIBaseURL)
	str(envPrefix+"AI_API_KEY", &c.AIAPIKey)
	str(envPrefix+"AI_MODEL", &c.AIModel)
	str(envPrefix+"MCP_USER_EMAIL", &c.MCPUserEmail)

	for name, dst := range map[string]*int{
		envPrefix + "PORT":                   &c.Port,
		envPrefix + "MAP_LIMIT":              &c.MapLimit,
		envPrefix + "SESSION_TTL_HOURS":      &c.SessionTTLHours,
		envPrefix + "SCRAPE_TIMEOUT_SECONDS": &c.ScrapeTimeoutSeconds,
		envPrefix + "DB_MAX_OPEN_CONNS":      &c.DBMaxOpenConns,
		envPrefix + "DB_MAX_IDLE_CONNS":      &c.DBMaxIdleConns,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(envPrefix + "COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCOOKIE_SECURE: %w", envPrefix, err)
		}
		c.CookieSecure = b
	}
	if v, ok := lookup(envPrefix + "DISABLED_TOOLS"); ok && v != "" {
		c.DisabledTools = mergeStringSlice(c.DisabledTools, strings.Split(v, ","))
	}
	return nil
}

// Provider resolves the effective scrape provider.
func (c *Config) Provider() string {
	switch strings.ToLower(strings.TrimSpace(c.ScrapeProvider)) {
	case ProviderFirecrawl:
		return ProviderFirecrawl
	case ProviderLocal:
		return ProviderLocal
	}
	if c.FirecrawlAPIKey != "" {
		return ProviderFirecrawl
	}
	return ProviderLocal
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// ScrapeTimeout returns the per-call timeout for scraper requests.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutSeconds) * time.Second
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// LoopbackBind reports whether the web server only listens on a loopback address.
func (c *Config) LoopbackBind() bool {
	host := strings.Trim(c.Bind, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Bind = firstString(overlay.Bind, base.Bind)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.ScrapeProvider = firstString(overlay.ScrapeProvider, base.ScrapeProvider)
	result.FirecrawlEndpoint = firstString(overlay.FirecrawlEndpoint, base.FirecrawlEndpoint)
	result.FirecrawlAPIKey = firstString(overlay.FirecrawlAPIKey, base.FirecrawlAPIKey)
	result.AIBaseURL = firstString(overlay.AIBaseURL, base.AIBaseURL)
	result.AIAPIKey = firstString(overlay.AIAPIKey, base.AIAPIKey)
	result.AIModel = firstString(overlay.AIModel, base.AIModel)
	result.MCPUserEmail = firstString(overlay.MCPUserEmail, base.MCPUserEmail)

	result.Port = firstInt(overlay.Port, base.Port)
	result.MapLimit = firstInt(overlay.MapLimit, base.MapLimit)
	result.SessionTTLHours = firstInt(overlay.SessionTTLHours, base.SessionTTLHours)
	result.ScrapeTimeoutSeconds = firstInt(overlay.ScrapeTimeoutSeconds, base.ScrapeTimeoutSeconds)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.CookieSecure = base.CookieSecure || overlay.CookieSecure

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
