/*
File: config.go
Version: 4.0.0
Description: Configuration structures, defaults and YAML loading for urlguard.
             Durations are kept as strings in YAML and parsed once into private fields.
*/

package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultModelLoadTimeout = 10 * time.Second
	defaultServerTimeout    = 5 * time.Second
)

// --- Configuration Structures ---

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Model     ModelConfig     `yaml:"model"`
	Guard     GuardConfig     `yaml:"guard"`
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	DNS       DNSConfig       `yaml:"dns"`
}

type LoggingConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"`
	Outputs []string `yaml:"outputs"`

	File struct {
		Path        string `yaml:"path"`
		Permissions uint32 `yaml:"permissions"`
	} `yaml:"file"`
}

type ModelConfig struct {
	InfoFile    string `yaml:"info_file"`    // Path to model_info.json
	InfoURL     string `yaml:"info_url"`     // Alternatively fetch it over HTTP
	LoadTimeout string `yaml:"load_timeout"` // Default "10s"
	Fallback    *bool  `yaml:"fallback"`     // Use built-in model on load failure (default true)

	parsedLoadTimeout time.Duration
}

func (m ModelConfig) fallbackEnabled() bool {
	return m.Fallback == nil || *m.Fallback
}

type GuardConfig struct {
	BlockThreshold  float64 `yaml:"block_threshold"`  // Default 0.85
	WarnThreshold   float64 `yaml:"warn_threshold"`   // Default 0.5
	MinURLLength    int     `yaml:"min_url_length"`   // Default 10
	CacheSize       int     `yaml:"cache_size"`       // Verdict cache entries
	RuleTTL         string  `yaml:"rule_ttl"`         // Block rule lifetime (default "30s")
	MaxRules        int     `yaml:"max_rules"`        // Default 50
	CleanupInterval string  `yaml:"cleanup_interval"` // Default "60s"
	HistorySize     int     `yaml:"history_size"`     // Default 50
	StateFile       string  `yaml:"state_file"`       // Blocked history persistence
	SaveInterval    string  `yaml:"save_interval"`    // Default "5m"
	ScanConcurrency int     `yaml:"scan_concurrency"` // Parallel link checks per scan

	AllowDomains []string `yaml:"allow_domains"` // Never warned or blocked
	DenyDomains  []string `yaml:"deny_domains"`  // Always blocked
	AllowFiles   []string `yaml:"allow_files"`   // Plain or HOSTS-format lists
	DenyFiles    []string `yaml:"deny_files"`

	parsedRuleTTL         time.Duration
	parsedCleanupInterval time.Duration
	parsedSaveInterval    time.Duration
}

type ServerConfig struct {
	Listen         []string `yaml:"listen"`          // Plain HTTP (h2c) listeners
	ListenTLS      []string `yaml:"listen_tls"`      // HTTPS listeners
	HTTP3          bool     `yaml:"http3"`           // Also serve HTTP/3 on listen_tls
	Timeout        string   `yaml:"timeout"`         // Per-request timeout
	AllowedClients []string `yaml:"allowed_clients"` // CIDRs; empty allows everyone
	RobotsTxt      bool     `yaml:"robots_txt"`

	TLS struct {
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"tls"`

	parsedTimeout        time.Duration
	parsedAllowedClients []*net.IPNet
}

type RateLimitConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ClientQPS        int    `yaml:"client_qps"`
	ClientBurst      int    `yaml:"client_burst"`
	CleanupInterval  string `yaml:"cleanup_interval"`
	ClientExpiration string `yaml:"client_expiration"`

	parsedCleanupInterval  time.Duration
	parsedClientExpiration time.Duration
}

type DNSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Listen       []string `yaml:"listen"`        // UDP+TCP listeners
	Upstream     string   `yaml:"upstream"`      // host:port
	Timeout      string   `yaml:"timeout"`       // Upstream timeout
	ScoreQueries bool     `yaml:"score_queries"` // Classify http://<qname> as well
	BlockTTL     uint32   `yaml:"block_ttl"`

	parsedTimeout time.Duration
}

// --- Configuration Loading ---

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig unmarshals YAML and fills in defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig is what an empty config file yields.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if len(cfg.Logging.Outputs) == 0 {
		cfg.Logging.Outputs = []string{"console"}
	}

	// Model
	if cfg.Model.Fallback == nil {
		on := true
		cfg.Model.Fallback = &on
	}
	cfg.Model.parsedLoadTimeout = parseDurationOr("model.load_timeout", cfg.Model.LoadTimeout, defaultModelLoadTimeout)

	// Guard
	g := &cfg.Guard
	if g.BlockThreshold <= 0 {
		g.BlockThreshold = 0.85
	}
	if g.WarnThreshold <= 0 {
		g.WarnThreshold = 0.5
	}
	if g.MinURLLength <= 0 {
		g.MinURLLength = 10
	}
	if g.CacheSize <= 0 {
		g.CacheSize = 16384
	}
	if g.MaxRules <= 0 {
		g.MaxRules = 50
	}
	if g.HistorySize <= 0 {
		g.HistorySize = 50
	}
	if g.ScanConcurrency <= 0 {
		g.ScanConcurrency = 8
	}
	g.parsedRuleTTL = parseDurationOr("guard.rule_ttl", g.RuleTTL, 30*time.Second)
	g.parsedCleanupInterval = parseDurationOr("guard.cleanup_interval", g.CleanupInterval, time.Minute)
	g.parsedSaveInterval = parseDurationOr("guard.save_interval", g.SaveInterval, 5*time.Minute)

	// Server
	if len(cfg.Server.Listen) == 0 && len(cfg.Server.ListenTLS) == 0 {
		cfg.Server.Listen = []string{"127.0.0.1:8089"}
	}
	if len(cfg.Server.ListenTLS) > 0 && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.listen_tls requires server.tls.cert_file and server.tls.key_file")
	}
	cfg.Server.parsedTimeout = parseDurationOr("server.timeout", cfg.Server.Timeout, defaultServerTimeout)
	nets, err := parseCIDRs(cfg.Server.AllowedClients)
	if err != nil {
		return fmt.Errorf("invalid server.allowed_clients: %w", err)
	}
	cfg.Server.parsedAllowedClients = nets

	// Rate limiting
	rl := &cfg.RateLimit
	if rl.ClientQPS <= 0 {
		rl.ClientQPS = 20
	}
	if rl.ClientBurst <= 0 {
		rl.ClientBurst = rl.ClientQPS * 2
	}
	rl.parsedCleanupInterval = parseDurationOr("rate_limit.cleanup_interval", rl.CleanupInterval, time.Minute)
	rl.parsedClientExpiration = parseDurationOr("rate_limit.client_expiration", rl.ClientExpiration, 5*time.Minute)

	// DNS
	if cfg.DNS.Enabled {
		if len(cfg.DNS.Listen) == 0 {
			cfg.DNS.Listen = []string{"127.0.0.1:5353"}
		}
		if cfg.DNS.Upstream == "" {
			return fmt.Errorf("dns.upstream is required when dns is enabled")
		}
		if _, _, err := net.SplitHostPort(cfg.DNS.Upstream); err != nil {
			cfg.DNS.Upstream = net.JoinHostPort(cfg.DNS.Upstream, "53")
		}
	}
	if cfg.DNS.BlockTTL == 0 {
		cfg.DNS.BlockTTL = 30
	}
	cfg.DNS.parsedTimeout = parseDurationOr("dns.timeout", cfg.DNS.Timeout, 2*time.Second)

	return nil
}

func parseDurationOr(field, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		LogWarn("[CONFIG] Invalid %s '%s', defaulting to %v", field, value, def)
		return def
	}
	return d
}

// parseCIDRs accepts CIDRs and bare IPs.
func parseCIDRs(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("bad address %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("bad cidr %q: %w", e, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
