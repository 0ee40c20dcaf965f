package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config is the immutable configuration handed to every constructor
type Config struct {
	HTTP         HTTPConfig      `yaml:"http" mapstructure:"http"`
	Search       SearchConfig    `yaml:"search" mapstructure:"search"`
	Evidence     EvidenceConfig  `yaml:"evidence" mapstructure:"evidence"`
	Authority    AuthorityConfig `yaml:"authority" mapstructure:"authority"`
	LLM          LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Pipeline     PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Resolver     ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Cache        CacheConfig     `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Server       ServerConfig    `yaml:"server" mapstructure:"server"`
	Log          LogConfig       `yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls outbound page fetches
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SearchConfig selects and tunes the search provider.
// Query templates may reference {name} and {manufacturer}.
type SearchConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"`
	APIKey     string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxResults int           `yaml:"max_results" mapstructure:"max_results"`
	Queries    []string      `yaml:"queries" mapstructure:"queries"`
}

// EvidenceConfig bounds evidence collection per entity
type EvidenceConfig struct {
	MaxSources     int `yaml:"max_sources" mapstructure:"max_sources"`
	Workers        int `yaml:"workers" mapstructure:"workers"`
	PerSourceChars int `yaml:"per_source_chars" mapstructure:"per_source_chars"`
	MaxTotalChars  int `yaml:"max_total_chars" mapstructure:"max_total_chars"`
}

// AuthorityConfig drives source ordering before fetch
type AuthorityConfig struct {
	ReferenceDomains []string          `yaml:"reference_domains" mapstructure:"reference_domains"`
	OfficialDomains  []string          `yaml:"official_domains" mapstructure:"official_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// SafetyConfig holds a block threshold per harm category
type SafetyConfig struct {
	Harassment       string `yaml:"harassment" mapstructure:"harassment"`
	HateSpeech       string `yaml:"hate_speech" mapstructure:"hate_speech"`
	SexuallyExplicit string `yaml:"sexually_explicit" mapstructure:"sexually_explicit"`
	DangerousContent string `yaml:"dangerous_content" mapstructure:"dangerous_content"`
}

// LLMConfig selects the reasoning provider
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"`
	Model       string        `yaml:"model,omitempty" mapstructure:"model"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Safety      SafetyConfig  `yaml:"safety" mapstructure:"safety"`
}

// PipelineConfig tunes orchestration
type PipelineConfig struct {
	Mode              string        `yaml:"mode" mapstructure:"mode"`
	EvidenceCharLimit int           `yaml:"evidence_char_limit" mapstructure:"evidence_char_limit"`
	DeepWorkers       int           `yaml:"deep_workers" mapstructure:"deep_workers"`
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ResolverRule adds comparators when the query contains Match
type ResolverRule struct {
	Match       string   `yaml:"match" mapstructure:"match"`
	Comparators []Entity `yaml:"comparators" mapstructure:"comparators"`
}

// ResolverConfig chooses how comparators are found
type ResolverConfig struct {
	Strategy    string         `yaml:"strategy" mapstructure:"strategy"`
	MaxEntities int            `yaml:"max_entities" mapstructure:"max_entities"`
	Rules       []ResolverRule `yaml:"rules" mapstructure:"rules"`
	Fallback    []Entity       `yaml:"fallback" mapstructure:"fallback"`
}

// CacheConfig selects the analysis cache backend
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend  string        `yaml:"backend" mapstructure:"backend"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir      string        `yaml:"dir" mapstructure:"dir"`
	RedisURL string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RateLimitConfig is the per-domain fetch budget. Hosts overrides the
// rate for individual hosts; zero there means unlimited.
type RateLimitConfig struct {
	RequestsPerSecond float64            `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int                `yaml:"burst_size" mapstructure:"burst_size"`
	Hosts             map[string]float64 `yaml:"hosts,omitempty" mapstructure:"hosts"`
}

// ServerConfig configures the HTTP ingress
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent is sent with every page fetch. Many sites reject
// obvious bot agents, so it mimics a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: 4 << 20,
		},
		Search: SearchConfig{
			Provider:   "serper",
			Timeout:    15 * time.Second,
			MaxResults: 5,
			Queries: []string{
				"{name} {manufacturer} robot",
				"{name} robot specifications",
				"{name} wikipedia",
			},
		},
		Evidence: EvidenceConfig{
			MaxSources:     5,
			Workers:        5,
			PerSourceChars: 3500,
			MaxTotalChars:  20000,
		},
		Authority: AuthorityConfig{
			ReferenceDomains: []string{"wikipedia.org", "britannica.com", "wikiwand.com"},
			OfficialDomains:  []string{"ieee.org", "spectrum.ieee.org"},
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Timeout:     60 * time.Second,
			MaxTokens:   8192,
			Temperature: 0.2,
			Safety: SafetyConfig{
				Harassment:       "BLOCK_NONE",
				HateSpeech:       "BLOCK_NONE",
				SexuallyExplicit: "BLOCK_NONE",
				DangerousContent: "BLOCK_NONE",
			},
		},
		Pipeline: PipelineConfig{
			Mode:              ModeChain,
			EvidenceCharLimit: 30000,
			DeepWorkers:       5,
			RequestTimeout:    5 * time.Minute,
		},
		Resolver: ResolverConfig{
			Strategy:    "static",
			MaxEntities: 3,
			Rules: []ResolverRule{
				{Match: "figure", Comparators: []Entity{{Name: "Optimus", Manufacturer: "Tesla"}, {Name: "Atlas", Manufacturer: "Boston Dynamics"}}},
				{Match: "optimus", Comparators: []Entity{{Name: "Figure 02", Manufacturer: "Figure AI"}, {Name: "Atlas", Manufacturer: "Boston Dynamics"}}},
				{Match: "atlas", Comparators: []Entity{{Name: "Optimus", Manufacturer: "Tesla"}, {Name: "Figure 02", Manufacturer: "Figure AI"}}},
			},
			Fallback: []Entity{{Name: "Optimus", Manufacturer: "Tesla"}, {Name: "Figure 02", Manufacturer: "Figure AI"}},
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     86400 * time.Second,
			Dir:     ".genesis-cache",
			Timeout: 10 * time.Second,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   6 * time.Minute,
			MaxBodyBytes:   1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var (
	llmProviders    = []string{"gemini", "openai", "anthropic", "claude", "ollama"}
	searchProviders = []string{"serper", "jina", "duckduckgo"}
	cacheBackends   = []string{"memory", "disk", "layered", "redis", "none"}
)

// Validate checks that the configuration can serve a request.
// It runs before any network work.
func (c Config) Validate() error {
	llm := strings.ToLower(c.LLM.Provider)
	if !oneOf(llm, llmProviders) {
		return eris.Errorf("unknown llm provider %q (supported: %s)", c.LLM.Provider, strings.Join(llmProviders, ", "))
	}
	if llm != "ollama" && c.LLM.APIKey == "" {
		return eris.Errorf("llm provider %s requires an API key", llm)
	}
	if c.LLM.Timeout <= 0 {
		return eris.New("llm.timeout must be positive")
	}

	search := strings.ToLower(c.Search.Provider)
	if !oneOf(search, searchProviders) {
		return eris.Errorf("unknown search provider %q (supported: %s)", c.Search.Provider, strings.Join(searchProviders, ", "))
	}
	if search == "serper" && c.Search.APIKey == "" {
		return eris.New("search provider serper requires an API key")
	}
	if len(c.Search.Queries) == 0 || len(c.Search.Queries) > 3 {
		return eris.New("search.queries must hold between 1 and 3 templates")
	}

	if c.Evidence.Workers <= 0 {
		return eris.New("evidence.workers must be positive")
	}
	if c.Evidence.PerSourceChars <= 0 || c.Evidence.MaxTotalChars <= 0 {
		return eris.New("evidence character caps must be positive")
	}
	if c.HTTP.Timeout <= 0 {
		return eris.New("http.timeout must be positive")
	}

	switch c.Pipeline.Mode {
	case ModeChain, ModeSingle:
	default:
		return eris.Errorf("unknown pipeline mode %q", c.Pipeline.Mode)
	}

	switch c.Resolver.Strategy {
	case "static", "lookup":
	default:
		return eris.Errorf("unknown resolver strategy %q", c.Resolver.Strategy)
	}
	if c.Resolver.MaxEntities < 1 {
		return eris.New("resolver.max_entities must be at least 1")
	}

	if c.Cache.Enabled && !oneOf(c.Cache.Backend, cacheBackends) {
		return eris.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	for host, rps := range c.RateLimiting.Hosts {
		if strings.TrimSpace(host) == "" || rps < 0 {
			return eris.Errorf("rate_limiting.hosts: invalid entry %q: %v", host, rps)
		}
	}
	return nil
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
