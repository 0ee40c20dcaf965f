package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"OLLAMA_BASE_URL", "SERPER_API_KEY", "JINA_API_KEY", "REDIS_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearSecretEnv(t)
	v := viper.New()
	configureEnv(v)

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	def := model.DefaultConfig()
	assert.Equal(t, def.LLM.Provider, cfg.LLM.Provider)
	assert.Equal(t, def.Search.Queries, cfg.Search.Queries)
	assert.Equal(t, def.Cache.TTL, cfg.Cache.TTL)
	assert.Equal(t, def.HTTP.MaxBodyBytes, cfg.HTTP.MaxBodyBytes)
	assert.InDelta(t, def.LLM.Temperature, cfg.LLM.Temperature, 1e-9)
	require.Len(t, cfg.Resolver.Rules, len(def.Resolver.Rules))
	assert.Equal(t, def.Resolver.Rules[0], cfg.Resolver.Rules[0])
	assert.Equal(t, def.Resolver.Fallback, cfg.Resolver.Fallback)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("GENESIS_LLM_PROVIDER", "OpenAI")
	t.Setenv("GENESIS_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("GENESIS_EVIDENCE_WORKERS", "7")
	t.Setenv("GENESIS_CACHE_TTL", "1h")
	t.Setenv("GENESIS_CACHE_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	v := viper.New()
	configureEnv(v)

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.Evidence.Workers)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Cache.RedisURL)
}

func TestLoadConfigFile(t *testing.T) {
	clearSecretEnv(t)
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
search:
  provider: jina
  api_key: jina-key
pipeline:
  mode: single
resolver:
  fallback:
    - name: Digit
      manufacturer: Agility Robotics
`)))

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "jina", cfg.Search.Provider)
	assert.Equal(t, "jina-key", cfg.Search.APIKey)
	assert.Equal(t, model.ModeSingle, cfg.Pipeline.Mode)
	assert.Equal(t, []model.Entity{{Name: "Digit", Manufacturer: "Agility Robotics"}}, cfg.Resolver.Fallback)
	// untouched sections keep their defaults
	assert.Equal(t, model.DefaultConfig().Evidence, cfg.Evidence)
}

func TestApplySecretEnv(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		mutate func(*model.Config)
		check  func(*testing.T, model.Config)
	}{
		{
			name: "gemini falls back to google key",
			env:  map[string]string{"GOOGLE_API_KEY": "g-key"},
			check: func(t *testing.T, c model.Config) {
				assert.Equal(t, "g-key", c.LLM.APIKey)
			},
		},
		{
			name:   "claude alias reads anthropic key",
			env:    map[string]string{"ANTHROPIC_API_KEY": "sk-ant"},
			mutate: func(c *model.Config) { c.LLM.Provider = "claude" },
			check: func(t *testing.T, c model.Config) {
				assert.Equal(t, "sk-ant", c.LLM.APIKey)
			},
		},
		{
			name:   "ollama base url",
			env:    map[string]string{"OLLAMA_BASE_URL": "http://gpu:11434"},
			mutate: func(c *model.Config) { c.LLM.Provider = "ollama" },
			check: func(t *testing.T, c model.Config) {
				assert.Equal(t, "http://gpu:11434", c.LLM.BaseURL)
				assert.Empty(t, c.LLM.APIKey)
			},
		},
		{
			name: "configured key wins",
			env:  map[string]string{"GEMINI_API_KEY": "env-key"},
			mutate: func(c *model.Config) {
				c.LLM.APIKey = "file-key"
			},
			check: func(t *testing.T, c model.Config) {
				assert.Equal(t, "file-key", c.LLM.APIKey)
			},
		},
		{
			name: "search and redis",
			env:  map[string]string{"SERPER_API_KEY": "s-key", "REDIS_URL": "redis://r:6379"},
			check: func(t *testing.T, c model.Config) {
				assert.Equal(t, "s-key", c.Search.APIKey)
				assert.Equal(t, "redis://r:6379", c.Cache.RedisURL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearSecretEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := model.DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			applySecretEnv(&cfg)
			tt.check(t, cfg)
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", redact(""))
	assert.Equal(t, "****", redact("short"))
	assert.Equal(t, "sk-a****", redact("sk-abcdefghijkl"))
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(model.LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(model.LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(model.LogConfig{Level: "invalid", Format: "json"}))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "figure_02", sanitizeFilename("  Figure   02 "))
	assert.Equal(t, "a_b_c_d", sanitizeFilename("a/b:c.d"))
	assert.Equal(t, "report", sanitizeFilename("   "))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 300)), 100)
}
