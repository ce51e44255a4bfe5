// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-agent/internal/catalog"
	"github.com/pdiddy/arxiv-agent/internal/llm"
	"github.com/pdiddy/arxiv-agent/internal/store"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// setupViper points v at the config file and the ARXIV_AGENT_ environment.
func setupViper(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("arxiv-agent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "arxiv-agent"))
		}
	}
	v.SetEnvPrefix("ARXIV_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
}

// setDefaults registers every configuration key. AutomaticEnv only
// resolves keys viper already knows about, so each one needs a default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.timeout", 30*time.Second)
	v.SetDefault("catalog.user_agent", "")
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.page_size", catalog.BrowseLimit)
	v.SetDefault("catalog.delay", 3*time.Second)

	v.SetDefault("ingest.default_days_back", catalog.DefaultDaysBack)
	v.SetDefault("ingest.startup_categories", []string{"AI", "CL", "CV"})
	v.SetDefault("ingest.startup_days_back", 3)
	v.SetDefault("ingest.ingest_on_start", true)

	v.SetDefault("store.path", store.DefaultPath)

	v.SetDefault("ai.provider", string(types.ProviderGemini))
	v.SetDefault("ai.model", llm.DefaultGeminiModel)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.temperature", 0.5)
	v.SetDefault("ai.max_tokens", 4096)

	v.SetDefault("analysis.timeout", 2*time.Minute)
	v.SetDefault("analysis.user_agent", "")
	v.SetDefault("analysis.max_retries", 3)
	v.SetDefault("analysis.temperature", 0.2)
	v.SetDefault("analysis.run_timeout", 5*time.Minute)
	v.SetDefault("analysis.max_input_chars", 300000)
	v.SetDefault("analysis.max_pdf_bytes", 50<<20)
	v.SetDefault("analysis.cache_dir", "")

	v.SetDefault("chat.max_iterations", 10)
	v.SetDefault("chat.buffer", 16)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// loadConfig decodes v into a Config and checks the values a run cannot
// recover from.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding configuration: %w", err)
	}
	switch c.AI.Provider {
	case types.ProviderGemini, types.ProviderClaude:
	default:
		return c, fmt.Errorf("ai.provider must be %q or %q, got %q", types.ProviderGemini, types.ProviderClaude, c.AI.Provider)
	}
	if c.AI.Provider == types.ProviderClaude && c.AI.Model == llm.DefaultGeminiModel {
		c.AI.Model = llm.DefaultClaudeModel
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = store.DefaultPath
	}
	return c, nil
}
