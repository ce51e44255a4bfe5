// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file is one secret: the filename is the key name and the trimmed
// contents are the value.
//
// Recognised key files: google-api-key, anthropic-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

// DefaultDir is where the CLI looks for secret files.
const DefaultDir = ".secrets"

// Key file names.
const (
	GoogleAPIKey    = "google-api-key"
	AnthropicAPIKey = "anthropic-api-key"
)

// Load reads every regular, non-hidden file in dir. A missing directory
// yields an empty map. Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// KeyFor names the secret file holding the API key for provider.
func KeyFor(provider types.Provider) string {
	if provider == types.ProviderClaude {
		return AnthropicAPIKey
	}
	return GoogleAPIKey
}

// ApplyAPIKey fills cfg.APIKey from secrets when the configuration does
// not already carry one. It reports whether a key is set afterwards.
func ApplyAPIKey(cfg *types.AIConfig, secrets map[string]string) bool {
	if strings.TrimSpace(cfg.APIKey) == "" {
		cfg.APIKey = secrets[KeyFor(cfg.Provider)]
	}
	return cfg.APIKey != ""
}
