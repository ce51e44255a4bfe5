// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GoogleAPIKey, "  AIza-abc123  \n")
				writeFile(t, dir, AnthropicAPIKey, "sk-ant-xyz")
				return dir
			},
			want: map[string]string{
				GoogleAPIKey:    "AIza-abc123",
				AnthropicAPIKey: "sk-ant-xyz",
			},
		},
		{
			name: "missing directory is empty",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files, dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GoogleAPIKey, "valid")
				writeFile(t, dir, "empty-key", "   \n\t")
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: map[string]string{GoogleAPIKey: "valid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_UnreadableFileIsLogged(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, GoogleAPIKey, "value123")
	bad := filepath.Join(dir, AnthropicAPIKey)
	require.NoError(t, os.WriteFile(bad, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(bad, 0o644) })

	core, logs := observer.New(zap.WarnLevel)
	got, err := Load(dir, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{GoogleAPIKey: "value123"}, got)
	assert.Equal(t, 1, logs.FilterMessage("could not read secret").Len())
}

func TestApplyAPIKey(t *testing.T) {
	secrets := map[string]string{GoogleAPIKey: "g-key", AnthropicAPIKey: "a-key"}

	cfg := types.AIConfig{}
	assert.True(t, ApplyAPIKey(&cfg, secrets))
	assert.Equal(t, "g-key", cfg.APIKey)

	cfg = types.AIConfig{Provider: types.ProviderClaude}
	assert.True(t, ApplyAPIKey(&cfg, secrets))
	assert.Equal(t, "a-key", cfg.APIKey)

	cfg = types.AIConfig{APIKey: "explicit"}
	assert.True(t, ApplyAPIKey(&cfg, secrets))
	assert.Equal(t, "explicit", cfg.APIKey)

	cfg = types.AIConfig{Provider: types.ProviderClaude}
	assert.False(t, ApplyAPIKey(&cfg, map[string]string{}))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
