// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/arxiv-agent/pkg/types"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LogConfig
		verbose bool
		want    zapcore.Level
	}{
		{"default info", types.LogConfig{}, false, zapcore.InfoLevel},
		{"configured warn", types.LogConfig{Level: "warn"}, false, zapcore.WarnLevel},
		{"verbose wins", types.LogConfig{Level: "error"}, true, zapcore.DebugLevel},
		{"development", types.LogConfig{Development: true, Level: "debug"}, false, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, tt.verbose)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(types.LogConfig{Level: "loud"}, false)
	assert.ErrorContains(t, err, "invalid log level")
}
