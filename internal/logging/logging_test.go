package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"finrag/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", config.LogConfig{Level: "DEBUG", Format: "console"}, false},
		{"bad level", config.LogConfig{Level: "loud", Format: "json"}, true},
		{"bad format", config.LogConfig{Level: "info", Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	requestLogger := zap.New(core).With(zap.String("request_id", "abc"))

	ctx := WithContext(context.Background(), requestLogger)
	FromContext(ctx, zap.NewNop()).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["request_id"])

	assert.NotNil(t, FromContext(context.Background(), nil))
}
