package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarot-payment-ledger/internal/config"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		name              string
		logLevel          string
		expectedSlogLevel slog.Level
	}{
		{"DebugLevel", "debug", slog.LevelDebug},
		{"InfoLevel", "info", slog.LevelInfo},
		{"WarnLevel", "WARN", slog.LevelWarn},
		{"ErrorLevel", "error", slog.LevelError},
		{"DefaultToInfo", "unknown", slog.LevelInfo},
		{"EmptyToInfo", "", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Logging: config.LoggingConfig{Level: tc.logLevel}}

			logger := NewLogger(cfg)
			require.NotNil(t, logger)

			assert.True(t, logger.Enabled(context.Background(), tc.expectedSlogLevel))
			if tc.expectedSlogLevel > slog.LevelDebug {
				assert.False(t, logger.Enabled(context.Background(), tc.expectedSlogLevel-4))
			}
		})
	}
}

func TestNewLoggerWithWriter_TagsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		Application: config.ApplicationConfig{Name: "tarot-payment-ledger", Component: config.ComponentAPIGateway},
		Logging:     config.LoggingConfig{Level: "info"},
	}

	logger := NewLoggerWithWriter(cfg, &buf)
	logger.Info("order created", "out_trade_no", "TAROT1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"logger initialized"`)
	assert.Contains(t, out, `"msg":"order created"`)
	assert.Contains(t, out, `"service":"tarot-payment-ledger"`)
	assert.Contains(t, out, `"component":"api_gateway"`)
	assert.NotContains(t, out, `"source"`)
}
