package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", NewDefaultConfig(), false},
		{"json warn", Config{Level: "warn", Format: "JSON"}, false},
		{"bad level", Config{Level: "loud", Format: "console"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkflow_AddsField(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	Workflow(zap.New(core), "imputer_linear_svm").Info("fold done")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "imputer_linear_svm", entries[0].ContextMap()["workflow"])
}
