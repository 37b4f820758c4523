package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/notegraph/internal/logging"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  logging.NewDefaultConfig(),
		},
		{
			name: "json debug",
			cfg:  logging.Config{Level: "debug", Format: "json"},
		},
		{
			name:    "invalid level",
			cfg:     logging.Config{Level: "verbose", Format: "json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := logging.New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("test entry")
		})
	}
}

func TestLevelFromString(t *testing.T) {
	level, err := logging.LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = logging.LevelFromString("nope")
	assert.Error(t, err)
}
