package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trafficpipeline/pkg/config"
)

func TestNewLogger_Level(t *testing.T) {
	logger, closer := NewLogger(config.LogConfig{Level: "warn"}, "traffic-puller")
	defer closer.Close()
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger, closer = NewLogger(config.LogConfig{Level: "bogus"}, "traffic-puller")
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "puller.log")

	logger, closer := NewLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, "traffic-puller")
	logger.Info().Str("window", "2025-10-01").Msg("Window indexed")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"Window indexed"`)
	assert.Contains(t, string(raw), `"service":"traffic-puller"`)
}
