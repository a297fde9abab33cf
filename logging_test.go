package luckyreel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggingRejectsBadLevel(t *testing.T) {
	_, err := SetupLogging(LogConfig{Level: "loud"})
	assert.ErrorContains(t, err, `parse log level "loud"`)
}

func TestSetupLoggingToFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "luckyreel.log")
	closer, err := SetupLogging(LogConfig{Level: "warn", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Str("game", "c").Msg("kept")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"kept"`)
	assert.Contains(t, string(b), `"game":"c"`)
	assert.NotContains(t, string(b), "dropped")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
