package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViperState(t *testing.T) {
	t.Helper()
	viper.Reset()
	configErr = nil
	t.Cleanup(func() {
		viper.Reset()
		configErr = nil
		setDefaults()
	})
}

func TestInitConfig_StashesParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "gonuke.yaml"),
		[]byte("logging: [unclosed"),
		0o600,
	))
	t.Chdir(dir)
	resetViperState(t)

	initConfig()

	require.Error(t, configErr, "a malformed config file must be surfaced, not swallowed")
}

func TestInitConfig_MissingFileIsNotAnError(t *testing.T) {
	t.Chdir(t.TempDir())
	resetViperState(t)

	initConfig()

	assert.NoError(t, configErr)
	// Defaults are registered regardless of the config file.
	assert.Equal(t, "info", viper.GetString("logging.level"))
	assert.Equal(t, 100, viper.GetInt("purge.batch_size"))
}
