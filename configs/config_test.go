package config

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestSetupAppliesLoggingFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	env := "LOG_LEVEL=debug\nLOG_DIR=" + logDir + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))

	chdir(t, dir)
	unsetenv(t, "LOG_LEVEL", "LOG_DIR")
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})

	Setup("pases")

	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.Debug("written to file")
	data, err := os.ReadFile(filepath.Join(logDir, "pases_service.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestSetupWithoutDotEnv(t *testing.T) {
	chdir(t, t.TempDir())
	unsetenv(t, "LOG_LEVEL", "LOG_DIR")
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	Setup("pases")

	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestInstanceId(t *testing.T) {
	id := CreateUniqueInstance("pases")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetInstanceId())
}
