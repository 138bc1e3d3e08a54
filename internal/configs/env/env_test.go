package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Setenv("DUPE_INT", "12")
	t.Setenv("DUPE_FLOAT", "0.25")
	t.Setenv("DUPE_BOOL", "true")
	t.Setenv("DUPE_DURATION", "90s")
	t.Setenv("DUPE_BAD", "not-a-number")

	assert.Equal(t, 12, GetEnvInt("DUPE_INT", 1))
	assert.Equal(t, 0.25, GetEnvFloat("DUPE_FLOAT", 1))
	assert.True(t, GetEnvBool("DUPE_BOOL", false))
	assert.Equal(t, 90*time.Second, GetEnvDuration("DUPE_DURATION", time.Minute))

	assert.Equal(t, 1, GetEnvInt("DUPE_BAD", 1))
	assert.Equal(t, 0.5, GetEnvFloat("DUPE_BAD", 0.5))
	assert.False(t, GetEnvBool("DUPE_BAD", false))
	assert.Equal(t, time.Minute, GetEnvDuration("DUPE_BAD", time.Minute))
	assert.Equal(t, "fallback", GetEnv("DUPE_UNSET", "fallback"))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DUPE_FROM_FILE=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DUPE_FROM_FILE") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "loaded", GetEnv("DUPE_FROM_FILE", ""))

	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
