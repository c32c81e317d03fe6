package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestMustLoad(t *testing.T) {
	t.Run("MustLoad_Defaults", func(t *testing.T) {
		// Given: a config file that only picks the storage
		path := writeConfig(t, "storage: memory\n")

		// When: it is loaded
		conf := MustLoad(path)

		// Then: every tunable has its default
		assert.Equal(t, StorageMemory, conf.Storage)
		assert.Equal(t, "9090", conf.HTTP.Port)
		assert.Equal(t, 10*time.Second, conf.Matchmaking.WaitPerPosition)
		assert.Equal(t, 30, conf.Matchmaking.RateLimit)
		assert.Equal(t, 5*time.Minute, conf.Session.TeardownOneGone)
		assert.Equal(t, 4, conf.Session.DuplicateDepth)
		assert.Equal(t, int64(1024), conf.Websocket.ReadLimit)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
	})

	t.Run("MustLoad_EnvOverrides", func(t *testing.T) {
		path := writeConfig(t, "storage: memory\nhttp:\n  port: \"8080\"\n")
		t.Setenv("HTTP_PORT", "7070")

		conf := MustLoad(path)

		assert.Equal(t, "7070", conf.HTTP.Port)
	})

	t.Run("MustLoad_UnknownStorage", func(t *testing.T) {
		path := writeConfig(t, "storage: postgres\n")

		assert.Panics(t, func() {
			MustLoad(path)
		})
	})
}
