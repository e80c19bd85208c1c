package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/shelf/internal/optimistic"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, optimistic.DeleteMark, cfg.Policy())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelf", "config.toml")
	in := &Config{
		ServerURL:    "https://shelf.example",
		Username:     "reader",
		Session:      "tok",
		Transport:    "rpc",
		DeletePolicy: "remove",
	}
	require.NoError(t, Save(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, optimistic.DeleteRemove, out.Policy())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadFillsDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.toml")
	require.NoError(t, os.WriteFile(partial, []byte("username = \"reader\"\n"), 0600))
	cfg, err := Load(partial)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, "rest", cfg.Transport)
	assert.Equal(t, "mark", cfg.DeletePolicy)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("transport = \"carrier-pigeon\"\n"), 0600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "unknown transport")

	garbage := filepath.Join(dir, "garbage.toml")
	require.NoError(t, os.WriteFile(garbage, []byte("= = ="), 0600))
	_, err = Load(garbage)
	assert.Error(t, err)
}

func TestSetAndSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, SetSession(path, "reader", "tok"))
	require.NoError(t, Set(path, "delete_policy", "remove"))
	assert.Error(t, Set(path, "delete_policy", "shred"))
	assert.Error(t, Set(path, "color", "blue"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "reader", cfg.Username)
	assert.Equal(t, "tok", cfg.Session)
	assert.Equal(t, "remove", cfg.DeletePolicy)

	require.NoError(t, ClearSession(path))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Session)
	assert.Equal(t, "remove", cfg.DeletePolicy, "clearing the session keeps other keys")
}

func TestConcurrentUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(path, Default()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, Update(path, func(c *Config) error {
				c.Username += "x"
				return nil
			}))
		}()
	}
	wg.Wait()

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "xxxxxxxxxx", cfg.Username)
}

func TestPathAndServerOverrides(t *testing.T) {
	t.Setenv("SHELF_CONFIG", "/tmp/custom.toml")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.toml", p)

	cfg := Default()
	assert.Equal(t, DefaultServerURL, cfg.Server())
	t.Setenv("SHELF_SERVER_URL", "http://other:9000")
	assert.Equal(t, "http://other:9000", cfg.Server())
}
