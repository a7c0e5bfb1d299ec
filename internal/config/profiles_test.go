package config

import (
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempConfigDir points the XDG config root at a throwaway directory
// so profile saves never touch the real user config.
func useTempConfigDir(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { xdg.Reload() })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
}

func TestParseDSN(t *testing.T) {
	p, err := ParseDSN("prod", "postgres://alice:pw@db.example.com:5433/shop")
	require.NoError(t, err)
	assert.Equal(t, "postgres", p.Type)
	assert.Equal(t, "db.example.com", p.Host)
	assert.Equal(t, 5433, p.Port)
	assert.Equal(t, "alice", p.User)
	assert.Equal(t, "pw", p.Password)
	assert.Equal(t, "shop", p.Database)

	p, err = ParseDSN("prod", "postgres://db.example.com/shop")
	require.NoError(t, err)
	assert.Equal(t, 5432, p.Port)

	p, err = ParseDSN("my", "mysql://bob@mysql.local/app")
	require.NoError(t, err)
	assert.Equal(t, "mysql", p.Type)
	assert.Equal(t, 3306, p.Port)
	assert.Equal(t, "app", p.Database)

	p, err = ParseDSN("local", "sqlite:///tmp/app.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", p.Type)
	assert.Equal(t, "/tmp/app.db", p.Database)

	// A bare path is treated as a SQLite file
	p, err = ParseDSN("local", "./app.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", p.Type)
	assert.Equal(t, "./app.db", p.Database)
}

func TestProfileLifecycle(t *testing.T) {
	useTempConfigDir(t)

	cfg := DefaultConfig()
	require.NoError(t, cfg.AddProfile(Profile{Name: "local", Type: "sqlite", Database: "app.db"}))
	require.NoError(t, cfg.AddProfile(Profile{Name: "staging", Type: "postgres", Host: "pg", Port: 5432}))

	assert.Equal(t, []string{"local", "staging"}, cfg.ListProfiles())

	p, err := cfg.GetProfile("local")
	require.NoError(t, err)
	assert.Equal(t, "app.db", p.Database)

	assert.Error(t, cfg.AddProfile(Profile{Name: "local"}))

	require.NoError(t, cfg.DeleteProfile("local"))
	assert.Equal(t, []string{"staging"}, cfg.ListProfiles())
	_, err = cfg.GetProfile("local")
	assert.Error(t, err)
	assert.Error(t, cfg.DeleteProfile("local"))

	// Adds and deletes persist across a reload
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"staging"}, loaded.ListProfiles())
}
