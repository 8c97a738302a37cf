package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryEnv(t *testing.T) {
	t.Setenv("MENU_DB_DRIVER", "memory")
	t.Setenv("MENU_AUTH", "memory")
}

func TestLoadDefaultsWithMemoryBackends(t *testing.T) {
	memoryEnv(t)

	cfg, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")})

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "menu-images", cfg.Supabase.ImageBucket)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins())
}

func TestLoadLayersYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9000
  read_timeout: 5s
  auth: memory
database:
  driver: memory
cors:
  allowed_origins: "https://a.example, https://b.example"
`), 0o600))

	t.Setenv("MENU_PORT", "9100")

	cfg, err := Load(Options{File: file, EnvFile: filepath.Join(dir, "none.env")})

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.Origins())
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SUPABASE_URL=https://xyz.supabase.co\nSUPABASE_ANON_KEY=anon\n"), 0o600))
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	os.Unsetenv("SUPABASE_URL")
	os.Unsetenv("SUPABASE_ANON_KEY")

	cfg, err := Load(Options{EnvFile: envFile})

	require.NoError(t, err)
	assert.True(t, cfg.Supabase.Enabled())
	assert.Equal(t, "supabase", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"memory everything", func(c *Config) { c.Database.Driver = "memory"; c.Server.Auth = "memory" }, true},
		{"supabase without url", func(c *Config) { c.Server.Auth = "memory" }, false},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Server.Auth = "memory" }, false},
		{"bad port", func(c *Config) { c.Database.Driver = "memory"; c.Server.Auth = "memory"; c.Server.Port = 0 }, false},
		{"redis without url", func(c *Config) {
			c.Database.Driver = "memory"
			c.Server.Auth = "memory"
			c.Session.Backend = "redis"
		}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql"; c.Server.Auth = "memory" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
