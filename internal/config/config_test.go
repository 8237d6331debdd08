package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"CALENDAR_BACKEND", "SQLITE_PATH", "REDIS_ADDR", "REDIS_PASSWORD",
	"REDIS_DB", "METRICS_ADDR", "CONFIG_PATH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults to google backend", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendGoogle, cfg.CalendarBackend)
		assert.Equal(t, 0, cfg.RedisDB)
		assert.False(t, cfg.UseRedis())
	})

	t.Run("sqlite with redis", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CALENDAR_BACKEND", " SQLite ")
		t.Setenv("SQLITE_PATH", "/var/lib/sdr/calendar.db")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_PASSWORD", "secret")
		t.Setenv("REDIS_DB", "2")
		t.Setenv("METRICS_ADDR", ":9100")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendSQLite, cfg.CalendarBackend)
		assert.Equal(t, "/var/lib/sdr/calendar.db", cfg.SQLitePath)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.Equal(t, "secret", cfg.RedisPassword)
		assert.Equal(t, 2, cfg.RedisDB)
		assert.Equal(t, ":9100", cfg.MetricsAddr)
		assert.True(t, cfg.UseRedis())
	})

	invalidTests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "sqlite without path",
			env:     map[string]string{"CALENDAR_BACKEND": "sqlite"},
			wantErr: "SQLITE_PATH is required",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"CALENDAR_BACKEND": "outlook"},
			wantErr: "CALENDAR_BACKEND must be one of",
		},
		{
			name:    "non numeric redis db",
			env:     map[string]string{"REDIS_DB": "zero"},
			wantErr: "REDIS_DB must be an integer",
		},
		{
			name:    "negative redis db",
			env:     map[string]string{"REDIS_DB": "-1"},
			wantErr: "REDIS_DB must not be negative",
		},
	}

	for _, tt := range invalidTests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseRedisDB(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"empty string", "", 0, false},
		{"spaces", "  ", 0, false},
		{"number", "3", 3, false},
		{"padded number", " 4 ", 4, false},
		{"invalid string", "abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRedisDB(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadWithFile_RealEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := dir + "/.env"
	content := "CALENDAR_BACKEND=sqlite\nSQLITE_PATH=/tmp/envfile.db\nREDIS_ADDR=redis:6379\nREDIS_DB=1\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	// godotenv.Load does NOT overwrite existing env vars, so we must unset them.
	for _, key := range allKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	cfg, err := LoadWithFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.CalendarBackend)
	assert.Equal(t, "/tmp/envfile.db", cfg.SQLitePath)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 1, cfg.RedisDB)
}

func TestLoadWithFile_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	envFile := dir + "/.env"
	require.NoError(t, os.WriteFile(envFile, []byte("CALENDAR_BACKEND=sqlite\n"), 0o644))

	clearEnv(t)
	t.Setenv("CALENDAR_BACKEND", "memory")

	cfg, err := LoadWithFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.CalendarBackend)
}

func TestLoadWithFile_NonExistentFile(t *testing.T) {
	// Should not fail - just proceeds with env vars
	clearEnv(t)
	t.Setenv("CALENDAR_BACKEND", "memory")

	cfg, err := LoadWithFile("/nonexistent/.env")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.CalendarBackend)
}

func TestLoadWithFile_GodotenvError(t *testing.T) {
	// A directory path causes godotenv to return a non-IsNotExist error
	dir := t.TempDir()
	_, err := LoadWithFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading .env file")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{CalendarBackend: BackendGoogle}).Validate())
	assert.NoError(t, (&Config{CalendarBackend: BackendMemory}).Validate())
	assert.NoError(t, (&Config{CalendarBackend: BackendSQLite, SQLitePath: "x.db"}).Validate())

	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALENDAR_BACKEND is required")
}
