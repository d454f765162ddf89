package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
session:
  ttl: 45m
collaborators:
  timeout: 3s
`)

	cfg, v, err := LoadFile(path, "test")
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 45*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 3*time.Second, cfg.Collaborators.Timeout)
	assert.Equal(t, 10, cfg.Menu.DisplayThreshold)
	assert.Equal(t, 5, cfg.Menu.MaxFavorites)
	assert.Equal(t, "gazetteer", cfg.Collaborators.Geocoder.Provider)
	assert.Equal(t, "en", cfg.I18n.DefaultLanguage)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
}

func TestLoadFile_ValidationFailure(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "unknown log level",
			body: "logger:\n  level: verbose\n",
		},
		{
			name: "whatsapp enabled without token",
			body: "whatsapp:\n  enabled: true\n  api_url: https://graph.example.com\n  phone_number_id: \"1\"\n",
		},
		{
			name: "display threshold above list rows",
			body: "menu:\n  display_threshold: 25\n",
		},
		{
			name: "http geocoder without base url",
			body: "collaborators:\n  geocoder:\n    provider: http\n",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadFile(writeConfig(t, tc.body), "test")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), "test")
	assert.Error(t, err)
}

func TestGetDBConnectionString(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "astro", Password: "pw", Name: "astro", SSLMode: "disable",
	}}

	assert.Equal(t, "host=db port=5432 user=astro password=pw dbname=astro sslmode=disable", cfg.GetDBConnectionString())
}
