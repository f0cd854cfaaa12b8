package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const baseConfig = `
organization = "Riverside Prints"

[source]
base_url = "https://remote.example.net"

[server]
port = 9000
`

func TestLoadFromFiles(t *testing.T) {
	path := writeConfig(t, "ordermirror.toml", baseConfig)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "Riverside Prints", config.Organization)
	assert.Equal(t, "https://remote.example.net", config.Source.BaseURL)
	assert.Equal(t, 9000, config.Server.Port)
	// Unset sections keep their defaults.
	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "sqlite", config.Storage.Type)
	assert.Equal(t, 3*time.Second, config.Crawler.BadgeWait)
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	first := writeConfig(t, "base.toml", baseConfig)
	second := writeConfig(t, "override.toml", `
environment = "production"

[server]
port = 9100
`)

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "production", config.Environment)
	// Values only the first file sets survive the second.
	assert.Equal(t, "Riverside Prints", config.Organization)
}

func TestLoadFromFilesValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing organization", `
[source]
base_url = "https://remote.example.net"
`},
		{"bad environment", `
organization = "X"
environment = "staging"

[source]
base_url = "https://remote.example.net"
`},
		{"bad storage type", `
organization = "X"

[source]
base_url = "https://remote.example.net"

[storage]
type = "mysql"
`},
		{"source url not a url", `
organization = "X"

[source]
base_url = "not a url"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "bad.toml", tt.body)
			_, err := LoadFromFiles(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/ordermirror.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "ordermirror.toml", baseConfig)
	t.Setenv("ORDERMIRROR_PORT", "9200")
	t.Setenv("ORDERMIRROR_ENVIRONMENT", "production")
	t.Setenv("ORDERMIRROR_STORAGE_TYPE", "postgres")
	t.Setenv("ORDERMIRROR_POSTGRES_DSN", "host=db user=mirror")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, config.Server.Port)
	assert.True(t, config.IsProduction())
	assert.Equal(t, "postgres", config.Storage.Type)
	assert.Equal(t, "host=db user=mirror", config.Storage.Postgres.DSN)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := DefaultConfig()
	ApplyFlagOverrides(config, 9300, "0.0.0.0")
	assert.Equal(t, 9300, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 9300, config.Server.Port, "zero values leave the config untouched")
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestRefreshBuffer(t *testing.T) {
	config := DefaultConfig()
	config.Images.RefreshBufferProd = 6 * time.Hour
	config.Images.RefreshBufferDev = 30 * time.Minute

	config.Environment = "development"
	assert.Equal(t, 30*time.Minute, config.RefreshBuffer())

	config.Environment = "production"
	assert.Equal(t, 6*time.Hour, config.RefreshBuffer())
}

func TestSourceURLs(t *testing.T) {
	config := DefaultConfig()
	config.Source.BaseURL = "https://remote.example.net/"
	config.Source.ListPath = "/jobs"
	config.Source.LoginPath = "/login"

	assert.Equal(t, "https://remote.example.net/jobs", config.ListURL())
	assert.Equal(t, "https://remote.example.net/login", config.LoginURL())
}
