package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMainConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  sqlite:\n    path: "+filepath.Join(dir, "db", "billing.db")+"\n")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 100, cfg.Storage.BatchSize)
	assert.Equal(t, "water_bills", cfg.Storage.Mongo.Collection)
	assert.Equal(t, []string{"₱"}, cfg.Ingestion.CurrencySymbols)
	assert.Equal(t, []string{".xlsx", ".xls", ".csv"}, cfg.Ingestion.AllowedExtensions)
	assert.Equal(t, 5, cfg.Search.SuggestLimit)
	assert.Equal(t, 2, cfg.Search.SuggestMinChars)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "Buenavista Water District", cfg.App.Name)
	assert.True(t, cfg.App.UseDemoFallback())

	assert.DirExists(t, filepath.Join(dir, "db"))
}

func TestLoadMainConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  admin_token: secret
  read_timeout: 5s
storage:
  driver: MEMORY
  batch_size: 25
ingestion:
  currency_symbols: ["PHP", "₱"]
  allowed_extensions: ["XLSX", "xls"]
  archive_uploads: true
search:
  suggest_limit: 3
logging:
  level: debug
  format: console
app:
  name: Test District
  demo_fallback: false
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminToken)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 25, cfg.Storage.BatchSize)
	assert.Equal(t, []string{"PHP", "₱"}, cfg.Ingestion.CurrencySymbols)
	assert.Equal(t, []string{".xlsx", ".xls"}, cfg.Ingestion.AllowedExtensions)
	assert.True(t, cfg.Ingestion.ArchiveUploads)
	assert.Equal(t, 3, cfg.Search.SuggestLimit)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "Test District", cfg.App.Name)
	assert.False(t, cfg.App.UseDemoFallback())
}

func TestLoadMainConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BILLING_SERVER_PORT", "7070")
	t.Setenv("BILLING_STORAGE_DRIVER", "mongo")
	t.Setenv("BILLING_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("BILLING_ADMIN_TOKEN", "from-env")
	t.Setenv("BILLING_LOG_LEVEL", "warn")

	path := writeConfig(t, "server:\n  port: 9090\n  admin_token: from-file\n")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "from-env", cfg.Server.AdminToken)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMainConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "server: [oops"},
		{"bad port", "server:\n  port: 70000\nstorage:\n  driver: memory\n"},
		{"unknown driver", "storage:\n  driver: postgres\n"},
		{"mongo without uri", "storage:\n  driver: mongo\n"},
		{"bad level", "storage:\n  driver: memory\nlogging:\n  level: loud\n"},
		{"negative batch", "storage:\n  driver: memory\n  batch_size: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMainConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BILLING_STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)

	_, err = Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BILLING_STORAGE_DRIVER=memory\nBILLING_SERVER_PORT=6060\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("BILLING_STORAGE_DRIVER")
		os.Unsetenv("BILLING_SERVER_PORT")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("BILLING_TEST_INT", "12")
	t.Setenv("BILLING_TEST_BAD", "twelve")
	t.Setenv("BILLING_TEST_EMPTY", "")

	assert.Equal(t, 12, GetEnvOrDefaultAsInt("BILLING_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvOrDefaultAsInt("BILLING_TEST_BAD", 1))
	assert.Equal(t, 1, GetEnvOrDefaultAsInt("BILLING_TEST_UNSET", 1))
	assert.Equal(t, "fallback", GetEnvOrDefaultAsString("BILLING_TEST_EMPTY", "fallback"))
	assert.Equal(t, "12", GetEnvOrDefaultAsString("BILLING_TEST_INT", "x"))
}
