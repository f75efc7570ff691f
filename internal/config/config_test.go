package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "stepwise.db", cfg.DB.Path)
	require.Equal(t, "apikey", cfg.Auth.Mode)
	require.Equal(t, "rules", cfg.Suggestions.Provider)
	require.Equal(t, 5, cfg.Quota.DefaultLimit)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "stepwise.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
quota:
  default_limit: 10
  plans:
    pro: 50
  tenant_plans:
    acme: pro
client:
  timeout: 3s
`), 0o644))

	t.Setenv("STEPWISE_CONFIG_PATH", path)
	t.Setenv("STEPWISE_SERVER_PORT", "9100")
	t.Setenv("STEPWISE_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, 10, cfg.Quota.DefaultLimit)
	require.Equal(t, 50, cfg.Quota.Plans["pro"])
	require.Equal(t, "pro", cfg.Quota.TenantPlans["acme"])
	require.Equal(t, 3*time.Second, cfg.Client.Timeout)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STEPWISE_DB_PATH=from-dotenv.db\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STEPWISE_DB_PATH") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv.db", cfg.DB.Path)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("STEPWISE_SERVER_PORT", "eighty")
	_, err := Load()
	require.ErrorContains(t, err, "STEPWISE_SERVER_PORT")

	t.Setenv("STEPWISE_SERVER_PORT", "")
	t.Setenv("STEPWISE_AUTH_MODE", "jwt")
	_, err = Load()
	require.ErrorContains(t, err, "STEPWISE_JWT_SECRET")

	t.Setenv("STEPWISE_AUTH_MODE", "")
	t.Setenv("STEPWISE_SUGGESTION_PROVIDER", "oracle")
	_, err = Load()
	require.ErrorContains(t, err, "oracle")
}
