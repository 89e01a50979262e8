package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Company  string `json:"company"`
	Headless bool   `json:"headless"`
	Timeout  int    `json:"timeout"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// base config
		company: "visaCal",
		timeout: 30,
	}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		timeout: 60,
		headless: true,
	}`), 0o600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{Company: "visaCal", Headless: true, Timeout: 60}, cfg)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FINSCRAPE_TEST_USERNAME=someone\n"), 0o600))
	t.Setenv("FINSCRAPE_TEST_USERNAME", "")
	os.Unsetenv("FINSCRAPE_TEST_USERNAME")

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	require.Equal(t, "someone", EnvOr("FINSCRAPE_TEST_USERNAME", "fallback"))
	require.Equal(t, "fallback", EnvOr("FINSCRAPE_TEST_UNSET", "fallback"))
}
