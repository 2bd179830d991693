package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgersync/internal/checkpoint"
	"github.com/cleared-dev/ledgersync/internal/config"
)

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runLedgersync(t, "init", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialized ledgersync")

	for _, d := range []string{"imports", filepath.Join("imports", "processed")} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	_, err = os.Stat(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	out, err := runLedgersync(t, "init", dir,
		"--ledger-url", "http://ledger:9000",
		"--backend", "sqlite",
		"--tenant", "acme",
		"--account", "CZ9620100000002400222233",
		"--token", "tok-acme")
	require.NoError(t, err, out)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "http://ledger:9000", cfg.Ledger.URL)
	assert.Equal(t, checkpoint.BackendSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, filepath.Join(dir, "checkpoints.db"), cfg.Checkpoint.Path)
	assert.Equal(t, checkpoint.BackendSQLite, cfg.Registry.Backend)
	assert.Equal(t, filepath.Join(dir, "checkpoints.db"), cfg.Registry.Path)
	require.Len(t, cfg.Tenants, 1)
	assert.Equal(t, "acme", cfg.Tenants[0].Name)
	assert.Equal(t, "tok-acme", cfg.Tenants[0].Token)
}

func TestInit_Gitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runLedgersync(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	contents := string(data)

	for _, pattern := range []string{".env", "checkpoints.json", "registry.json", "sync-log.csv"} {
		assert.Contains(t, contents, pattern, ".gitignore should contain %s", pattern)
	}
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := runLedgersync(t, "init", dir)
	require.NoError(t, err)

	out, err := runLedgersync(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, out, "already exists")

	_, err = runLedgersync(t, "init", dir, "--force")
	require.NoError(t, err)
}

func TestInit_TenantRequiresToken(t *testing.T) {
	out, err := runLedgersync(t, "init", t.TempDir(), "--tenant", "acme")
	require.Error(t, err)
	assert.Contains(t, out, "--tenant and --token")
}
