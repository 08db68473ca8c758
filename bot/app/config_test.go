package app

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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: test-token
frozen:
  base_url: http://frozen.local
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "longpoll", cfg.Core.Telegram.RunMode)
	assert.Equal(t, 15*time.Second, cfg.Frozen.Timeout())
	assert.Equal(t, 4, cfg.Frozen.Parallelism)
	assert.Equal(t, 24*time.Hour, cfg.FrozenCacheTTL())
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
}

func TestLoadAdminFallsBackToCoreAdmin(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: test-token
  admin_id: 42
frozen:
  base_url: http://frozen.local
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, cfg.AdminIDs)
}

func TestLoadExplicitAdminsWin(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: test-token
  admin_id: 42
frozen:
  base_url: http://frozen.local
admin_ids: [7, 8]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, cfg.AdminIDs)
}

func TestLoadRejectsMissingToken(t *testing.T) {
	path := writeConfig(t, `
frozen:
  base_url: http://frozen.local
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestArchiveConfigLimits(t *testing.T) {
	limits := ArchiveConfig{MaxMembers: 10, MaxMemberMB: 1, MaxTotalMB: 2}.Limits()
	assert.Equal(t, 10, limits.MaxMembers)
	assert.Equal(t, int64(1<<20), limits.MaxMemberBytes)
	assert.Equal(t, int64(2<<20), limits.MaxTotalBytes)

	// zero values keep the built-in ceilings
	defaults := ArchiveConfig{}.Limits()
	assert.Equal(t, 256, defaults.MaxMembers)
}
