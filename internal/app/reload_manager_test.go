package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/catalog"
	"vmpool/internal/infra/store/memstore"
)

const reloadConfigV1 = `
storage:
  driver: memory
pools:
  - id: ubuntu
    maximumCount: 4
`

const reloadConfigV2 = `
storage:
  driver: memory
pools:
  - id: ubuntu
    maximumCount: 8
  - id: windows
    maximumCount: 2
    enabled: false
`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newReloadFixture(t *testing.T, logger *zap.Logger) (*ReloadManager, *engine.Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmpool.yaml")
	writeConfig(t, path, reloadConfigV1)

	loader := catalog.NewLoader(zap.NewNop())
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)

	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	eng := engine.New(store, engine.Options{})
	_, err = eng.UpsertPools(context.Background(), cfg.Pools)
	require.NoError(t, err)

	return newReloadManager(path, cfg, eng, loader, logger), eng, path
}

func TestReloadManager_ReloadUpsertsPools(t *testing.T) {
	manager, eng, path := newReloadFixture(t, zap.NewNop())
	writeConfig(t, path, reloadConfigV2)

	require.NoError(t, manager.Reload(context.Background()))

	pools, err := eng.ListPools(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, 8, pools[0].MaximumCount)
	require.Equal(t, "windows", pools[1].ID)
	require.False(t, pools[1].Enabled)
}

func TestReloadManager_KeepsPoolsMissingFromFile(t *testing.T) {
	manager, eng, path := newReloadFixture(t, zap.NewNop())
	writeConfig(t, path, "storage:\n  driver: memory\n")

	require.NoError(t, manager.Reload(context.Background()))

	pools, err := eng.ListPools(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, pools, 1)
}

func TestReloadManager_InvalidConfigKeepsState(t *testing.T) {
	manager, eng, path := newReloadFixture(t, zap.NewNop())
	writeConfig(t, path, "storage:\n  driver: memory\npools:\n  - id: ubuntu\n    maximumCount: -1\n")

	err := manager.Reload(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximumCount must be >= 0")

	pool, err := eng.GetPool(context.Background(), "ubuntu")
	require.NoError(t, err)
	require.Equal(t, 4, pool.MaximumCount)
}

func TestReloadManager_RuntimeChangeNeedsRestart(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	manager, _, path := newReloadFixture(t, zap.New(core))
	writeConfig(t, path, "storage:\n  driver: memory\nlockTimeoutMillis: 10\n")

	require.NoError(t, manager.Reload(context.Background()))
	require.Equal(t, 1, logs.FilterMessage("runtime config changed; restart required to apply").Len())
}

func TestReloadManager_WatchesFile(t *testing.T) {
	manager, eng, path := newReloadFixture(t, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, manager.Start(ctx))

	writeConfig(t, path, reloadConfigV2)

	require.Eventually(t, func() bool {
		pool, err := eng.GetPool(context.Background(), "windows")
		return err == nil && pool.MaximumCount == 2
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReadPoolFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "pools.csv")
	writeConfig(t, csvPath, "id,name,max,enabled,software\nwin10,Windows 10 (Windows),5,true,\"Office (2019)\"\n")

	pools, err := readPoolFile(csvPath, "")
	require.NoError(t, err)
	require.Equal(t, []domain.Pool{{
		ID:                "win10",
		DisplayName:       "Windows 10",
		MaximumCount:      5,
		Enabled:           true,
		OSName:            "Windows",
		InstalledSoftware: []domain.Software{{Name: "Office", Version: "2019"}},
	}}, pools)

	yamlPath := filepath.Join(dir, "pools.yml")
	writeConfig(t, yamlPath, "pools:\n  - id: ubuntu\n    displayName: Ubuntu\n    maximumCount: 3\n    enabled: true\n")
	pools, err = readPoolFile(yamlPath, "")
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, 3, pools[0].MaximumCount)

	_, err = readPoolFile(yamlPath, "json")
	require.Error(t, err)
}
