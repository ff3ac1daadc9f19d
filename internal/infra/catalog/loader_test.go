package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"vmpool/internal/domain"
)

func TestLoader_Defaults(t *testing.T) {
	file := writeTempConfig(t, `
pools:
  - id: ubuntu
    maximumCount: 4
`)

	cfg, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
	require.NoError(t, err)

	want := domain.RuntimeConfig{
		Storage:           domain.StorageConfig{Driver: domain.StorageDriverBolt, Path: domain.DefaultStoragePath},
		LockTimeoutMillis: domain.DefaultLockTimeoutMillis,
		Retry:             domain.RetryConfig{Attempts: domain.DefaultRetryAttempts, BackoffMillis: domain.DefaultRetryBackoffMillis},
		HTTP:              domain.HTTPConfig{ListenAddress: domain.DefaultHTTPListenAddress},
		Observability: domain.ObservabilityConfig{
			ListenAddress: domain.DefaultObservabilityListenAddress,
			Metrics:       true,
			Healthz:       true,
		},
		MQ: domain.MQConfig{
			URL:                   domain.DefaultMQURL,
			Queue:                 domain.DefaultMQQueue,
			HandlerTimeoutSeconds: domain.DefaultMQHandlerTimeoutSeconds,
		},
	}
	if diff := cmp.Diff(want, cfg.Runtime); diff != "" {
		t.Fatalf("runtime mismatch (-want +got):\n%s", diff)
	}
	// Without an explicit enabled: true the pool stays disabled, as with the API and CSV import.
	require.Equal(t, []domain.Pool{{ID: "ubuntu", DisplayName: "ubuntu", MaximumCount: 4, Enabled: false}}, cfg.Pools)
}

func TestLoader_FullConfig(t *testing.T) {
	file := writeTempConfig(t, `
storage:
  driver: memory
lockTimeoutMillis: 500
retry:
  attempts: 5
  backoffMillis: 10
http:
  listenAddress: ":8081"
observability:
  metrics: false
pools:
  - id: win
    displayName: Windows 10
    maximumCount: 2
    enabled: false
    osName: Windows
    installedSoftware:
      - name: Office
        version: "2019"
`)

	cfg, err := NewLoader(nil).Load(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, domain.StorageDriverMemory, cfg.Runtime.Storage.Driver)
	require.Equal(t, 500, cfg.Runtime.LockTimeoutMillis)
	require.Equal(t, 5, cfg.Runtime.Retry.Attempts)
	require.Equal(t, ":8081", cfg.Runtime.HTTP.ListenAddress)
	require.False(t, cfg.Runtime.Observability.Metrics)
	require.True(t, cfg.Runtime.Observability.Healthz)

	want := []domain.Pool{{
		ID:                "win",
		DisplayName:       "Windows 10",
		MaximumCount:      2,
		Enabled:           false,
		OSName:            "Windows",
		InstalledSoftware: []domain.Software{{Name: "Office", Version: "2019"}},
	}}
	if diff := cmp.Diff(want, cfg.Pools); diff != "" {
		t.Fatalf("pools mismatch (-want +got):\n%s", diff)
	}
}

func TestPoolsWithoutEnabledFlagAreDisabledEverywhere(t *testing.T) {
	file := writeTempConfig(t, `
pools:
  - id: implicit
    maximumCount: 1
  - id: enabled-pool
    maximumCount: 1
    enabled: true
  - id: disabled-pool
    maximumCount: 1
    enabled: false
`)
	cfg, err := NewLoader(nil).Load(context.Background(), file)
	require.NoError(t, err)

	fromCSV, err := ParsePoolsCSV(strings.NewReader("id,name,max,enabled\nimplicit,Implicit (Linux),1,\nenabled-pool,On (Linux),1,true\ndisabled-pool,Off (Linux),1,false\n"))
	require.NoError(t, err)

	fromYAML, err := DecodePools(strings.NewReader("pools:\n  - id: implicit\n    maximumCount: 1\n  - id: enabled-pool\n    maximumCount: 1\n    enabled: true\n  - id: disabled-pool\n    maximumCount: 1\n    enabled: false\n"), ExportYAML)
	require.NoError(t, err)

	enabled := func(pools []domain.Pool) map[string]bool {
		out := make(map[string]bool, len(pools))
		for _, p := range pools {
			out[p.ID] = p.Enabled
		}
		return out
	}
	want := map[string]bool{"implicit": false, "enabled-pool": true, "disabled-pool": false}
	require.Equal(t, want, enabled(cfg.Pools))
	require.Equal(t, want, enabled(fromCSV))
	require.Equal(t, want, enabled(fromYAML))
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("VMPOOL_DB", "/var/lib/vmpool/data.db")
	t.Setenv("VMPOOL_CAPACITY", "12")
	file := writeTempConfig(t, `
storage:
  path: ${VMPOOL_DB}
http:
  listenAddress: ${VMPOOL_HTTP:-0.0.0.0:9000}
pools:
  - id: lab
    maximumCount: ${VMPOOL_CAPACITY}
`)

	cfg, err := NewLoader(nil).Load(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/vmpool/data.db", cfg.Runtime.Storage.Path)
	require.Equal(t, "0.0.0.0:9000", cfg.Runtime.HTTP.ListenAddress)
	require.Equal(t, 12, cfg.Pools[0].MaximumCount)
}

func TestLoader_AggregatesValidationErrors(t *testing.T) {
	file := writeTempConfig(t, `
storage:
  driver: sqlite
lockTimeoutMillis: 0
retry:
  attempts: 0
pools:
  - id: a
    maximumCount: -1
  - id: b
    maximumCount: 1
  - id: b
    maximumCount: 1
  - maximumCount: 1
`)

	_, err := NewLoader(nil).Load(context.Background(), file)
	require.Error(t, err)
	for _, want := range []string{
		"storage.driver must be",
		"lockTimeoutMillis must be > 0",
		"retry.attempts must be >= 1",
		"pools[0]: maximumCount must be >= 0",
		`pools[2]: duplicate id "b"`,
		"pools[3]: id is required",
	} {
		require.Contains(t, err.Error(), want)
	}
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = NewLoader(nil).Load(context.Background(), "")
	require.ErrorContains(t, err, "config path is required")
}

func TestLoader_CanceledContext(t *testing.T) {
	file := writeTempConfig(t, "pools: []\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(nil).Load(ctx, file)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpandConfigEnv_ReportsUnsetWithKeys(t *testing.T) {
	expanded, unset, err := expandConfigEnv([]byte(`
storage:
  path: ${VMPOOL_UNSET_ONE}
http:
  listenAddress: ${VMPOOL_UNSET_TWO:-fallback-host}
pools:
  - id: lab
    maximumCount: ${VMPOOL_UNSET_CAP}
    description: "${VMPOOL_UNSET_ONE}"
  - maximumCount: $VMPOOL_UNSET_CAP
`))
	require.NoError(t, err)
	require.Contains(t, string(expanded), "listenAddress: fallback-host")
	want := []unsetEnv{
		{Name: "VMPOOL_UNSET_CAP", Keys: []string{"pools[1].maximumCount", "pools[lab].maximumCount"}},
		{Name: "VMPOOL_UNSET_ONE", Keys: []string{"pools[lab].description", "storage.path"}},
	}
	if diff := cmp.Diff(want, unset); diff != "" {
		t.Fatalf("unset mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandConfigEnv_LeavesTypedScalars(t *testing.T) {
	expanded, unset, err := expandConfigEnv([]byte("retry:\n  attempts: 3\nobservability:\n  metrics: false\n"))
	require.NoError(t, err)
	require.Empty(t, unset)
	require.Contains(t, string(expanded), "attempts: 3")
	require.Contains(t, string(expanded), "metrics: false")
}

func TestLoader_WarnsAboutUnsetVariables(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	file := writeTempConfig(t, `
storage:
  driver: memory
pools:
  - id: lab
    maximumCount: ${VMPOOL_UNSET_CAP}
`)

	cfg, err := NewLoader(zap.New(core)).Load(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Pools[0].MaximumCount)

	entries := logs.FilterMessage("config references unset environment variable").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "VMPOOL_UNSET_CAP", fields["variable"])
	require.Equal(t, []any{"pools[lab].maximumCount"}, fields["keys"])
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "vmpool.yaml")
	normalized := strings.ReplaceAll(content, "\t", "  ")
	if err := os.WriteFile(path, []byte(normalized), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
