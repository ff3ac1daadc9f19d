package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"vmpool/internal/domain"
	"vmpool/internal/engine"
	"vmpool/internal/infra/telemetry"
)

const defaultReloadDebounce = 200 * time.Millisecond

type configLoader interface {
	Load(ctx context.Context, path string) (domain.Config, error)
}

type poolApplier interface {
	UpsertPools(ctx context.Context, pools []domain.Pool) (engine.UpsertSummary, error)
}

// ReloadManager watches the config file and re-applies its pool definitions.
// Runtime settings are only read at startup; a change is reported and ignored.
type ReloadManager struct {
	path   string
	loader configLoader
	pools  poolApplier
	logger *zap.Logger

	mu      sync.Mutex
	current domain.Config
}

func newReloadManager(path string, current domain.Config, pools poolApplier, loader configLoader, logger *zap.Logger) *ReloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReloadManager{
		path:    path,
		loader:  loader,
		pools:   pools,
		logger:  logger.Named("reload"),
		current: current,
	}
}

// Start watches the directory holding the config file until ctx is done.
// Editors often replace the file instead of writing it, so the directory is
// watched and events are filtered by name.
func (m *ReloadManager) Start(ctx context.Context) error {
	if m.path == "" {
		return errors.New("config path is required")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", m.path, err)
	}
	go m.run(ctx, watcher)
	return nil
}

func (m *ReloadManager) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	target := filepath.Clean(m.path)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(defaultReloadDebounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(defaultReloadDebounce)
		case <-timerChan(timer):
			timer = nil
			if err := m.Reload(ctx); err != nil {
				m.logger.Warn("config reload failed", telemetry.EventField(telemetry.EventConfigReload), zap.Error(err))
			}
		}
	}
}

// Reload reads the config file again and upserts its pools. Pools that were
// removed from the file are kept; deleting a pool is an explicit operation.
func (m *ReloadManager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	next, err := m.loader.Load(ctx, m.path)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(m.current.Runtime, next.Runtime) {
		m.logger.Warn("runtime config changed; restart required to apply",
			telemetry.EventField(telemetry.EventConfigReload),
			zap.String("config", m.path),
		)
	}
	summary, err := m.pools.UpsertPools(ctx, next.Pools)
	if err != nil {
		return err
	}
	m.current.Pools = next.Pools
	m.logger.Info("config reload applied",
		telemetry.EventField(telemetry.EventConfigReload),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("unchanged", summary.Unchanged),
		telemetry.DurationField(time.Since(started)),
	)
	return nil
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
