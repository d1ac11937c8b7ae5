package shell

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// Resolver serves the current shell config and reloads it when the file
// changes. A Resolver with an empty path keeps its config in memory.
type Resolver struct {
	path string
	log  *zap.Logger

	mu  sync.RWMutex
	cfg Config
}

// NewResolver loads the config at path, writing defaults when it is missing.
func NewResolver(path string, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{path: path, log: logger, cfg: DefaultConfig()}
	if path == "" {
		return r, nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r.cfg = cfg
	return r, nil
}

// NewStaticResolver serves cfg without a backing file.
func NewStaticResolver(cfg Config) *Resolver {
	return &Resolver{log: zap.NewNop(), cfg: cfg.clone()}
}

// Resolve picks the shell using the current config.
func (r *Resolver) Resolve(override string) (Info, error) {
	return Resolve(r.Config(), override)
}

// DefaultEnv returns a copy of the configured default environment.
func (r *Resolver) DefaultEnv() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.cfg.DefaultEnv)
}

// Config returns a copy of the current config.
func (r *Resolver) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.clone()
}

// Update validates cfg, persists it and makes it current.
func (r *Resolver) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if r.path != "" {
		if err := SaveFile(r.path, cfg); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.cfg = cfg.clone()
	r.mu.Unlock()
	return nil
}

// Reload rereads the backing file. The previous config stays in place when
// the file is invalid.
func (r *Resolver) Reload() error {
	if r.path == "" {
		return nil
	}

	cfg, err := LoadFile(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}

// Watch reloads the config whenever its file changes. It blocks until ctx
// is cancelled. The parent directory is watched so atomic replaces are seen.
func (r *Resolver) Watch(ctx context.Context) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create shell config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(r.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch shell config: %w", err)
	}

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.log.Debug("Shell config event", zap.String("op", event.Op.String()))
			debounce.Reset(reloadDebounce)

		case <-debounce.C:
			if err := r.Reload(); err != nil {
				r.log.Warn("Keeping previous shell config", zap.String("path", r.path), zap.Error(err))
				continue
			}
			cfg := r.Config()
			r.log.Info("Shell config reloaded",
				zap.String("path", r.path),
				zap.String("default_shell", cfg.DefaultShell),
				zap.Bool("login_shell", cfg.LoginShell))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("Shell config watcher error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}
