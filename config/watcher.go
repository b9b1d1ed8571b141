package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/utils"
)

// reloadDelay collapses the bursts of events editors produce when saving.
const reloadDelay = 200 * time.Millisecond

// A Watcher is responsible for watching for changes
// to a config from some source and delivering those changes
// to some destination.
type Watcher interface {
	Config() <-chan *Config
	Close() error
}

// NewWatcher returns a watcher that delivers the config at path each time the file changes
// and still reads as a valid config different from the last one delivered.
func NewWatcher(ctx context.Context, current *Config, logger logging.Logger) (Watcher, error) {
	if current == nil || current.ConfigFilePath == "" {
		return nil, errors.New("need a config read from a file to watch")
	}
	path, err := filepath.Abs(current.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace the file, so watch the directory
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return nil, multierr.Combine(err, fsw.Close())
	}

	w := &fsConfigWatcher{
		path:      path,
		fsw:       fsw,
		logger:    logger.Sublogger("watcher"),
		configCh:  make(chan *Config),
		last:      current,
		debounced: debounce.New(reloadDelay),
	}
	w.workers = utils.NewStoppableWorkersWithContext(ctx, w.watch)
	return w, nil
}

type fsConfigWatcher struct {
	path      string
	fsw       *fsnotify.Watcher
	logger    logging.Logger
	configCh  chan *Config
	debounced func(func())
	workers   utils.StoppableWorkers

	mu   sync.Mutex
	last *Config
}

func (w *fsConfigWatcher) Config() <-chan *Config {
	return w.configCh
}

func (w *fsConfigWatcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			w.debounced(func() { w.reload(ctx) })
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("error watching config", "path", w.path, "error", err)
		}
	}
}

func (w *fsConfigWatcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := Read(ctx, w.path, w.logger)
	if err != nil {
		w.logger.Warnw("ignoring unreadable config change", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	diff, err := DiffConfigs(*w.last, *cfg)
	if err == nil && diff.Equal() {
		w.mu.Unlock()
		return
	}
	w.last = cfg
	w.mu.Unlock()

	select {
	case <-ctx.Done():
	case w.configCh <- cfg:
	}
}

func (w *fsConfigWatcher) Close() error {
	w.workers.Stop()
	return w.fsw.Close()
}
