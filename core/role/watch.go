package role

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/trezcool/classgate/core"
)

// Watcher reloads Rules from a file whenever it changes and publishes them to a Holder.
// An invalid edit is logged and the previous snapshot stays in place.
type Watcher struct {
	path   string
	holder *Holder
	opts   []Option
	logger core.Logger

	mu sync.Mutex // serializes reloads
	v  *viper.Viper
}

func NewWatcher(path string, holder *Holder, logger core.Logger, opts ...Option) *Watcher {
	v := viper.New()
	v.SetConfigFile(path)
	return &Watcher{
		path:   path,
		holder: holder,
		opts:   opts,
		logger: logger,
		v:      v,
	}
}

// Start watches the file in the background.
// The watch cannot be stopped: it lasts as long as the process, so call Start once per file.
func (w *Watcher) Start() {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			_ = w.Reload()
		}
	})
	w.v.WatchConfig()
}

// Reload re-reads the file and swaps the Holder's resolver on success.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rules, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error(fmt.Sprintf("role rules reload failed, keeping previous rules: %v", err), err)
		return err
	}
	w.holder.Store(NewResolver(rules, w.opts...))
	w.logger.Info(fmt.Sprintf("role rules reloaded from %s: %v", w.path, rules))
	return nil
}
