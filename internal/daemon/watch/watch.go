// Package watch drives reconciliation. File events on the project's
// manifest locations trigger a debounced file pass, and interval tickers
// back-stop both the file state and the process probe for anything fsnotify
// misses (editors that replace files, processes that exit quietly).
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/bmad-tools/dash/config"
	"github.com/bmad-tools/dash/internal/daemon/reconcile"
	"github.com/bmad-tools/dash/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher owns the fsnotify instance and the polling tickers for one
// project session.
type Watcher struct {
	root     string
	cfg      config.Watch
	rec      *reconcile.Reconciler
	notifier *fsnotify.Watcher
	logger   *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New creates a Watcher for the project at root. Manifest directories that
// do not exist yet are skipped; the interval pass still covers them.
func New(root string, cfg config.Watch, rec *reconcile.Reconciler) (*Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("watch")
	w := &Watcher{
		root:     root,
		cfg:      cfg,
		rec:      rec,
		notifier: notifier,
		logger:   logger,
	}

	for _, dir := range w.watchDirs() {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := notifier.Add(dir); err != nil {
			logger.WithError(err).Warnf("Failed to watch %s", dir)
			continue
		}
		logger.Debugf("Watching directory: %s", dir)
	}
	return w, nil
}

// watchDirs lists every directory whose files feed a status snapshot.
func (w *Watcher) watchDirs() []string {
	return []string{
		w.root,
		filepath.Join(w.root, "md"),
		filepath.Join(w.root, "md", "sprint-artifacts"),
		filepath.Join(w.root, "md", "sprint_artifacts"),
	}
}

// Start launches the event loop. It returns immediately; Stop tears the
// loop down and waits for it to exit.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx)
}

// Stop closes the watcher and waits for the loop to drain.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.notifier.Close()
		if w.done != nil {
			<-w.done
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	debounced := debounce.New(w.cfg.Debounce)
	fileTicker := time.NewTicker(w.cfg.FileInterval)
	defer fileTicker.Stop()
	probeTicker := time.NewTicker(w.cfg.ProbeInterval)
	defer probeTicker.Stop()

	// Initial pass so a freshly opened project has state before the first
	// tick.
	w.rec.Run(ctx)

	for {
		select {
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			debounced(func() { w.rec.RunFiles(ctx) })

		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)

		case <-fileTicker.C:
			w.rec.RunFiles(ctx)

		case <-probeTicker.C:
			w.rec.RunProbe(ctx)

		case <-ctx.Done():
			return
		}
	}
}

// relevant filters events down to the files the snapshots derive from.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return true
	}
	// Story artifacts carry the Status: line used for sprint overrides.
	return strings.HasSuffix(name, ".md")
}
