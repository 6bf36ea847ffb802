package service

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dms/config"
	"dms/pkg/log"
)

// Watcher polls the source directory tree and emits paths of PDF files
// that have been stable for the configured monitoring window. A file is
// emitted once; Done must be called after processing so a reappearing
// file is picked up again.
type Watcher struct {
	cfg config.LoaderConfig

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(cfg config.LoaderConfig) *Watcher {
	return &Watcher{
		cfg:        cfg,
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}
}

// Run scans once per second until the context is cancelled.
func (w *Watcher) Run(ctx context.Context, fileChan chan<- string) {
	log.Infof("monitoring folder: %s", w.cfg.SourceDir)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("file watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx, fileChan)
		}
	}
}

func (w *Watcher) scan(ctx context.Context, fileChan chan<- string) {
	current := make(map[string]bool)

	err := filepath.WalkDir(w.cfg.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		current[path] = true

		if ready := w.markSeen(path); !ready {
			return nil
		}

		select {
		case fileChan <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Warnf("error while reading source directory: %v", err)
	}

	w.forgetMissing(current)
}

// markSeen tracks the file and reports whether it has been stable long
// enough to process. Files already handed out are skipped.
func (w *Watcher) markSeen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.processing[path] {
		return false
	}

	seen, exists := w.firstSeen[path]
	if !exists {
		w.firstSeen[path] = time.Now()
		log.Infof("new file detected: %s", path)
		return false
	}

	if time.Since(seen) < w.cfg.MonitoringTime {
		return false
	}

	w.processing[path] = true
	return true
}

// Done clears tracking state after a file has been processed (or moved
// away), so the same path can be imported again later.
func (w *Watcher) Done(path string) {
	w.mu.Lock()
	delete(w.processing, path)
	delete(w.firstSeen, path)
	w.mu.Unlock()
}

func (w *Watcher) forgetMissing(current map[string]bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
}
