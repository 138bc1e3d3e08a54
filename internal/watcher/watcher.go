// Package watcher submits source files as they appear in a directory tree.
//
// Events are debounced per path so a file written in several chunks is
// submitted once, after it has been quiet for the debounce window.
//
// # Thread Safety
//
// Run must be called once. Stop may be called from any goroutine.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/tokenizer"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 500 * time.Millisecond

var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// Submitter adds one submission; false means it was skipped
type Submitter interface {
	AddSubmission(ctx context.Context, path, id string) bool
}

type Watcher struct {
	root      string
	submitter Submitter
	debounce  time.Duration
	watcher   *fsnotify.Watcher

	stopOnce sync.Once
	done     chan struct{}
}

// New watches root and every directory below it. debounce <= 0 selects
// DefaultDebounce.
func New(root string, submitter Submitter, debounce time.Duration) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		root:      root,
		submitter: submitter,
		debounce:  debounce,
		watcher:   fw,
		done:      make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled or Stop is called. Pending
// files are dropped on exit.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Stop()
	log.Info().Str("directory", w.root).Dur("debounce", w.debounce).Msg("Watching for submissions")

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(w.debounce/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, pending)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")
		case now := <-ticker.C:
			for _, path := range due(pending, now, w.debounce) {
				delete(pending, path)
				w.submit(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !ignoredDirs[filepath.Base(event.Name)] {
			if err := w.addRecursive(event.Name); err != nil {
				log.Warn().Err(err).Str("directory", event.Name).Msg("Failed to watch new directory")
			}
		}
		return
	}
	if tokenizer.IsSupported(event.Name) {
		pending[event.Name] = time.Now()
	}
}

func (w *Watcher) submit(ctx context.Context, path string) {
	id := SubmissionID(path)
	if w.submitter.AddSubmission(ctx, path, id) {
		log.Debug().Str("path", path).Str("submissionId", id).Msg("Watched file submitted")
	}
}

// Stop closes the underlying watcher
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.watcher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close file watcher")
		}
	})
}

// SubmissionID names a watched file: its stem plus a short random suffix
func SubmissionID(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + uuid.NewString()[:8]
}

// due returns the paths quiet for at least window, oldest first
func due(pending map[string]time.Time, now time.Time, window time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= window {
			ready = append(ready, path)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := pending[ready[i]], pending[ready[j]]
		if !a.Equal(b) {
			return a.Before(b)
		}
		return ready[i] < ready[j]
	})
	return ready
}
