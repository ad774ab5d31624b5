package registry

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is the delay after an fsnotify event before the snapshot
// checksum is compared, so a burst of write events is checked once.
const DebounceInterval = 100 * time.Millisecond

// Watcher observes the registry file for out-of-band edits (anything that
// changes the snapshot without going through a Store transaction) and
// invokes onChange so the caller can run a corruption/cycle scan. The
// add-time cycle guard makes in-band cycles impossible; hand edits are the
// only way the diagnostic scan can find anything.
type Watcher struct {
	path     string
	onChange func()

	mu      sync.Mutex // MarkClean races the debounce check
	lastSum [sha256.Size]byte
}

func NewWatcher(registryDir string, onChange func()) *Watcher {
	return &Watcher{
		path:     filepath.Join(registryDir, snapshotPath),
		onChange: onChange,
	}
}

// Run blocks until ctx is cancelled, invoking onChange whenever the file's
// checksum changes. Events arriving while a check is pending are coalesced.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.MarkClean()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != w.path {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(DebounceInterval)
				debounceC = debounce.C
			} else {
				debounce.Reset(DebounceInterval)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("registry watcher error", "error", err)
		case <-debounceC:
			debounce = nil
			debounceC = nil
			sum := w.checksum()
			w.mu.Lock()
			dirty := sum != w.lastSum
			w.lastSum = sum
			w.mu.Unlock()
			if dirty {
				w.onChange()
			}
		}
	}
}

// MarkClean records the current file contents as the expected state, so a
// save made through the Store is not reported as an out-of-band edit.
func (w *Watcher) MarkClean() {
	sum := w.checksum()
	w.mu.Lock()
	w.lastSum = sum
	w.mu.Unlock()
}

func (w *Watcher) checksum() [sha256.Size]byte {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
