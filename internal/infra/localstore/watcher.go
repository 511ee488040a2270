package localstore

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// ─── Cross-Process Change Watcher ───────────────────────────────────────────
// Another process (a second open session of the same account) writing the
// account document is detected via a file watch on the data directory. The
// watcher publishes the same coarse RELOAD signal the in-process store does,
// so the sync coordinator handles both paths identically.

// Watcher watches a localstore data directory and publishes RELOAD signals.
type Watcher struct {
	watcher  *fsnotify.Watcher
	notifier domain.Notifier
	dir      string

	mu       sync.Mutex
	lastSeen map[string]time.Time
	debounce time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher for the store's data directory.
func NewWatcher(store *Store, notifier domain.Notifier) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(store.Dir()); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		notifier: notifier,
		dir:      store.Dir(),
		lastSeen: make(map[string]time.Time),
		debounce: 200 * time.Millisecond, // Collapse rapid save bursts
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[localstore] watch error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// Documents land via temp-file rename; only final .json names matter.
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".json") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	accountID := strings.TrimSuffix(name, ".json")

	w.mu.Lock()
	now := time.Now()
	if last, ok := w.lastSeen[accountID]; ok && now.Sub(last) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.lastSeen[accountID] = now
	w.mu.Unlock()

	w.notifier.Publish(accountID, domain.ChangeEvent{Op: domain.OpReload})
}
