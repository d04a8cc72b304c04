// Package watch re-runs extraction when a project's build files change.
//
// A Watcher observes the project directory (and its gradle/ subdirectory,
// where version catalogs live) with fsnotify, keeps only build file events,
// and coalesces bursts of writes into one batch per quiet period.
package watch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// BuildFiles are the file names whose changes trigger a batch.
var BuildFiles = map[string]bool{
	"settings.gradle":     true,
	"settings.gradle.kts": true,
	"build.gradle":        true,
	"build.gradle.kts":    true,
	"gradle.properties":   true,
	"libs.versions.toml":  true,
}

// IsBuildFile reports whether path names a watched build file.
func IsBuildFile(path string) bool {
	return BuildFiles[filepath.Base(path)]
}

// Op represents the type of file system operation.
type Op int

const (
	// OpCreate indicates a new file was created.
	OpCreate Op = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a change to one build file.
type Event struct {
	Path string
	Op   Op
}

// Config holds watcher settings.
type Config struct {
	// Debounce is the quiet period that closes a batch.
	Debounce time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce: 500 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher emits debounced batches of build file events.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	config  *Config

	batches chan []Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a Watcher for the project in dir.
// The watcher must be started with Start() before it will emit batches.
func New(dir string, config *Config) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: w,
		dir:     dir,
		config:  config,
		batches: make(chan []Event, 8),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the project directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	catalogDir := filepath.Join(w.dir, "gradle")
	if info, err := os.Stat(catalogDir); err == nil && info.IsDir() {
		if err := w.watcher.Add(catalogDir); err != nil {
			w.config.Logger.Printf("Warning: failed to watch %s: %v", catalogDir, err)
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	w.config.Logger.Printf("Watching %s", w.dir)
	return nil
}

// Stop stops watching and closes the Batches and Errors channels.
// It blocks until the event goroutine has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.batches)
	close(w.errors)
	return nil
}

// Batches returns the channel of debounced event batches.
func (w *Watcher) Batches() <-chan []Event {
	return w.batches
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents collects fsnotify events and flushes them once no new
// build file event has arrived for the debounce interval.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	pending := make(map[string]Op)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			ev, ok := convertEvent(event)
			if !ok {
				continue
			}
			w.config.Logger.Printf("File event: %s %s", ev.Op, ev.Path)
			pending[ev.Path] = ev.Op

			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			batch := flatten(pending)
			pending = make(map[string]Op)

			select {
			case w.batches <- batch:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent keeps build file create, write, remove and rename events.
func convertEvent(event fsnotify.Event) (Event, bool) {
	if !IsBuildFile(event.Name) {
		return Event{}, false
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return Event{}, false
	}

	return Event{Path: event.Name, Op: op}, true
}

func flatten(pending map[string]Op) []Event {
	batch := make([]Event, 0, len(pending))
	for path, op := range pending {
		batch = append(batch, Event{Path: path, Op: op})
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}
