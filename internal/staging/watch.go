package staging

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports genome files as they appear anywhere under a staging area.
// fsnotify is not recursive, so directories created by the downloader are
// added to the watch as they show up.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	onFile  func(path string)

	mu       sync.Mutex
	seen     map[string]struct{}
	reported int

	done chan struct{}
	wg   sync.WaitGroup
}

// Watch starts watching root. onFile is called once per new genome file from
// the watcher goroutine. Files present before Watch is called are not reported.
// The watch ends when ctx is done or Close is called.
func Watch(ctx context.Context, root string, onFile func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		watcher: fw,
		onFile:  onFile,
		seen:    make(map[string]struct{}),
		done:    make(chan struct{}),
	}

	existing, err := w.addTree(root)
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, f := range existing {
		w.seen[f] = struct{}{}
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

// Count returns the number of genome files reported so far.
func (w *Watcher) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reported
}

// Close stops the watch and waits for the watcher goroutine to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			w.handle(event.Name)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Overflow or transient errors; the final scan after download is authoritative.
		}
	}
}

func (w *Watcher) handle(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		// Files may have landed before the directory was added.
		files, err := w.addTree(path)
		if err != nil {
			return
		}
		for _, f := range files {
			w.report(f)
		}
		return
	}
	if info.Mode().IsRegular() && IsGenome(path) {
		w.report(path)
	}
}

func (w *Watcher) report(path string) {
	w.mu.Lock()
	if _, ok := w.seen[path]; ok {
		w.mu.Unlock()
		return
	}
	w.seen[path] = struct{}{}
	w.reported++
	w.mu.Unlock()

	if w.onFile != nil {
		w.onFile(path)
	}
}

// addTree watches dir and all directories below it and returns the genome
// files already present.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if d.Type().IsRegular() && IsGenome(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
