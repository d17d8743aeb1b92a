// Package library finds playable files in the music folder and follows the
// folder for new arrivals.
package library

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
)

var extensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".wave": true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
	".aac":  true,
	".opus": true,
}

// Supported reports whether path has a playable extension.
func Supported(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Scan returns every supported file under dir, sorted by path.
func Scan(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// Watch scans dir, hands the result to add, then keeps handing newly created
// files to add until ctx is cancelled. New subdirectories are followed.
func Watch(ctx context.Context, dir string, add func(paths ...string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	seen := make(map[string]bool)
	if err := addTree(watcher, dir, seen, add); err != nil {
		return err
	}
	log.Printf("Watching %s for new music (%d files)", dir, len(seen))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue // renamed away or already gone
			}
			if info.IsDir() {
				if err := addTree(watcher, ev.Name, seen, add); err != nil {
					log.Printf("Watch %s: %v", ev.Name, err)
				}
				continue
			}
			if Supported(ev.Name) && !seen[ev.Name] {
				seen[ev.Name] = true
				log.Printf("New track: %s", filepath.Base(ev.Name))
				add(ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Library watcher error: %v", err)
		}
	}
}

// addTree watches every directory under root and adds unseen files.
func addTree(w *fsnotify.Watcher, root string, seen map[string]bool, add func(paths ...string)) error {
	var fresh []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if Supported(path) && !seen[path] {
			seen[path] = true
			fresh = append(fresh, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(fresh) > 0 {
		slices.Sort(fresh)
		add(fresh...)
	}
	return nil
}
