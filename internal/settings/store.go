// Package settings persists user preferences (theme, language, visualizer,
// volume and EQ curve) in a JSON file and carries the theme palettes and UI
// translations.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/satindergrewal/spectra/internal/visualizer"
)

// Prefs is the persisted document.
type Prefs struct {
	Theme      string              `json:"theme"`
	Locale     string              `json:"locale"`
	Visualizer visualizer.Settings `json:"visualizer"`
	Volume     float64             `json:"volume"`
	Bands      []float64           `json:"bands,omitempty"`
}

// Defaults returns the preferences of a first run.
func Defaults() Prefs {
	return Prefs{Theme: DefaultTheme, Locale: DefaultLanguage, Volume: 50}
}

func (p Prefs) clone() Prefs {
	p.Bands = append([]float64(nil), p.Bands...)
	return p
}

// Store keeps Prefs in memory and writes every change through to disk.
type Store struct {
	path string

	mu       sync.RWMutex
	prefs    Prefs
	raw      []byte
	onChange []func(Prefs)
}

// Open loads path. A missing file yields defaults; an unreadable or corrupt
// one yields defaults and an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path, prefs: Defaults()}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	p, err := decode(data)
	if err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.prefs = p
	s.raw = data
	return s, nil
}

func decode(data []byte) (Prefs, error) {
	p := Defaults()
	if err := json.Unmarshal(data, &p); err != nil {
		return Defaults(), err
	}
	if _, ok := themes[p.Theme]; !ok {
		p.Theme = DefaultTheme
	}
	if !KnownLanguage(p.Locale) {
		p.Locale = DefaultLanguage
	}
	p.Volume = max(0, min(p.Volume, 100))
	return p, nil
}

func (s *Store) Path() string { return s.path }

// Get returns a copy of the current preferences.
func (s *Store) Get() Prefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.clone()
}

// OnChange registers fn to run after preferences are reloaded from disk.
func (s *Store) OnChange(fn func(Prefs)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Update applies fn and saves the result.
func (s *Store) Update(fn func(p *Prefs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prefs.clone()
	fn(&p)
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := writeFile(s.path, data); err != nil {
		return err
	}
	s.prefs = p
	s.raw = data
	return nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// SetTheme stores the theme, mapping unknown names to the default.
func (s *Store) SetTheme(name string) (Theme, error) {
	t := LookupTheme(name)
	return t, s.Update(func(p *Prefs) { p.Theme = t.Name })
}

// SetLanguage stores lang if a translation table exists for it.
func (s *Store) SetLanguage(lang string) error {
	if !KnownLanguage(lang) {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	return s.Update(func(p *Prefs) { p.Locale = lang })
}

func (s *Store) SetVisualizer(v visualizer.Settings) error {
	return s.Update(func(p *Prefs) { p.Visualizer = v })
}

// SetVolume stores v clamped to [0, 100]. NaN is ignored.
func (s *Store) SetVolume(v float64) error {
	if math.IsNaN(v) {
		return nil
	}
	return s.Update(func(p *Prefs) { p.Volume = max(0, min(v, 100)) })
}

func (s *Store) SetBands(gains []float64) error {
	return s.Update(func(p *Prefs) { p.Bands = append([]float64(nil), gains...) })
}

// Watch reloads the file when something else rewrites it and runs the
// OnChange callbacks. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: saves replace the file by rename.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Settings watcher error: %v", err)
		}
	}
}

func (s *Store) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	s.mu.Lock()
	if bytes.Equal(data, s.raw) {
		s.mu.Unlock()
		return
	}
	p, err := decode(data)
	if err != nil {
		s.mu.Unlock()
		log.Printf("Ignoring invalid settings file: %v", err)
		return
	}
	s.prefs = p
	s.raw = data
	callbacks := append([]func(Prefs){}, s.onChange...)
	s.mu.Unlock()

	log.Printf("Settings reloaded from %s", s.path)
	for _, fn := range callbacks {
		fn(p.clone())
	}
}
