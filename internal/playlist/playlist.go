// Package playlist holds the ordered track list and the transport flags the
// UI reflects: current index, shuffle, loop, volume and playback position.
package playlist

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var ErrIndexOutOfRange = errors.New("track index out of range")

const DefaultVolume = 50

// Track is one playable file.
type Track struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// NewTrack names the track after its file, without extension.
func NewTrack(path string) Track {
	base := filepath.Base(path)
	return Track{Path: path, Name: strings.TrimSuffix(base, filepath.Ext(base))}
}

// Snapshot is a consistent copy of the store for the API.
type Snapshot struct {
	Tracks       []Track `json:"tracks"`
	CurrentIndex int     `json:"currentIndex"`
	Playing      bool    `json:"playing"`
	Paused       bool    `json:"paused"`
	Shuffle      bool    `json:"shuffle"`
	Loop         bool    `json:"loop"`
	Volume       float64 `json:"volume"`
	CurrentTime  float64 `json:"currentTime"` // seconds
	Duration     float64 `json:"duration"`    // seconds
}

// Store is safe for concurrent use.
type Store struct {
	intN func(n int) int

	mu          sync.RWMutex
	tracks      []Track
	current     int
	playing     bool
	paused      bool
	shuffle     bool
	loop        bool
	volume      float64
	currentTime time.Duration
	duration    time.Duration
}

func New() *Store {
	return &Store{intN: rand.IntN, volume: DefaultVolume}
}

// Add appends tracks for paths and returns the new count.
func (s *Store) Add(paths ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.tracks = append(s.tracks, NewTrack(p))
	}
	return len(s.tracks)
}

// Remove deletes track i. The current index keeps pointing at the same track
// when an earlier one is removed and is clamped into range when the current
// track itself is removed.
func (s *Store) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.tracks) {
		return fmt.Errorf("remove %d of %d: %w", i, len(s.tracks), ErrIndexOutOfRange)
	}
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	switch {
	case len(s.tracks) == 0:
		s.current = 0
	case i < s.current:
		s.current--
	case i == s.current:
		s.current = min(s.current, len(s.tracks)-1)
	}
	return nil
}

// Clear empties the playlist and resets the transport flags.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = nil
	s.current = 0
	s.playing = false
	s.paused = false
}

func (s *Store) SetCurrentIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.tracks) {
		return fmt.Errorf("select %d of %d: %w", i, len(s.tracks), ErrIndexOutOfRange)
	}
	s.current = i
	return nil
}

// Next advances to the following track, or a random different one in
// shuffle mode. It reports false on an empty playlist.
func (s *Store) Next() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tracks)
	if n == 0 {
		return 0, false
	}
	switch {
	case s.shuffle && n > 1:
		r := s.intN(n - 1)
		if r >= s.current {
			r++
		}
		s.current = r
	case s.shuffle:
		s.current = 0
	default:
		s.current = (s.current + 1) % n
	}
	return s.current, true
}

// Previous steps back, wrapping to the last track.
func (s *Store) Previous() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tracks)
	if n == 0 {
		return 0, false
	}
	if s.current == 0 {
		s.current = n - 1
	} else {
		s.current--
	}
	return s.current, true
}

func (s *Store) ToggleShuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuffle = !s.shuffle
	return s.shuffle
}

func (s *Store) ToggleLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = !s.loop
	return s.loop
}

// SetVolume clamps v to [0, 100] and returns the stored value. NaN keeps
// the current volume.
func (s *Store) SetVolume(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !math.IsNaN(v) {
		s.volume = max(0, min(v, 100))
	}
	return s.volume
}

func (s *Store) SetPlaying(v bool) {
	s.mu.Lock()
	s.playing = v
	s.mu.Unlock()
}

func (s *Store) SetPaused(v bool) {
	s.mu.Lock()
	s.paused = v
	s.mu.Unlock()
}

func (s *Store) UpdateTime(d time.Duration) {
	s.mu.Lock()
	s.currentTime = d
	s.mu.Unlock()
}

func (s *Store) UpdateDuration(d time.Duration) {
	s.mu.Lock()
	s.duration = d
	s.mu.Unlock()
}

// Current returns the selected track.
func (s *Store) Current() (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 || s.current >= len(s.tracks) {
		return Track{}, false
	}
	return s.tracks[s.current], true
}

func (s *Store) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) HasFiles() bool { return s.Count() > 0 }

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

func (s *Store) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Store) Shuffle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuffle
}

func (s *Store) Loop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loop
}

func (s *Store) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracks := make([]Track, len(s.tracks))
	copy(tracks, s.tracks)
	return Snapshot{
		Tracks:       tracks,
		CurrentIndex: s.current,
		Playing:      s.playing,
		Paused:       s.paused,
		Shuffle:      s.shuffle,
		Loop:         s.loop,
		Volume:       s.volume,
		CurrentTime:  s.currentTime.Seconds(),
		Duration:     s.duration.Seconds(),
	}
}
