// Package player drives the media element from the playlist and keeps the
// playlist's transport state in step with what the element is doing.
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/satindergrewal/spectra/internal/equalizer"
	"github.com/satindergrewal/spectra/internal/media"
	"github.com/satindergrewal/spectra/internal/playlist"
)

var (
	ErrEmpty     = errors.New("playlist is empty")
	ErrPlayback  = errors.New("playback failed")
	ErrNoElement = errors.New("no audio element connected")
)

// timeUpdateInterval matches the browser's timeupdate cadence.
const timeUpdateInterval = 250 * time.Millisecond

// Player is safe for concurrent use.
type Player struct {
	store   *playlist.Store
	element *media.Element
	session *equalizer.Session

	mu sync.Mutex // serialises track changes
}

// New wires the element's end-of-track event to advance the playlist.
func New(store *playlist.Store, element *media.Element, session *equalizer.Session) *Player {
	p := &Player{store: store, element: element, session: session}
	element.SetLoop(store.Loop())
	element.OnEnded(p.handleEnded)
	return p
}

func (p *Player) Store() *playlist.Store { return p.store }

// loadCurrent makes sure the element holds the playlist's current track.
// Callers hold p.mu.
func (p *Player) loadCurrent() error {
	tr, ok := p.store.Current()
	if !ok {
		return ErrEmpty
	}
	if p.element.Src() == tr.Path {
		return nil
	}
	if err := p.element.Load(tr.Path); err != nil {
		return err
	}
	p.store.UpdateDuration(p.element.Duration())
	p.store.UpdateTime(0)
	return nil
}

func (p *Player) playLocked() error {
	if err := p.loadCurrent(); err != nil {
		return err
	}
	if !p.session.Play() {
		return ErrPlayback
	}
	p.store.SetPlaying(true)
	p.store.SetPaused(false)
	if tr, ok := p.store.Current(); ok {
		log.Printf("Now playing: %s", tr.Name)
	}
	return nil
}

// Play starts the current track, loading it first if needed.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playLocked()
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.session.Pause() {
		return ErrNoElement
	}
	p.store.SetPlaying(false)
	p.store.SetPaused(true)
	return nil
}

// Toggle plays when paused and pauses when playing.
func (p *Player) Toggle() error {
	if p.element.Paused() {
		return p.Play()
	}
	return p.Pause()
}

// Stop pauses and rewinds.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.session.Stop() {
		return ErrNoElement
	}
	p.store.SetPlaying(false)
	p.store.SetPaused(false)
	p.store.UpdateTime(0)
	return nil
}

// Select makes track i current and plays it.
func (p *Player) Select(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.SetCurrentIndex(i); err != nil {
		return err
	}
	return p.playLocked()
}

// Next advances the playlist (shuffle aware) and plays.
func (p *Player) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.store.Next(); !ok {
		return ErrEmpty
	}
	return p.playLocked()
}

// Previous steps back and plays.
func (p *Player) Previous() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.store.Previous(); !ok {
		return ErrEmpty
	}
	return p.playLocked()
}

func (p *Player) Seek(d time.Duration) error {
	if !p.session.Seek(d) {
		return ErrNoElement
	}
	p.store.UpdateTime(p.element.CurrentTime())
	return nil
}

// SetVolume clamps v to [0, 100], applies it to the master gain and returns
// the stored percentage.
func (p *Player) SetVolume(v float64) float64 {
	v = p.store.SetVolume(v)
	p.session.SetVolume(v)
	return v
}

func (p *Player) ToggleLoop() bool {
	loop := p.store.ToggleLoop()
	p.element.SetLoop(loop)
	return loop
}

func (p *Player) ToggleShuffle() bool { return p.store.ToggleShuffle() }

// Add appends paths to the playlist and returns the new count.
func (p *Player) Add(paths ...string) int { return p.store.Add(paths...) }

// Remove deletes track i. Removing the loaded track stops playback.
func (p *Player) Remove(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tracks := p.store.Tracks()
	if i >= 0 && i < len(tracks) && i == p.store.CurrentIndex() && tracks[i].Path == p.element.Src() {
		p.session.Stop()
		p.element.Unload()
		p.store.SetPlaying(false)
		p.store.SetPaused(false)
		p.store.UpdateTime(0)
		p.store.UpdateDuration(0)
	}
	return p.store.Remove(i)
}

// Clear stops playback and empties the playlist.
func (p *Player) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.Stop()
	p.element.Unload()
	p.store.Clear()
	p.store.UpdateTime(0)
	p.store.UpdateDuration(0)
}

func (p *Player) handleEnded() {
	if p.store.Count() == 0 {
		return
	}
	if err := p.Next(); err != nil {
		log.Printf("Advance after track end: %v", err)
		p.store.SetPlaying(false)
	}
}

// Run mirrors the element's position into the playlist until ctx is
// cancelled.
func (p *Player) Run(ctx context.Context) {
	ticker := time.NewTicker(timeUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.store.UpdateTime(p.element.CurrentTime())
			if p.element.Ended() {
				p.store.SetPlaying(false)
			}
		}
	}
}

// Status is the transport state reported to clients.
type Status struct {
	playlist.Snapshot
	Track   *playlist.Track `json:"track"`
	Graph   string          `json:"graph"`
	Context string          `json:"context"`
}

func (p *Player) Status() Status {
	st := Status{
		Snapshot: p.store.Snapshot(),
		Graph:    p.session.State().String(),
		Context:  "none",
	}
	if tr, ok := p.store.Current(); ok {
		st.Track = &tr
	}
	if ctx := p.session.Context(); ctx != nil {
		st.Context = ctx.State().String()
	}
	return st
}

// Describe is a one-line summary for logs.
func (p *Player) Describe() string {
	st := p.Status()
	name := "-"
	if st.Track != nil {
		name = st.Track.Name
	}
	return fmt.Sprintf("%s [%d/%d] playing=%v %.1fs/%.1fs", name, st.CurrentIndex+1, len(st.Tracks),
		st.Playing, st.CurrentTime, st.Duration)
}
