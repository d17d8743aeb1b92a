// Package media provides a server-side media element: it holds one decoded
// track and emits 20ms PCM frames at real-time rate while playing.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/satindergrewal/spectra/internal/audio"
)

var (
	// ErrNoSource is returned by Play when nothing is loaded.
	ErrNoSource = errors.New("no source loaded")
	// ErrAlreadyRouted is returned by Route on the second call.
	ErrAlreadyRouted = errors.New("element already routed to an audio graph")
)

// Element plays one decoded track. Until it is routed into an audio graph
// its frames go to the fallback output.
type Element struct {
	fallback func(frame []int16)
	decode   func(path string) ([]int16, error)

	mu      sync.RWMutex
	src     string
	samples []int16
	pos     int // next frame index
	paused  bool
	ended   bool
	loop    bool
	route   func(frame []int16)
	onEnded func()
}

// NewElement creates a paused, empty element. fallback may be nil.
func NewElement(fallback func(frame []int16)) *Element {
	return &Element{
		fallback: fallback,
		decode:   audio.DecodeFile,
		paused:   true,
	}
}

// Load decodes path and makes it the current source, paused at the start.
func (e *Element) Load(path string) error {
	samples, err := e.decode(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	e.LoadPCM(path, samples)
	log.Printf("Loaded %s (%s)", filepath.Base(path), e.Duration().Round(time.Millisecond))
	return nil
}

// LoadPCM installs already decoded interleaved stereo samples at
// audio.SampleRate as the current source.
func (e *Element) LoadPCM(src string, samples []int16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
	e.samples = samples
	e.pos = 0
	e.paused = true
	e.ended = false
}

// Unload drops the current source and pauses.
func (e *Element) Unload() {
	e.LoadPCM("", nil)
}

// Src returns the path of the loaded source.
func (e *Element) Src() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.src
}

// Play starts or resumes playback. An ended element restarts from zero.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.samples) == 0 {
		return ErrNoSource
	}
	if e.ended || e.pos >= e.totalFrames() {
		e.pos = 0
	}
	e.paused = false
	e.ended = false
	return nil
}

// Pause halts playback at the current position.
func (e *Element) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *Element) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// Ended reports whether playback ran off the end without looping.
func (e *Element) Ended() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ended
}

func (e *Element) Loop() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loop
}

// SetLoop makes playback wrap to the start instead of ending.
func (e *Element) SetLoop(loop bool) {
	e.mu.Lock()
	e.loop = loop
	e.mu.Unlock()
}

// CurrentTime returns the playback position.
func (e *Element) CurrentTime() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Duration(e.pos) * audio.FrameDuration
}

// Duration returns the length of the loaded source.
func (e *Element) Duration() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return time.Duration(e.totalFrames()) * audio.FrameDuration
}

// SetCurrentTime seeks, clamping d into [0, Duration].
func (e *Element) SetCurrentTime(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	frame := int(d / audio.FrameDuration)
	e.pos = max(0, min(frame, e.totalFrames()))
	e.ended = false
}

// OnEnded registers fn to run (on the element goroutine) when playback ends.
func (e *Element) OnEnded(fn func()) {
	e.mu.Lock()
	e.onEnded = fn
	e.mu.Unlock()
}

// Route redirects frames to fn. An element can be routed only once.
func (e *Element) Route(fn func(frame []int16)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.route != nil {
		return ErrAlreadyRouted
	}
	e.route = fn
	return nil
}

// Run emits one frame per audio.FrameDuration while playing. Blocks until
// ctx is cancelled.
func (e *Element) Run(ctx context.Context) {
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Element) tick() {
	frame, out, ended, onEnded := e.next()
	if frame != nil && out != nil {
		out(frame)
	}
	if ended && onEnded != nil {
		onEnded()
	}
}

func (e *Element) next() (frame []int16, out func([]int16), ended bool, onEnded func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A routed element keeps its graph clocked with silence while idle.
	if e.paused || len(e.samples) == 0 {
		if e.route != nil {
			return silence, e.route, false, nil
		}
		return nil, nil, false, nil
	}

	total := e.totalFrames()
	if e.pos >= total {
		if !e.loop || total == 0 {
			e.paused = true
			e.ended = true
			if e.route != nil {
				return silence, e.route, true, e.onEnded
			}
			return nil, nil, true, e.onEnded
		}
		e.pos = 0
	}

	frame = e.samples[e.pos*audio.FrameSamples : (e.pos+1)*audio.FrameSamples]
	e.pos++

	out = e.route
	if out == nil {
		out = e.fallback
	}
	return frame, out, false, nil
}

var silence = make([]int16, audio.FrameSamples)

// totalFrames must be called with mu held.
func (e *Element) totalFrames() int {
	return len(e.samples) / audio.FrameSamples
}
