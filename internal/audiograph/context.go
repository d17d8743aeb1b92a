// Package audiograph is a small in-process audio graph modelled on the Web
// Audio API: a Context owns nodes that are connected into a chain and fed
// with PCM frames by a media element source. Filtering and spectral analysis
// are delegated to algo-dsp and go-dsp.
package audiograph

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotSupported is returned when a context cannot be created.
	ErrNotSupported = errors.New("audio context not supported")
	// ErrInvalidState is returned for operations the graph forbids in its
	// current state (closed context, second source for an element, bad
	// connections).
	ErrInvalidState = errors.New("invalid state")
	// ErrIndexSize is returned for out-of-range node settings.
	ErrIndexSize = errors.New("index size")
)

// State is the lifecycle state of a Context.
type State int

const (
	StateSuspended State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Context owns an audio graph. Contexts start suspended.
type Context struct {
	sampleRate float64
	dest       *DestinationNode

	mu    sync.RWMutex
	state State
}

// NewContext creates a suspended context rendering at sampleRate. Rendered
// interleaved stereo frames are handed to sink by the destination node.
func NewContext(sampleRate float64, sink func(frame []int16)) (*Context, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %v: %w", sampleRate, ErrNotSupported)
	}
	c := &Context{sampleRate: sampleRate}
	c.dest = &DestinationNode{sink: sink}
	c.dest.init(c, true, c.dest.processBlock)
	return c, nil
}

// SampleRate returns the render rate in Hz.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Destination returns the final node of the graph.
func (c *Context) Destination() *DestinationNode { return c.dest }

// Resume starts rendering.
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return fmt.Errorf("resume: %w", ErrInvalidState)
	}
	c.state = StateRunning
	return nil
}

// Suspend pauses rendering; incoming frames are dropped.
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return fmt.Errorf("suspend: %w", ErrInvalidState)
	}
	c.state = StateSuspended
	return nil
}

// Close stops rendering for good. Closing twice is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	return nil
}

func (c *Context) running() bool {
	return c.State() == StateRunning
}

// CreateBiquadFilter returns a lowpass filter at 350 Hz, Q 1, 0 dB.
func (c *Context) CreateBiquadFilter() *BiquadFilterNode {
	n := &BiquadFilterNode{
		Frequency: newParam(350, 0, c.sampleRate/2),
		Q:         newParam(1, 0.0001, 1000),
		Gain:      newParam(0, -100, 100),
	}
	n.init(c, true, n.processBlock)
	return n
}

// CreateAnalyser returns an analyser with FFT size 2048 and smoothing 0.8.
func (c *Context) CreateAnalyser() *AnalyserNode {
	n := &AnalyserNode{
		smoothing: defaultSmoothing,
		minDB:     defaultMinDecibels,
		maxDB:     defaultMaxDecibels,
	}
	n.resize(defaultFFTSize)
	n.init(c, true, n.processBlock)
	return n
}

// CreateGain returns a unity gain node.
func (c *Context) CreateGain() *GainNode {
	n := &GainNode{Gain: newParam(1, 0, 10)}
	n.init(c, true, n.processBlock)
	return n
}

// MediaElement is anything that can redirect its decoded frames into a
// graph. Route must fail when the element is already routed.
type MediaElement interface {
	Route(fn func(frame []int16)) error
}

// CreateMediaElementSource routes el into this context. An element can feed
// only one source for its lifetime.
func (c *Context) CreateMediaElementSource(el MediaElement) (*MediaElementSourceNode, error) {
	if el == nil {
		return nil, fmt.Errorf("create media element source: nil element: %w", ErrInvalidState)
	}
	if c.State() == StateClosed {
		return nil, fmt.Errorf("create media element source: context closed: %w", ErrInvalidState)
	}
	n := &MediaElementSourceNode{}
	n.init(c, false, nil)
	if err := el.Route(n.deliver); err != nil {
		return nil, fmt.Errorf("create media element source: %w: %w", ErrInvalidState, err)
	}
	return n, nil
}
