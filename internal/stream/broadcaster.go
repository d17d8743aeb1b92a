// Package stream carries rendered audio out of the process: to HTTP MP3
// listeners, WebRTC peers and the local speaker.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satindergrewal/spectra/internal/audio"
)

// listenerBuffer holds ~3 seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans rendered frames out to any number of listeners. While
// nothing is published (paused, no track) Run keeps listeners fed with
// silence so encoders and peers stay alive.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}

	last      atomic.Int64 // unix nanos of the last Publish
	published atomic.Uint64
	dropped   atomic.Uint64
	silence   []int16
}

// Listener receives frames from the broadcaster.
type Listener struct {
	Name string
	C    chan []int16
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
		silence:   make([]int16, audio.FrameSamples),
	}
}

// Subscribe registers a listener. name only shows up in logs.
func (b *Broadcaster) Subscribe(name string) *Listener {
	l := &Listener{
		Name: name,
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes l and closes its Done channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands frame to every listener. Listeners must not modify it.
// A listener whose buffer is full misses the frame.
func (b *Broadcaster) Publish(frame []int16) {
	b.last.Store(time.Now().UnixNano())
	b.fanOut(frame)
}

func (b *Broadcaster) fanOut(frame []int16) {
	b.published.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- frame:
		default:
			b.dropped.Add(1)
		}
	}
}

// Drain subscribes as name and hands every frame to write until ctx is
// cancelled, the listener is removed or write fails. write's error is
// returned; the other two end with nil.
func (b *Broadcaster) Drain(ctx context.Context, name string, write func(frame []int16) error) error {
	l := b.Subscribe(name)
	defer b.Unsubscribe(l)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.Done():
			return nil
		case frame := <-l.C:
			if err := write(frame); err != nil {
				return err
			}
		}
	}
}

// Stats returns how many frames went out and how many deliveries were
// dropped on full listeners.
func (b *Broadcaster) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Run fills gaps in the published stream with silence until ctx is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			idle := now.UnixNano() - b.last.Load()
			if idle > int64(2*audio.FrameDuration) {
				b.fanOut(b.silence)
			}
		}
	}
}
