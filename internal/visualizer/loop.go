package visualizer

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"sync"
	"time"
)

// Sampler supplies analyser frames.
type Sampler interface {
	FrequencyData() []byte
	TimeDomainData() []byte
}

// subscriberBuffer is small: a late viewer only needs the newest picture.
const subscriberBuffer = 2

// Loop renders the sampler at a fixed rate while started.
type Loop struct {
	sampler Sampler
	fps     int

	mu       sync.Mutex
	renderer *Renderer
	cancel   context.CancelFunc
	done     chan struct{}
	subs     map[chan []byte]struct{}
	frames   uint64
}

// NewLoop creates a stopped loop with a canvas of at least 800x300.
func NewLoop(sampler Sampler, width, height, fps int) *Loop {
	if fps <= 0 {
		fps = 60
	}
	return &Loop{
		sampler:  sampler,
		fps:      fps,
		renderer: NewRenderer(width, height),
		subs:     make(map[chan []byte]struct{}),
	}
}

// Start launches the frame loop. It fails without a sampler and is a no-op
// when already running.
func (l *Loop) Start(ctx context.Context) bool {
	if l.sampler == nil {
		log.Printf("Cannot start visualizer: no analyser")
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		log.Printf("Visualizer already running")
		return true
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	w, h := l.renderer.Size()
	log.Printf("Visualizer started: %s/%s, %dx%d @ %d fps",
		l.renderer.settings.Mode, l.renderer.settings.ColorScheme, w, h, l.fps)
	go l.run(ctx, done)
	return true
}

// Stop cancels the pending frame, waits for the loop to exit and clears the
// canvas.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if done == nil {
		return
	}
	cancel()
	<-done
	log.Printf("Visualizer stopped")
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}

func (l *Loop) Settings() Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer.Settings()
}

func (l *Loop) SetSettings(s Settings) {
	l.mu.Lock()
	l.renderer.SetSettings(s)
	l.mu.Unlock()
	log.Printf("Visualizer set to %s/%s", s.Mode, s.ColorScheme)
}

// Resize changes the canvas size, keeping the 100x300 minimum.
func (l *Loop) Resize(width, height int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.renderer.Resize(width, height) {
		w, h := l.renderer.Size()
		log.Printf("Visualizer canvas resized: %dx%d", w, h)
	}
}

func (l *Loop) Size() (width, height int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer.Size()
}

// Frames returns how many frames have been rendered since creation.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Latest returns the current canvas as PNG.
func (l *Loop) Latest() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var buf bytes.Buffer
	if err := l.renderer.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Subscribe returns a channel receiving each rendered frame as JPEG. Slow
// subscribers miss frames.
func (l *Loop) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

func (l *Loop) Unsubscribe(ch chan []byte) {
	l.mu.Lock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
	l.mu.Unlock()
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer l.finish(done)

	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := l.tick(now); err != nil {
				log.Printf("Visualizer frame error, stopping: %v", err)
				return
			}
		}
	}
}

// finish clears the canvas and marks the loop stopped.
func (l *Loop) finish(done chan struct{}) {
	l.mu.Lock()
	if l.done == done {
		l.cancel()
		l.cancel = nil
		l.done = nil
		l.renderer.Clear()
	}
	l.mu.Unlock()
	close(done)
}

func (l *Loop) tick(now time.Time) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("render panic: %v", p)
		}
	}()

	frame := Frame{Frequency: l.sampler.FrequencyData()}
	if l.Settings().Mode == Waveform {
		frame.TimeDomain = l.sampler.TimeDomainData()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.renderer.Render(frame, now)
	l.frames++

	if len(l.subs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, l.renderer.Image(), &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	pic := buf.Bytes()
	for ch := range l.subs {
		select {
		case ch <- pic:
		default:
		}
	}
	return nil
}
