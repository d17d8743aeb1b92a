package visualizer

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseModeAndScheme(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m, got, err)
		}
	}
	if _, err := ParseMode("oscilloscope"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("unknown mode err = %v", err)
	}
	for _, c := range ColorSchemes() {
		got, err := ParseColorScheme(c.String())
		if err != nil || got != c {
			t.Errorf("ParseColorScheme(%q) = %v, %v", c, got, err)
		}
	}
	if _, err := ParseColorScheme("sepia"); !errors.Is(err, ErrUnknownColorScheme) {
		t.Errorf("unknown scheme err = %v", err)
	}
}

func TestSampleIndexMonotonic(t *testing.T) {
	for _, m := range Modes() {
		s := strategyFor(m)
		for _, n := range []int{1, 2, 7, 128, 1024, 2048, 4096} {
			count := s.count(n)
			prev := -1
			for i := 0; i < count; i++ {
				idx := s.index(i, count, n)
				if idx < prev {
					t.Fatalf("%s n=%d: index(%d)=%d < index(%d)=%d", m, n, i, idx, i-1, prev)
				}
				if idx < 0 || idx >= n {
					t.Fatalf("%s n=%d: index(%d)=%d out of range", m, n, i, idx)
				}
				prev = idx
			}
		}
	}
}

func TestSampleIndexWarps(t *testing.T) {
	if got := SampleIndex(75, 150, 2048, LinearWarp); got != 1023 {
		t.Errorf("linear midpoint = %d, want 1023", got)
	}
	// floor(0.5^1.5 * 2047) = floor(723.72)
	if got := SampleIndex(75, 150, 2048, PowerWarp); got != 723 {
		t.Errorf("power midpoint = %d, want 723", got)
	}
	if got := SampleIndex(3, 0, 10, LinearWarp); got != 0 {
		t.Errorf("zero bars = %d", got)
	}
}

func TestColorSchemes(t *testing.T) {
	tests := []struct {
		scheme ColorScheme
		index  int
		value  byte
		want   color.RGBA
	}{
		{Rainbow, 0, 0, color.RGBA{255, 0, 0, 255}},
		{Neon, 0, 0, color.RGBA{0, 255, 255, 255}},
		{Fire, 0, 255, color.RGBA{255, 200, 0, 255}},
		{Fire, 0, 0, color.RGBA{255, 0, 0, 255}},
		{Ocean, 0, 0, color.RGBA{0, 0, 150, 255}},
		{Ocean, 0, 255, color.RGBA{0, 150, 255, 255}},
		{Monochrome, 0, 128, color.RGBA{128, 128, 128, 255}},
		{Vintage, 0, 0, color.RGBA{200, 150, 100, 255}},
		{Vintage, 0, 255, color.RGBA{255, 205, 155, 255}},
		{ColorScheme(99), 50, 255, color.RGBA{0, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := Color(tt.scheme, tt.index, 100, tt.value); got != tt.want {
			t.Errorf("Color(%s, %d, %d) = %v, want %v", tt.scheme, tt.index, tt.value, got, tt.want)
		}
	}
}

func TestHSL(t *testing.T) {
	tests := []struct {
		h, s, l float64
		want    color.RGBA
	}{
		{0, 1, 0.5, color.RGBA{255, 0, 0, 255}},
		{120, 1, 0.5, color.RGBA{0, 255, 0, 255}},
		{240, 1, 0.5, color.RGBA{0, 0, 255, 255}},
		{360, 1, 0.5, color.RGBA{255, 0, 0, 255}},
		{0, 0, 1, color.RGBA{255, 255, 255, 255}},
		{0, 1, 0, color.RGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		if got := HSL(tt.h, tt.s, tt.l); got != tt.want {
			t.Errorf("HSL(%v,%v,%v) = %v, want %v", tt.h, tt.s, tt.l, got, tt.want)
		}
	}
}

func TestAdjustBrightness(t *testing.T) {
	c := color.RGBA{100, 200, 250, 255}
	if got := AdjustBrightness(c, 1.3); got != (color.RGBA{130, 255, 255, 255}) {
		t.Errorf("brighten = %v", got)
	}
	if got := AdjustBrightness(c, 0.7); got != (color.RGBA{70, 140, 175, 255}) {
		t.Errorf("darken = %v", got)
	}
}

func TestRendererSizes(t *testing.T) {
	r := NewRenderer(10, 10)
	if w, h := r.Size(); w != 800 || h != 300 {
		t.Errorf("initial size %dx%d, want 800x300", w, h)
	}
	if !r.Resize(50, 100) {
		t.Error("Resize reported no change")
	}
	if w, h := r.Size(); w != 100 || h != 300 {
		t.Errorf("resized %dx%d, want 100x300", w, h)
	}
	if r.Resize(100, 300) {
		t.Error("Resize to same size reported a change")
	}
	if !r.Resize(1024, 480) {
		t.Error("Resize to larger size reported no change")
	}
}

func TestSilenceAlwaysDrawsPlaceholder(t *testing.T) {
	saved := strategies
	defer func() { strategies = saved }()

	var draws atomic.Int32
	for i := range strategies {
		strategies[i].draw = func(*Renderer, strategy, []byte) { draws.Add(1) }
	}

	r := NewRenderer(800, 300)
	frames := []Frame{
		{},
		{Frequency: make([]byte, 2048)},
		{Frequency: make([]byte, 2048), TimeDomain: bytes.Repeat([]byte{200}, 4096)},
	}
	for _, m := range Modes() {
		r.SetSettings(Settings{Mode: m})
		for _, f := range frames {
			if !r.Render(f, time.Now()) {
				t.Errorf("%s: silent frame rendered without placeholder", m)
			}
		}
	}
	if n := draws.Load(); n != 0 {
		t.Errorf("draw routines ran %d times on silence", n)
	}

	r.Render(Frame{Frequency: []byte{0, 1}}, time.Now())
	if draws.Load() != 1 {
		t.Error("non-silent frame did not reach a draw routine")
	}
}

func loudFrame() Frame {
	return Frame{
		Frequency:  bytes.Repeat([]byte{255}, 2048),
		TimeDomain: bytes.Repeat([]byte{64}, 4096),
	}
}

func TestSpectrumPaintsBars(t *testing.T) {
	r := NewRenderer(800, 300)
	r.SetSettings(Settings{Mode: Spectrum, ColorScheme: Fire})
	if r.Render(loudFrame(), time.Now()) {
		t.Fatal("loud frame drew placeholder")
	}
	// full-scale bars reach 90% of the height
	got := color.RGBAModel.Convert(r.Image().At(2, 290)).(color.RGBA)
	if got.R != 255 || got.G != 200 {
		t.Errorf("bar pixel = %v, want fire full intensity", got)
	}
	top := color.RGBAModel.Convert(r.Image().At(2, 5)).(color.RGBA)
	if top.R > 100 {
		t.Errorf("pixel above bars = %v, want dark", top)
	}
}

func TestEveryModeRenders(t *testing.T) {
	r := NewRenderer(800, 300)
	for _, m := range Modes() {
		for _, c := range ColorSchemes() {
			r.SetSettings(Settings{Mode: m, ColorScheme: c})
			if r.Render(loudFrame(), time.Now()) {
				t.Errorf("%s/%s drew placeholder", m, c)
			}
		}
	}
}

func TestRendererClear(t *testing.T) {
	r := NewRenderer(800, 300)
	r.Render(loudFrame(), time.Now())
	r.Clear()
	if _, _, _, a := r.Image().At(400, 150).RGBA(); a != 0 {
		t.Errorf("alpha after clear = %d", a)
	}
}

type fakeSampler struct {
	freq  []byte
	panic bool
}

func (f *fakeSampler) FrequencyData() []byte {
	if f.panic {
		panic("analyser gone")
	}
	return f.freq
}

func (f *fakeSampler) TimeDomainData() []byte { return bytes.Repeat([]byte{128}, 64) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoopStartRequiresSampler(t *testing.T) {
	l := NewLoop(nil, 800, 300, 60)
	if l.Start(context.Background()) {
		t.Error("Start succeeded without a sampler")
	}
}

func TestLoopStartStop(t *testing.T) {
	l := NewLoop(&fakeSampler{freq: bytes.Repeat([]byte{200}, 256)}, 800, 300, 100)
	if !l.Start(context.Background()) || !l.Start(context.Background()) {
		t.Fatal("Start failed")
	}
	waitFor(t, func() bool { return l.Frames() >= 3 })
	l.Stop()
	if l.Running() {
		t.Error("still running after Stop")
	}

	pic, err := l.Latest()
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(pic))
	if err != nil {
		t.Fatalf("Latest is not a PNG: %v", err)
	}
	if _, _, _, a := img.At(400, 150).RGBA(); a != 0 {
		t.Error("canvas not cleared after Stop")
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	l := NewLoop(&fakeSampler{}, 800, 300, 100)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()
	waitFor(t, func() bool { return !l.Running() })
}

func TestLoopStopsOnFrameError(t *testing.T) {
	l := NewLoop(&fakeSampler{panic: true}, 800, 300, 100)
	if !l.Start(context.Background()) {
		t.Fatal("Start failed")
	}
	waitFor(t, func() bool { return !l.Running() })
}

func TestLoopPublishesToSubscribers(t *testing.T) {
	l := NewLoop(&fakeSampler{freq: bytes.Repeat([]byte{90}, 256)}, 800, 300, 100)
	ch := l.Subscribe()
	l.Start(context.Background())
	defer l.Stop()

	select {
	case pic := <-ch:
		if len(pic) < 2 || pic[0] != 0xFF || pic[1] != 0xD8 {
			t.Error("subscriber frame is not a JPEG")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
	l.Unsubscribe(ch)
	for range ch {
		// drains buffered frames; ends because Unsubscribe closed ch
	}
}

func TestLoopSettingsAndResize(t *testing.T) {
	l := NewLoop(&fakeSampler{}, 0, 0, 0)
	l.SetSettings(Settings{Mode: Circular, ColorScheme: Ocean})
	if s := l.Settings(); s.Mode != Circular || s.ColorScheme != Ocean {
		t.Errorf("Settings = %+v", s)
	}
	l.Resize(10, 10)
	if w, h := l.Size(); w != 100 || h != 300 {
		t.Errorf("Size = %dx%d", w, h)
	}
}
