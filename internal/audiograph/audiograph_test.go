package audiograph

import (
	"errors"
	"math"
	"testing"

	"github.com/satindergrewal/spectra/internal/audio"
)

var errRouted = errors.New("already routed")

type fakeElement struct {
	route func([]int16)
}

func (f *fakeElement) Route(fn func([]int16)) error {
	if f.route != nil {
		return errRouted
	}
	f.route = fn
	return nil
}

type capture struct {
	frames [][]int16
}

func (c *capture) sink(frame []int16) {
	c.frames = append(c.frames, frame)
}

func newRunningContext(t *testing.T, sink func([]int16)) *Context {
	t.Helper()
	ctx, err := NewContext(audio.SampleRate, sink)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if err := ctx.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	return ctx
}

func sineFrame(freq, amp float64, offset int) []int16 {
	frame := make([]int16, audio.FrameSamples)
	for i := 0; i < audio.FrameSize; i++ {
		v := int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(offset+i)/audio.SampleRate))
		frame[i*2] = v
		frame[i*2+1] = v
	}
	return frame
}

// --- Context ---

func TestNewContextRejectsBadRate(t *testing.T) {
	if _, err := NewContext(0, nil); !errors.Is(err, ErrNotSupported) {
		t.Errorf("NewContext(0) err = %v, want ErrNotSupported", err)
	}
}

func TestContextLifecycle(t *testing.T) {
	ctx, err := NewContext(audio.SampleRate, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.State() != StateSuspended {
		t.Errorf("initial state = %v, want suspended", ctx.State())
	}
	if err := ctx.Resume(); err != nil || ctx.State() != StateRunning {
		t.Errorf("Resume: err=%v state=%v", err, ctx.State())
	}
	if err := ctx.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Resume(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Resume after Close err = %v, want ErrInvalidState", err)
	}
	if ctx.State().String() != "closed" {
		t.Errorf("State().String() = %q", ctx.State().String())
	}
}

// --- Param ---

func TestParamClamps(t *testing.T) {
	p := newParam(1, 0, 10)
	p.SetValue(20)
	if p.Value() != 10 {
		t.Errorf("Value = %v, want 10", p.Value())
	}
	p.SetValue(-5)
	if p.Value() != 0 {
		t.Errorf("Value = %v, want 0", p.Value())
	}
	p.SetValue(math.NaN())
	if p.Value() != 0 {
		t.Errorf("NaN changed value to %v", p.Value())
	}
	if p.DefaultValue() != 1 {
		t.Errorf("DefaultValue = %v", p.DefaultValue())
	}
}

// --- Connections ---

func TestConnectAcrossContextsFails(t *testing.T) {
	a := newRunningContext(t, nil)
	b := newRunningContext(t, nil)
	if err := a.CreateGain().Connect(b.CreateGain()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cross-context connect err = %v", err)
	}
}

func TestConnectRejectsCycle(t *testing.T) {
	ctx := newRunningContext(t, nil)
	g1, g2 := ctx.CreateGain(), ctx.CreateGain()
	if err := g1.Connect(g2); err != nil {
		t.Fatal(err)
	}
	if err := g2.Connect(g1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cycle connect err = %v, want ErrInvalidState", err)
	}
	if err := g1.Connect(g1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("self connect err = %v, want ErrInvalidState", err)
	}
}

func TestConnectIntoSourceFails(t *testing.T) {
	ctx := newRunningContext(t, nil)
	src, err := ctx.CreateMediaElementSource(&fakeElement{})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.CreateGain().Connect(src); !errors.Is(err, ErrInvalidState) {
		t.Errorf("connect into source err = %v", err)
	}
}

func TestConnectTwiceIsSingleEdge(t *testing.T) {
	ctx := newRunningContext(t, nil)
	g := ctx.CreateGain()
	g.Connect(ctx.Destination())
	g.Connect(ctx.Destination())
	if g.Outputs() != 1 {
		t.Errorf("Outputs = %d, want 1", g.Outputs())
	}
	g.Disconnect()
	if g.Outputs() != 0 {
		t.Errorf("Outputs after Disconnect = %d", g.Outputs())
	}
}

// --- Sources ---

func TestMediaElementSourceOncePerElement(t *testing.T) {
	ctx := newRunningContext(t, nil)
	el := &fakeElement{}
	if _, err := ctx.CreateMediaElementSource(el); err != nil {
		t.Fatalf("first source: %v", err)
	}
	_, err := ctx.CreateMediaElementSource(el)
	if !errors.Is(err, ErrInvalidState) || !errors.Is(err, errRouted) {
		t.Errorf("second source err = %v, want ErrInvalidState wrapping element error", err)
	}
}

func TestMediaElementSourceNilElement(t *testing.T) {
	ctx := newRunningContext(t, nil)
	if _, err := ctx.CreateMediaElementSource(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("nil element err = %v", err)
	}
}

func TestGainChainScalesOutput(t *testing.T) {
	var out capture
	ctx := newRunningContext(t, out.sink)
	el := &fakeElement{}
	src, _ := ctx.CreateMediaElementSource(el)
	gain := ctx.CreateGain()
	gain.Gain.SetValue(0.5)
	src.Connect(gain)
	gain.Connect(ctx.Destination())

	frame := make([]int16, audio.FrameSamples)
	for i := range frame {
		frame[i] = 10000
	}
	el.route(frame)

	if len(out.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(out.frames))
	}
	for i, v := range out.frames[0] {
		if v != 5000 {
			t.Fatalf("sample[%d] = %d, want 5000", i, v)
		}
	}
}

func TestSuspendedContextDropsFrames(t *testing.T) {
	var out capture
	ctx := newRunningContext(t, out.sink)
	el := &fakeElement{}
	src, _ := ctx.CreateMediaElementSource(el)
	src.Connect(ctx.Destination())

	ctx.Suspend()
	el.route(make([]int16, audio.FrameSamples))
	if len(out.frames) != 0 {
		t.Errorf("suspended context rendered %d frames", len(out.frames))
	}
	ctx.Resume()
	el.route(make([]int16, audio.FrameSamples))
	if len(out.frames) != 1 {
		t.Errorf("running context rendered %d frames, want 1", len(out.frames))
	}
}

func TestFanOutCopiesBuffers(t *testing.T) {
	var out capture
	ctx := newRunningContext(t, out.sink)
	el := &fakeElement{}
	src, _ := ctx.CreateMediaElementSource(el)
	silent := ctx.CreateGain()
	silent.Gain.SetValue(0)
	src.Connect(silent)
	src.Connect(ctx.Destination())

	frame := make([]int16, audio.FrameSamples)
	for i := range frame {
		frame[i] = 1234
	}
	el.route(frame)

	if len(out.frames) != 1 || out.frames[0][0] != 1234 {
		t.Errorf("direct branch was affected by sibling: %v", out.frames)
	}
}

// --- Biquad ---

func TestBiquadDefaults(t *testing.T) {
	ctx := newRunningContext(t, nil)
	f := ctx.CreateBiquadFilter()
	if f.Type() != Lowpass || f.Frequency.Value() != 350 || f.Q.Value() != 1 || f.Gain.Value() != 0 {
		t.Errorf("defaults = %v %v %v %v", f.Type(), f.Frequency.Value(), f.Q.Value(), f.Gain.Value())
	}
}

func TestPeakingResponseAtCenter(t *testing.T) {
	ctx := newRunningContext(t, nil)
	f := ctx.CreateBiquadFilter()
	f.SetType(Peaking)
	f.Frequency.SetValue(1000)
	f.Gain.SetValue(12)

	got := f.MagnitudeDB([]float64{1000, 20})
	if math.Abs(got[0]-12) > 0.1 {
		t.Errorf("gain at center = %.2f dB, want 12", got[0])
	}
	if math.Abs(got[1]) > 0.5 {
		t.Errorf("gain far below center = %.2f dB, want ~0", got[1])
	}
}

func TestFlatFiltersArePassThrough(t *testing.T) {
	ctx := newRunningContext(t, nil)
	for _, typ := range []FilterType{LowShelf, Peaking, HighShelf} {
		f := ctx.CreateBiquadFilter()
		f.SetType(typ)
		f.Frequency.SetValue(1000)
		for _, db := range f.MagnitudeDB([]float64{50, 1000, 10000}) {
			if math.Abs(db) > 1e-6 {
				t.Errorf("%v at 0 dB gain has response %.6f dB", typ, db)
			}
		}
	}
}

func TestUnrealisableFilterPassesThrough(t *testing.T) {
	ctx := newRunningContext(t, nil)
	f := ctx.CreateBiquadFilter()
	f.Frequency.SetValue(ctx.SampleRate()) // clamped to Nyquist, not designable
	if c := f.Coefficients(); c != passThrough {
		t.Errorf("Coefficients = %+v, want pass-through", c)
	}
}

func TestBiquadProcessesPerChannel(t *testing.T) {
	var out capture
	ctx := newRunningContext(t, out.sink)
	el := &fakeElement{}
	src, _ := ctx.CreateMediaElementSource(el)
	f := ctx.CreateBiquadFilter()
	f.SetType(Peaking)
	f.Frequency.SetValue(1000)
	f.Gain.SetValue(-40)
	src.Connect(f)
	f.Connect(ctx.Destination())

	var peakIn, peakOut int16
	for i := 0; i < 50; i++ {
		frame := sineFrame(1000, 0.5, i*audio.FrameSize)
		el.route(frame)
		if i > 25 {
			for j, v := range frame {
				peakIn = max(peakIn, v)
				peakOut = max(peakOut, out.frames[len(out.frames)-1][j])
			}
		}
	}
	if float64(peakOut) > float64(peakIn)*0.05 {
		t.Errorf("-40 dB cut: peak in %d, peak out %d", peakIn, peakOut)
	}
}

func TestParseFilterType(t *testing.T) {
	for _, name := range []string{"lowshelf", "peaking", "highshelf"} {
		typ, err := ParseFilterType(name)
		if err != nil || typ.String() != name {
			t.Errorf("ParseFilterType(%q) = %v, %v", name, typ, err)
		}
	}
	if _, err := ParseFilterType("comb"); err == nil {
		t.Error("ParseFilterType accepted an unknown type")
	}
}

// --- Analyser ---

func TestAnalyserDefaults(t *testing.T) {
	ctx := newRunningContext(t, nil)
	a := ctx.CreateAnalyser()
	if a.FFTSize() != 2048 || a.FrequencyBinCount() != 1024 {
		t.Errorf("fft=%d bins=%d", a.FFTSize(), a.FrequencyBinCount())
	}
	if a.SmoothingTimeConstant() != 0.8 {
		t.Errorf("smoothing = %v", a.SmoothingTimeConstant())
	}
	if lo, hi := a.DecibelRange(); lo != -100 || hi != -30 {
		t.Errorf("range = [%v, %v]", lo, hi)
	}
}

func TestAnalyserRejectsBadSettings(t *testing.T) {
	ctx := newRunningContext(t, nil)
	a := ctx.CreateAnalyser()
	for _, n := range []int{0, 16, 1000, 65536} {
		if err := a.SetFFTSize(n); !errors.Is(err, ErrIndexSize) {
			t.Errorf("SetFFTSize(%d) err = %v", n, err)
		}
	}
	if err := a.SetFFTSize(4096); err != nil || a.FrequencyBinCount() != 2048 {
		t.Errorf("SetFFTSize(4096): err=%v bins=%d", err, a.FrequencyBinCount())
	}
	if err := a.SetSmoothingTimeConstant(1.5); !errors.Is(err, ErrIndexSize) {
		t.Errorf("smoothing 1.5 err = %v", err)
	}
	if err := a.SetDecibelRange(-30, -100); !errors.Is(err, ErrIndexSize) {
		t.Errorf("inverted range err = %v", err)
	}
}

func TestAnalyserSilence(t *testing.T) {
	ctx := newRunningContext(t, nil)
	a := ctx.CreateAnalyser()

	freq := make([]byte, a.FrequencyBinCount())
	a.GetByteFrequencyData(freq)
	for i, v := range freq {
		if v != 0 {
			t.Fatalf("silent freq[%d] = %d", i, v)
		}
	}

	td := make([]byte, a.FFTSize())
	a.GetByteTimeDomainData(td)
	for i, v := range td {
		if v != 128 {
			t.Fatalf("silent time[%d] = %d, want 128", i, v)
		}
	}
}

func TestAnalyserFindsTone(t *testing.T) {
	ctx := newRunningContext(t, nil)
	el := &fakeElement{}
	src, _ := ctx.CreateMediaElementSource(el)
	a := ctx.CreateAnalyser()
	a.SetSmoothingTimeConstant(0)
	src.Connect(a)

	const tone = 3000.0
	for i := 0; i < 4; i++ {
		el.route(sineFrame(tone, 0.05, i*audio.FrameSize))
	}

	freq := make([]byte, a.FrequencyBinCount())
	a.GetByteFrequencyData(freq)
	peak := 0
	for i, v := range freq {
		if v > freq[peak] {
			peak = i
		}
	}
	binHz := audio.SampleRate / float64(a.FFTSize())
	want := int(tone / binHz)
	if peak < want-1 || peak > want+1 {
		t.Errorf("peak bin = %d, want about %d", peak, want)
	}
	if freq[peak] == 0 {
		t.Error("tone produced no energy")
	}

	floats := make([]float32, a.FrequencyBinCount())
	a.GetFloatFrequencyData(floats)
	if floats[peak] < -60 {
		t.Errorf("peak dB = %v, expected a loud bin", floats[peak])
	}
}

func TestAnalyserTimeDomainTracksInput(t *testing.T) {
	ctx := newRunningContext(t, nil)
	el := &fakeElement{}
	src, _ := ctx.CreateMediaElementSource(el)
	a := ctx.CreateAnalyser()
	src.Connect(a)

	frame := make([]int16, audio.FrameSamples)
	for i := range frame {
		frame[i] = 16384 // +0.5
	}
	el.route(frame)

	td := make([]byte, a.FFTSize())
	a.GetByteTimeDomainData(td)
	if last := td[len(td)-1]; last != 192 {
		t.Errorf("newest sample byte = %d, want 192", last)
	}
	if first := td[0]; first != 128 {
		t.Errorf("oldest sample byte = %d, want 128 (still silence)", first)
	}
}
