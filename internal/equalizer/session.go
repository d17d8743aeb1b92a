package equalizer

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/satindergrewal/spectra/internal/audio"
	"github.com/satindergrewal/spectra/internal/audiograph"
)

// Element is the media element a session plays through its graph.
type Element interface {
	audiograph.MediaElement
	Play() error
	Pause()
	SetCurrentTime(d time.Duration)
}

// Options configure a Session. Zero values take the defaults below.
type Options struct {
	SampleRate float64 // default audio.SampleRate
	FFTSize    int     // default 4096
	Smoothing  float64 // default 0.8; negative means 0
	// Sink receives rendered frames from the graph destination.
	Sink func(frame []int16)
	// ProbeDelay schedules a Probe after each successful Play. Zero disables.
	ProbeDelay time.Duration
}

const (
	DefaultFFTSize   = 4096
	DefaultSmoothing = 0.8
)

// Session owns one audio graph: element source, 15 filters, analyser, master
// gain and destination. All methods are safe for concurrent use.
type Session struct {
	opts       Options
	newContext func(sampleRate float64, sink func([]int16)) (*audiograph.Context, error)

	mu       sync.RWMutex
	state    GraphState
	ctx      *audiograph.Context
	analyser *audiograph.AnalyserNode
	gain     *audiograph.GainNode
	filters  []*audiograph.BiquadFilterNode
	bands    []FilterBand
	source   *audiograph.MediaElementSourceNode
	element  Element
	volume   float64 // percent
}

// New returns an uninitialized session.
func New(opts Options) *Session {
	if opts.SampleRate == 0 {
		opts.SampleRate = audio.SampleRate
	}
	if opts.FFTSize == 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.Smoothing == 0 {
		opts.Smoothing = DefaultSmoothing
	}
	if opts.Smoothing < 0 {
		opts.Smoothing = 0
	}
	return &Session{
		opts:       opts,
		newContext: audiograph.NewContext,
		volume:     100,
	}
}

// InitContext builds the context, analyser, gain node and filter bank.
// Calling it again is a no-op that reports success.
func (s *Session) InitContext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		log.Printf("Audio context already initialized")
		return true
	}

	ctx, err := s.newContext(s.opts.SampleRate, s.opts.Sink)
	if err != nil {
		log.Printf("Failed to initialize audio context: %v", err)
		return false
	}
	if err := ctx.Resume(); err != nil {
		log.Printf("Failed to resume audio context: %v", err)
		return false
	}

	analyser := ctx.CreateAnalyser()
	if err := analyser.SetFFTSize(s.opts.FFTSize); err != nil {
		log.Printf("Analyser FFT size %d rejected, keeping %d: %v", s.opts.FFTSize, analyser.FFTSize(), err)
	}
	if err := analyser.SetSmoothingTimeConstant(s.opts.Smoothing); err != nil {
		log.Printf("Analyser smoothing %v rejected, keeping %v: %v", s.opts.Smoothing, analyser.SmoothingTimeConstant(), err)
	}

	gain := ctx.CreateGain()
	gain.Gain.SetValue(s.volume / 100)

	bands := BuildBands()
	filters := make([]*audiograph.BiquadFilterNode, len(bands))
	for i, b := range bands {
		f := ctx.CreateBiquadFilter()
		f.SetType(b.Type)
		f.Frequency.SetValue(b.Frequency)
		f.Q.SetValue(b.Q)
		f.Gain.SetValue(b.GainDB)
		filters[i] = f
	}

	s.ctx = ctx
	s.analyser = analyser
	s.gain = gain
	s.bands = bands
	s.filters = filters
	s.state = ContextReady

	log.Printf("Audio context ready: %s, %.0f Hz, FFT %d (%d bins), %d-band EQ",
		ctx.State(), ctx.SampleRate(), analyser.FFTSize(), analyser.FrequencyBinCount(), len(filters))
	return true
}

// Connect routes el through the graph. Only the first element is ever
// connected; later calls report success without rewiring.
func (s *Session) Connect(el Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		log.Printf("Audio context not initialized, call InitContext first")
		return false
	}
	if el == nil {
		log.Printf("Cannot connect nil audio element")
		return false
	}
	if s.state == ElementConnected {
		log.Printf("Audio element already connected")
		return true
	}

	src, err := s.ctx.CreateMediaElementSource(el)
	if err != nil {
		log.Printf("Failed to connect audio element: %v", err)
		return false
	}

	chain := make([]audiograph.Node, 0, len(s.filters)+4)
	chain = append(chain, src)
	for _, f := range s.filters {
		chain = append(chain, f)
	}
	chain = append(chain, s.analyser, s.gain, s.ctx.Destination())

	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].Connect(chain[i+1]); err != nil {
			log.Printf("Failed to wire audio graph at stage %d: %v", i, err)
			for _, n := range chain {
				n.Disconnect()
			}
			return false
		}
	}

	s.source = src
	s.element = el
	s.state = ElementConnected
	log.Printf("Audio graph connected: source -> %d filters -> analyser -> gain -> destination", len(s.filters))
	return true
}

// Attach initializes the context when needed and connects el. It reports
// success when an element is already connected.
func (s *Session) Attach(el Element) bool {
	if s.State() == ElementConnected {
		return true
	}
	if s.State() == Uninitialized && !s.InitContext() {
		return false
	}
	return s.Connect(el)
}

// Cleanup disconnects every node and closes the context.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source != nil {
		s.source.Disconnect()
	}
	for _, f := range s.filters {
		f.Disconnect()
	}
	if s.analyser != nil {
		s.analyser.Disconnect()
	}
	if s.gain != nil {
		s.gain.Disconnect()
	}
	if s.ctx != nil {
		if err := s.ctx.Close(); err != nil {
			log.Printf("Closing audio context: %v", err)
		}
	}

	s.ctx = nil
	s.analyser = nil
	s.gain = nil
	s.filters = nil
	s.bands = nil
	s.source = nil
	s.element = nil
	s.state = Uninitialized
	log.Printf("Audio session cleaned up")
}

// State reports how far the graph has been built.
func (s *Session) State() GraphState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Context returns the audio context, nil before InitContext.
func (s *Session) Context() *audiograph.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Session) connected() (Element, *audiograph.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.element, s.ctx
}

// Play resumes a suspended context and starts the element.
func (s *Session) Play() bool {
	el, ctx := s.connected()
	if el == nil {
		log.Printf("No audio element connected")
		return false
	}
	if ctx.State() == audiograph.StateSuspended {
		if err := ctx.Resume(); err != nil {
			log.Printf("Playback error: %v", err)
			return false
		}
		log.Printf("Audio context resumed")
	}
	if err := el.Play(); err != nil {
		log.Printf("Playback error: %v", err)
		return false
	}
	if s.opts.ProbeDelay > 0 {
		time.AfterFunc(s.opts.ProbeDelay, func() { s.Probe() })
	}
	return true
}

func (s *Session) Pause() bool {
	el, _ := s.connected()
	if el == nil {
		log.Printf("No audio element connected")
		return false
	}
	el.Pause()
	return true
}

// Stop pauses and rewinds to the start.
func (s *Session) Stop() bool {
	el, _ := s.connected()
	if el == nil {
		log.Printf("No audio element connected")
		return false
	}
	el.Pause()
	el.SetCurrentTime(0)
	return true
}

func (s *Session) Seek(d time.Duration) bool {
	el, _ := s.connected()
	if el == nil {
		log.Printf("No audio element connected")
		return false
	}
	el.SetCurrentTime(d)
	return true
}

// SetVolume takes a percentage, clamps it to [0, 100] and applies it as a
// linear gain, which it returns. Without a gain node it returns 0.
func (s *Session) SetVolume(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gain == nil {
		log.Printf("Gain node not available, volume %v ignored", v)
		return 0
	}
	if math.IsNaN(v) {
		v = s.volume
	}
	v = max(0, min(v, 100))
	s.volume = v
	s.gain.Gain.SetValue(v / 100)
	return v / 100
}

// Volume returns the master volume as a percentage.
func (s *Session) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetBandGain clamps db to [-40, 40], applies it to band i and returns it.
// An invalid index or missing filter bank leaves everything untouched and
// returns 0.
func (s *Session) SetBandGain(i int, db float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filters == nil {
		log.Printf("Filters not initialized, band %d ignored", i)
		return 0
	}
	if i < 0 || i >= len(s.filters) {
		log.Printf("Invalid band index %d", i)
		return 0
	}
	if math.IsNaN(db) {
		db = 0
	}
	db = ClampGain(db)
	s.bands[i].GainDB = db
	s.filters[i].Gain.SetValue(db)
	return db
}

// BandGain returns the gain of band i, 0 when it does not exist.
func (s *Session) BandGain(i int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.bands) {
		return 0
	}
	return s.bands[i].GainDB
}

// Bands returns a copy of the band settings. Before InitContext it returns
// the flat defaults.
func (s *Session) Bands() []FilterBand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bands == nil {
		return BuildBands()
	}
	out := make([]FilterBand, len(s.bands))
	copy(out, s.bands)
	return out
}

// ResetBands sets every band back to 0 dB.
func (s *Session) ResetBands() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filters == nil {
		log.Printf("Filters not initialized, nothing to reset")
		return
	}
	for i, f := range s.filters {
		s.bands[i].GainDB = 0
		f.Gain.SetValue(0)
	}
}

// Response returns the combined magnitude response of the filter bank in dB
// at each of freqs. Nil before InitContext.
func (s *Session) Response(freqs []float64) []float64 {
	s.mu.RLock()
	filters := s.filters
	s.mu.RUnlock()
	if filters == nil {
		return nil
	}

	total := make([]float64, len(freqs))
	for _, f := range filters {
		for i, db := range f.MagnitudeDB(freqs) {
			total[i] += db
		}
	}
	return total
}

func (s *Session) currentAnalyser() *audiograph.AnalyserNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyser
}

// FrequencyData returns byte magnitudes, one per frequency bin.
func (s *Session) FrequencyData() []byte {
	a := s.currentAnalyser()
	if a == nil {
		return nil
	}
	data := make([]byte, a.FrequencyBinCount())
	a.GetByteFrequencyData(data)
	return data
}

// TimeDomainData returns the latest FFTSize samples as bytes centred on 128.
func (s *Session) TimeDomainData() []byte {
	a := s.currentAnalyser()
	if a == nil {
		return nil
	}
	data := make([]byte, a.FFTSize())
	a.GetByteTimeDomainData(data)
	return data
}

// Probe logs whether the analyser is receiving signal and returns the peak
// and average byte magnitudes.
func (s *Session) Probe() (peak byte, avg float64) {
	data := s.FrequencyData()
	if len(data) == 0 {
		return 0, 0
	}
	sum := 0
	for _, v := range data {
		peak = max(peak, v)
		sum += int(v)
	}
	avg = float64(sum) / float64(len(data))
	if peak > 0 {
		log.Printf("Analyser receiving data: peak %d, average %.2f", peak, avg)
	} else {
		log.Printf("Analyser receiving no data (audio might not be playing)")
	}
	return peak, avg
}
