package audiograph

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/mjibson/go-dsp/fft"
)

const (
	defaultFFTSize     = 2048
	defaultSmoothing   = 0.8
	defaultMinDecibels = -100.0
	defaultMaxDecibels = -30.0

	minFFTSize = 32
	maxFFTSize = 32768
)

// AnalyserNode passes audio through unchanged while keeping the most recent
// FFTSize samples (mono mix) for frequency and time-domain snapshots.
type AnalyserNode struct {
	graphNode

	mu        sync.Mutex
	fftSize   int
	smoothing float64
	minDB     float64
	maxDB     float64
	ring      []float64
	write     int
	window    []float64
	smoothed  []float64
}

func (a *AnalyserNode) resize(n int) {
	a.fftSize = n
	a.ring = make([]float64, n)
	a.write = 0
	a.window = window.Generate(window.TypeBlackman, n, window.WithPeriodic())
	a.smoothed = make([]float64, n/2)
}

// FFTSize returns the analysis window length.
func (a *AnalyserNode) FFTSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftSize
}

// SetFFTSize sets the window length, a power of two in [32, 32768].
// Buffered samples and smoothing history are discarded.
func (a *AnalyserNode) SetFFTSize(n int) error {
	if n < minFFTSize || n > maxFFTSize || n&(n-1) != 0 {
		return fmt.Errorf("fft size %d: %w", n, ErrIndexSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n != a.fftSize {
		a.resize(n)
	}
	return nil
}

// FrequencyBinCount is half the FFT size.
func (a *AnalyserNode) FrequencyBinCount() int {
	return a.FFTSize() / 2
}

// SmoothingTimeConstant returns the averaging constant in [0, 1].
func (a *AnalyserNode) SmoothingTimeConstant() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.smoothing
}

// SetSmoothingTimeConstant sets the averaging constant; values outside
// [0, 1] are rejected.
func (a *AnalyserNode) SetSmoothingTimeConstant(v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("smoothing %v: %w", v, ErrIndexSize)
	}
	a.mu.Lock()
	a.smoothing = v
	a.mu.Unlock()
	return nil
}

// DecibelRange returns the dB range mapped onto 0..255 by the byte getters.
func (a *AnalyserNode) DecibelRange() (minDB, maxDB float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minDB, a.maxDB
}

// SetDecibelRange sets the byte mapping range; minDB must be below maxDB.
func (a *AnalyserNode) SetDecibelRange(minDB, maxDB float64) error {
	if !(minDB < maxDB) {
		return fmt.Errorf("decibel range [%v, %v]: %w", minDB, maxDB, ErrIndexSize)
	}
	a.mu.Lock()
	a.minDB, a.maxDB = minDB, maxDB
	a.mu.Unlock()
	return nil
}

func (a *AnalyserNode) processBlock(buf [][]float64) {
	if len(buf) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	scale := 1 / float64(len(buf))
	for i := range buf[0] {
		var sum float64
		for _, ch := range buf {
			sum += ch[i]
		}
		a.ring[a.write] = sum * scale
		a.write++
		if a.write == a.fftSize {
			a.write = 0
		}
	}
}

// timeDomainLocked returns the buffered samples oldest first.
func (a *AnalyserNode) timeDomainLocked() []float64 {
	out := make([]float64, a.fftSize)
	n := copy(out, a.ring[a.write:])
	copy(out[n:], a.ring[:a.write])
	return out
}

// spectrumLocked windows the buffer, transforms it and folds the magnitudes
// into the smoothing history. It returns dB per bin.
func (a *AnalyserNode) spectrumLocked() []float64 {
	in := a.timeDomainLocked()
	for i := range in {
		in[i] *= a.window[i]
	}
	spec := fft.FFTReal(in)

	n := float64(a.fftSize)
	db := make([]float64, len(a.smoothed))
	for k := range a.smoothed {
		mag := cmplx.Abs(spec[k]) / n
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		db[k] = 20 * math.Log10(a.smoothed[k])
	}
	return db
}

// GetFloatFrequencyData fills dst with dB values per bin. Silence yields -Inf.
func (a *AnalyserNode) GetFloatFrequencyData(dst []float32) {
	a.mu.Lock()
	db := a.spectrumLocked()
	a.mu.Unlock()
	for i := range dst {
		if i >= len(db) {
			break
		}
		dst[i] = float32(db[i])
	}
}

// GetByteFrequencyData fills dst with bins scaled from [MinDecibels,
// MaxDecibels] onto 0..255.
func (a *AnalyserNode) GetByteFrequencyData(dst []byte) {
	a.mu.Lock()
	db := a.spectrumLocked()
	minDB, maxDB := a.minDB, a.maxDB
	a.mu.Unlock()

	scale := 255 / (maxDB - minDB)
	for i := range dst {
		if i >= len(db) {
			break
		}
		dst[i] = toByte(math.Floor(scale * (db[i] - minDB)))
	}
}

// GetFloatTimeDomainData fills dst with the most recent samples.
func (a *AnalyserNode) GetFloatTimeDomainData(dst []float32) {
	a.mu.Lock()
	td := a.timeDomainLocked()
	a.mu.Unlock()
	for i := range dst {
		if i >= len(td) {
			break
		}
		dst[i] = float32(td[i])
	}
}

// GetByteTimeDomainData fills dst with the most recent samples mapped so
// that silence is 128.
func (a *AnalyserNode) GetByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	td := a.timeDomainLocked()
	a.mu.Unlock()
	for i := range dst {
		if i >= len(td) {
			break
		}
		dst[i] = toByte(math.Floor(128 * (1 + td[i])))
	}
}

func toByte(v float64) byte {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}
