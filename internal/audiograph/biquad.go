package audiograph

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterType selects the biquad response.
type FilterType int32

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
	LowShelf
	HighShelf
	Peaking
	Notch
	Allpass
)

var filterTypeNames = [...]string{
	Lowpass:   "lowpass",
	Highpass:  "highpass",
	Bandpass:  "bandpass",
	LowShelf:  "lowshelf",
	HighShelf: "highshelf",
	Peaking:   "peaking",
	Notch:     "notch",
	Allpass:   "allpass",
}

func (t FilterType) String() string {
	if t >= 0 && int(t) < len(filterTypeNames) {
		return filterTypeNames[t]
	}
	return fmt.Sprintf("FilterType(%d)", int(t))
}

// MarshalText encodes the Web Audio type name.
func (t FilterType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseFilterType maps a Web Audio filter type name to a FilterType.
func ParseFilterType(s string) (FilterType, error) {
	for i, name := range filterTypeNames {
		if name == s {
			return FilterType(i), nil
		}
	}
	return 0, fmt.Errorf("filter type %q: %w", s, ErrNotSupported)
}

// BiquadFilterNode is a second-order filter with one section per channel.
type BiquadFilterNode struct {
	graphNode

	Frequency *Param // Hz
	Q         *Param
	Gain      *Param // dB, used by shelf and peaking types

	typ atomic.Int32

	// render goroutine only
	sections []*biquad.Section
	applied  filterKey
}

type filterKey struct {
	typ            FilterType
	freq, q, gain float64
}

// Type returns the filter response type.
func (n *BiquadFilterNode) Type() FilterType { return FilterType(n.typ.Load()) }

// SetType changes the filter response type.
func (n *BiquadFilterNode) SetType(t FilterType) { n.typ.Store(int32(t)) }

func (n *BiquadFilterNode) key() filterKey {
	return filterKey{
		typ:  n.Type(),
		freq: n.Frequency.Value(),
		q:    n.Q.Value(),
		gain: n.Gain.Value(),
	}
}

// Coefficients returns the section coefficients for the current parameters.
func (n *BiquadFilterNode) Coefficients() biquad.Coefficients {
	return designCoefficients(n.key(), n.ctx.sampleRate)
}

// MagnitudeDB returns the filter's magnitude response at each frequency.
func (n *BiquadFilterNode) MagnitudeDB(freqs []float64) []float64 {
	c := n.Coefficients()
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		out[i] = c.MagnitudeDB(f, n.ctx.sampleRate)
	}
	return out
}

func (n *BiquadFilterNode) processBlock(buf [][]float64) {
	k := n.key()
	switch {
	case len(n.sections) != len(buf):
		c := designCoefficients(k, n.ctx.sampleRate)
		n.sections = make([]*biquad.Section, len(buf))
		for i := range n.sections {
			n.sections[i] = biquad.NewSection(c)
		}
		n.applied = k
	case k != n.applied:
		// swap coefficients, keep the delay line
		c := designCoefficients(k, n.ctx.sampleRate)
		for _, s := range n.sections {
			s.Coefficients = c
		}
		n.applied = k
	}

	for i, ch := range buf {
		n.sections[i].ProcessBlock(ch)
	}
}

var passThrough = biquad.Coefficients{B0: 1}

func designCoefficients(k filterKey, sampleRate float64) biquad.Coefficients {
	var c biquad.Coefficients
	switch k.typ {
	case Lowpass:
		c = design.Lowpass(k.freq, k.q, sampleRate)
	case Highpass:
		c = design.Highpass(k.freq, k.q, sampleRate)
	case Bandpass:
		c = design.Bandpass(k.freq, k.q, sampleRate)
	case LowShelf:
		c = design.LowShelf(k.freq, k.gain, k.q, sampleRate)
	case HighShelf:
		c = design.HighShelf(k.freq, k.gain, k.q, sampleRate)
	case Peaking:
		c = design.Peak(k.freq, k.gain, k.q, sampleRate)
	case Notch:
		c = design.Notch(k.freq, k.q, sampleRate)
	case Allpass:
		c = design.Allpass(k.freq, k.q, sampleRate)
	}
	// design returns zero coefficients for frequencies it cannot realise
	if c == (biquad.Coefficients{}) {
		return passThrough
	}
	return c
}
