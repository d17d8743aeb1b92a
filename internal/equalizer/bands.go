// Package equalizer owns the 15-band equalizer session: it builds the filter
// bank, wires a media element through it into the analyser and master gain,
// and exposes transport and frame sampling on top.
package equalizer

import (
	"fmt"

	"github.com/satindergrewal/spectra/internal/audiograph"
)

const (
	MinGainDB = -40.0
	MaxGainDB = 40.0
	BandQ     = 1.0
)

// Frequencies are the band centres in signal-chain order.
var Frequencies = [...]float64{
	32, 64, 125, 250, 500, 1000, 2000, 3000,
	4000, 6000, 8000, 10000, 12000, 14000, 16000,
}

// NumBands is fixed for the lifetime of a session.
const NumBands = len(Frequencies)

// FilterBand describes one equalizer band.
type FilterBand struct {
	Frequency float64               `json:"frequency"`
	Type      audiograph.FilterType `json:"type"`
	Q         float64               `json:"q"`
	GainDB    float64               `json:"gain"`
}

// Label renders the centre frequency the way the UI shows it ("1k", "500").
func (b FilterBand) Label() string {
	if b.Frequency >= 1000 {
		return fmt.Sprintf("%gk", b.Frequency/1000)
	}
	return fmt.Sprintf("%g", b.Frequency)
}

// BuildBands returns the flat band set: low-shelf first, high-shelf last,
// peaking in between.
func BuildBands() []FilterBand {
	bands := make([]FilterBand, NumBands)
	for i, f := range Frequencies {
		typ := audiograph.Peaking
		switch i {
		case 0:
			typ = audiograph.LowShelf
		case NumBands - 1:
			typ = audiograph.HighShelf
		}
		bands[i] = FilterBand{Frequency: f, Type: typ, Q: BandQ}
	}
	return bands
}

// ClampGain limits a band gain to [MinGainDB, MaxGainDB].
func ClampGain(db float64) float64 {
	return max(MinGainDB, min(db, MaxGainDB))
}

// GraphState tracks how far the session's audio graph has been built.
type GraphState int

const (
	Uninitialized GraphState = iota
	ContextReady
	ElementConnected
)

func (s GraphState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ContextReady:
		return "context-ready"
	case ElementConnected:
		return "element-connected"
	}
	return fmt.Sprintf("GraphState(%d)", int(s))
}
