package audiograph

import "github.com/satindergrewal/spectra/internal/audio"

// GainNode scales the signal by its Gain param. A change is ramped across
// the next block.
type GainNode struct {
	graphNode

	Gain *Param // linear

	// render goroutine only
	applied float64
	primed  bool
}

func (n *GainNode) processBlock(buf [][]float64) {
	target := n.Gain.Value()
	from := n.applied
	if !n.primed {
		from = target
		n.primed = true
	}
	audio.RampGain(buf, from, target)
	n.applied = target
}
