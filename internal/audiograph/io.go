package audiograph

import "github.com/satindergrewal/spectra/internal/audio"

// MediaElementSourceNode feeds a media element's frames into the graph.
type MediaElementSourceNode struct {
	graphNode

	// element goroutine only
	scratch [][]float64
}

func (n *MediaElementSourceNode) deliver(frame []int16) {
	if !n.ctx.running() {
		return
	}
	n.scratch = audio.Deinterleave(frame, n.scratch)
	n.push(n.scratch)
}

// DestinationNode hands rendered frames to the context's sink.
type DestinationNode struct {
	graphNode

	sink func(frame []int16)
}

func (n *DestinationNode) processBlock(buf [][]float64) {
	if n.sink == nil {
		return
	}
	n.sink(audio.Interleave(buf))
}
