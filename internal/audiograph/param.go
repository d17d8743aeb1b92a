package audiograph

import (
	"math"
	"sync/atomic"
)

// Param is a node parameter that can be changed from any goroutine while the
// graph renders. Values are clamped to the nominal range.
type Param struct {
	bits     atomic.Uint64
	def      float64
	min, max float64
}

func newParam(def, min, max float64) *Param {
	p := &Param{def: def, min: min, max: max}
	p.bits.Store(math.Float64bits(def))
	return p
}

// Value returns the current value.
func (p *Param) Value() float64 {
	return math.Float64frombits(p.bits.Load())
}

// SetValue stores v clamped to [MinValue, MaxValue]. NaN is ignored.
func (p *Param) SetValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = max(p.min, min(p.max, v))
	p.bits.Store(math.Float64bits(v))
}

func (p *Param) DefaultValue() float64 { return p.def }
func (p *Param) MinValue() float64     { return p.min }
func (p *Param) MaxValue() float64     { return p.max }
