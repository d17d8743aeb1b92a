package visualizer

import "math"

// Warp maps a normalised bar position in [0,1) onto a normalised data
// position. Both warps are non-decreasing.
type Warp func(x float64) float64

var (
	// LinearWarp samples the data evenly.
	LinearWarp Warp = func(x float64) float64 { return x }
	// PowerWarp spends more bars on the low bins.
	PowerWarp Warp = func(x float64) float64 { return math.Pow(x, 1.5) }
)

// SampleIndex returns the data index drawn by bar out of bars for data of
// the given length.
func SampleIndex(bar, bars, length int, warp Warp) int {
	if bars <= 0 || length <= 0 {
		return 0
	}
	idx := int(math.Floor(warp(float64(bar)/float64(bars)) * float64(length-1)))
	return max(0, min(idx, length-1))
}
