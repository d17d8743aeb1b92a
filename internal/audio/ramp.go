package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// RampGain scales planar channels in place, moving from gain `from` at the
// first sample to gain `to` at the last along a smoothstep curve. Equal
// gains apply a flat multiply.
func RampGain(planar [][]float64, from, to float64) {
	if from == to {
		for _, ch := range planar {
			for i := range ch {
				ch[i] *= to
			}
		}
		return
	}

	for _, ch := range planar {
		n := len(ch)
		for i := range ch {
			progress := 1.0
			if n > 1 {
				progress = float64(i) / float64(n-1)
			}
			g := from + (to-from)*Smoothstep(progress)
			ch[i] *= g
		}
	}
}
