package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Deinterleave splits an interleaved stereo int16 frame into planar float
// channels in [-1, 1). dst is reused when it already has the right shape.
func Deinterleave(frame []int16, dst [][]float64) [][]float64 {
	n := len(frame) / Channels
	if len(dst) != Channels {
		dst = make([][]float64, Channels)
	}
	for c := range dst {
		if cap(dst[c]) < n {
			dst[c] = make([]float64, n)
		}
		dst[c] = dst[c][:n]
	}
	for i := 0; i < n; i++ {
		for c := 0; c < Channels; c++ {
			dst[c][i] = float64(frame[i*Channels+c]) / 32768
		}
	}
	return dst
}

// Interleave joins planar float channels back into an interleaved int16
// frame, clipping to the int16 range.
func Interleave(planar [][]float64) []int16 {
	if len(planar) == 0 {
		return nil
	}
	n := len(planar[0])
	out := make([]int16, n*Channels)
	for i := 0; i < n; i++ {
		for c := 0; c < Channels; c++ {
			src := planar[0]
			if c < len(planar) {
				src = planar[c]
			}
			out[i*Channels+c] = clip16(src[i] * 32768)
		}
	}
	return out
}

func clip16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
