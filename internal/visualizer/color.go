package visualizer

import (
	"image/color"
	"math"
)

// Color returns the palette colour for bar index of total at byte value.
// Schemes outside the known set get a plain full-saturation hue sweep.
func Color(scheme ColorScheme, index, total int, value byte) color.RGBA {
	intensity := float64(value) / 255
	pos := 0.0
	if total > 0 {
		pos = float64(index) / float64(total)
	}

	switch scheme {
	case Rainbow:
		return HSL(pos*360, 1, 0.5+intensity*0.2)
	case Fire:
		return rgb(255, math.Floor(intensity*200), 0)
	case Ocean:
		return rgb(0, math.Floor(intensity*150), math.Floor(150+intensity*105))
	case Neon:
		return HSL(pos*120+180, 1, 0.5+intensity*0.3)
	case Monochrome:
		g := math.Floor(intensity * 255)
		return rgb(g, g, g)
	case Vintage:
		return rgb(math.Floor(200+intensity*55), math.Floor(150+intensity*55), math.Floor(100+intensity*55))
	}
	return HSL(pos*360, 1, 0.5)
}

func rgb(r, g, b float64) color.RGBA {
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

// HSL converts hue in degrees and saturation/lightness in [0,1] to an opaque
// RGBA colour.
func HSL(h, s, l float64) color.RGBA {
	h = math.Mod(h, 360) / 360
	if h < 0 {
		h++
	}
	s = max(0, min(s, 1))
	l = max(0, min(l, 1))

	if s == 0 {
		v := math.Round(l * 255)
		return rgb(v, v, v)
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return rgb(
		math.Round(hueToRGB(p, q, h+1.0/3.0)*255),
		math.Round(hueToRGB(p, q, h)*255),
		math.Round(hueToRGB(p, q, h-1.0/3.0)*255),
	)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// AdjustBrightness scales each channel by factor, saturating at 255.
func AdjustBrightness(c color.RGBA, factor float64) color.RGBA {
	scale := func(v uint8) uint8 {
		return uint8(min(255, math.Floor(float64(v)*factor)))
	}
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}
