// Package visualizer renders analyser frames onto a gg canvas in one of four
// modes and runs the frame loop that keeps the latest picture available.
package visualizer

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMode        = errors.New("unknown visualization mode")
	ErrUnknownColorScheme = errors.New("unknown color scheme")
)

// Mode selects the draw routine.
type Mode int

const (
	Spectrum Mode = iota
	Waveform
	Circular
	Bars3D
)

var modeNames = [...]string{
	Spectrum: "spectrum",
	Waveform: "waveform",
	Circular: "circular",
	Bars3D:   "bars3d",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return Spectrum, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Modes lists every mode in menu order.
func Modes() []Mode { return []Mode{Spectrum, Waveform, Circular, Bars3D} }

// ColorScheme selects the palette.
type ColorScheme int

const (
	Rainbow ColorScheme = iota
	Fire
	Ocean
	Neon
	Monochrome
	Vintage
)

var schemeNames = [...]string{
	Rainbow:    "rainbow",
	Fire:       "fire",
	Ocean:      "ocean",
	Neon:       "neon",
	Monochrome: "monochrome",
	Vintage:    "vintage",
}

func (c ColorScheme) String() string {
	if c >= 0 && int(c) < len(schemeNames) {
		return schemeNames[c]
	}
	return fmt.Sprintf("ColorScheme(%d)", int(c))
}

func ParseColorScheme(s string) (ColorScheme, error) {
	for i, name := range schemeNames {
		if name == s {
			return ColorScheme(i), nil
		}
	}
	return Rainbow, fmt.Errorf("%w: %q", ErrUnknownColorScheme, s)
}

func (c ColorScheme) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ColorScheme) UnmarshalText(b []byte) error {
	v, err := ParseColorScheme(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ColorSchemes lists every scheme in menu order.
func ColorSchemes() []ColorScheme {
	return []ColorScheme{Rainbow, Fire, Ocean, Neon, Monochrome, Vintage}
}

// Settings is the user-facing visualizer configuration.
type Settings struct {
	Mode        Mode        `json:"mode"`
	ColorScheme ColorScheme `json:"colorScheme"`
}
