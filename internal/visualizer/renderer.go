package visualizer

import (
	"image"
	"io"
	"math"
	"time"

	"github.com/fogleman/gg"
)

const (
	MinInitWidth  = 800
	MinWidth      = 100
	MinHeight     = 300
	minBarHeight  = 2
	fadeAlpha     = 0.3
	placeholder   = "Waiting for audio..."
	perspective   = 0.7
	depth         = 5 * perspective
	spectrumBars  = 150
	circularBars  = 180
	bars3DBars    = 80
	waveformWidth = 2
)

// Frame is one analyser snapshot. TimeDomain is only needed by Waveform.
type Frame struct {
	Frequency  []byte
	TimeDomain []byte
}

// Silent reports whether the frame carries no frequency energy.
func (f Frame) Silent() bool {
	for _, v := range f.Frequency {
		if v > 0 {
			return false
		}
	}
	return true
}

type strategy struct {
	// source picks the data the routine draws from
	source func(f Frame) []byte
	// count returns how many samples are drawn for data of length n
	count func(n int) int
	index func(i, count, n int) int
	draw  func(r *Renderer, s strategy, data []byte)
}

func frequencySource(f Frame) []byte  { return f.Frequency }
func timeDomainSource(f Frame) []byte { return f.TimeDomain }

func fixedBars(n int) func(int) int { return func(int) int { return n } }

func powerIndex(i, count, n int) int { return SampleIndex(i, count, n, PowerWarp) }

var strategies = [...]strategy{
	Spectrum: {frequencySource, fixedBars(spectrumBars), powerIndex, drawSpectrum},
	Waveform: {timeDomainSource, func(n int) int { return n }, func(i, _, _ int) int { return i }, drawWaveform},
	Circular: {frequencySource, fixedBars(circularBars), powerIndex, drawCircular},
	Bars3D:   {frequencySource, fixedBars(bars3DBars), powerIndex, drawBars3D},
}

func strategyFor(m Mode) strategy {
	if m >= 0 && int(m) < len(strategies) {
		return strategies[m]
	}
	return strategies[Spectrum]
}

// Renderer draws frames onto an in-memory canvas. It is not safe for
// concurrent use.
type Renderer struct {
	dc       *gg.Context
	settings Settings
}

// NewRenderer creates a canvas of at least 800x300.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{dc: gg.NewContext(max(width, MinInitWidth), max(height, MinHeight))}
}

// Resize changes the canvas to at least 100x300. It reports whether the size
// changed; the picture is lost when it does.
func (r *Renderer) Resize(width, height int) bool {
	width, height = max(width, MinWidth), max(height, MinHeight)
	if width == r.dc.Width() && height == r.dc.Height() {
		return false
	}
	r.dc = gg.NewContext(width, height)
	return true
}

func (r *Renderer) Size() (width, height int) { return r.dc.Width(), r.dc.Height() }

func (r *Renderer) Settings() Settings { return r.settings }

func (r *Renderer) SetSettings(s Settings) { r.settings = s }

// Render draws f and reports whether the placeholder was drawn instead.
func (r *Renderer) Render(f Frame, now time.Time) bool {
	if f.Silent() {
		r.drawEmptyState(now)
		return true
	}
	s := strategyFor(r.settings.Mode)
	r.fade()
	s.draw(r, s, s.source(f))
	return false
}

// Clear makes the whole canvas transparent.
func (r *Renderer) Clear() {
	r.dc.SetRGBA(0, 0, 0, 0)
	r.dc.Clear()
}

func (r *Renderer) Image() image.Image { return r.dc.Image() }

func (r *Renderer) EncodePNG(w io.Writer) error { return r.dc.EncodePNG(w) }

func (r *Renderer) fade() {
	w, h := float64(r.dc.Width()), float64(r.dc.Height())
	r.dc.SetRGBA(0, 0, 0, fadeAlpha)
	r.dc.DrawRectangle(0, 0, w, h)
	r.dc.Fill()
}

func (r *Renderer) drawEmptyState(now time.Time) {
	dc := r.dc
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetRGBA(0, 0, 0, 0.8)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 0.5)
	dc.DrawStringAnchored(placeholder, w/2, h/2, 0.5, 0.5)

	t := float64(now.UnixNano()) / float64(time.Second)
	radius := 20 + math.Sin(t*2)*5
	dc.DrawCircle(w/2, h/2+40, radius)
	dc.SetRGBA(100.0/255, 200.0/255, 1, 0.5)
	dc.SetLineWidth(2)
	dc.Stroke()
}

func drawSpectrum(r *Renderer, s strategy, data []byte) {
	dc := r.dc
	w, h := float64(dc.Width()), float64(dc.Height())
	bars := s.count(len(data))
	spacing := w / float64(bars)
	barWidth := max(1, spacing-1)

	for i := 0; i < bars; i++ {
		v := data[s.index(i, bars, len(data))]
		barHeight := max(minBarHeight, float64(v)/255*h*0.9)
		dc.SetColor(Color(r.settings.ColorScheme, i, bars, v))
		dc.DrawRectangle(float64(i)*spacing, h-barHeight, barWidth, barHeight)
		dc.Fill()
	}
}

func drawWaveform(r *Renderer, s strategy, data []byte) {
	if len(data) == 0 {
		return
	}
	dc := r.dc
	w, h := float64(dc.Width()), float64(dc.Height())
	n := s.count(len(data))
	slice := w / float64(n)

	dc.SetLineWidth(waveformWidth)
	dc.SetColor(Color(r.settings.ColorScheme, 0, 1, 128))
	for i := 0; i < n; i++ {
		x := float64(i) * slice
		y := float64(data[s.index(i, n, len(data))]) / 128 * h / 2
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.LineTo(w, h/2)
	dc.Stroke()
}

func drawCircular(r *Renderer, s strategy, data []byte) {
	dc := r.dc
	w, h := float64(dc.Width()), float64(dc.Height())
	cx, cy := w/2, h/2
	radius := min(w, h) / 4
	bars := s.count(len(data))

	dc.SetLineWidth(2)
	for i := 0; i < bars; i++ {
		v := data[s.index(i, bars, len(data))]
		length := float64(v) / 255 * radius
		angle := float64(i) / float64(bars) * 2 * math.Pi
		cos, sin := math.Cos(angle), math.Sin(angle)

		dc.SetColor(Color(r.settings.ColorScheme, i, bars, v))
		dc.DrawLine(cx+cos*radius, cy+sin*radius, cx+cos*(radius+length), cy+sin*(radius+length))
		dc.Stroke()
	}
}

func drawBars3D(r *Renderer, s strategy, data []byte) {
	dc := r.dc
	w, h := float64(dc.Width()), float64(dc.Height())
	bars := s.count(len(data))
	spacing := w / float64(bars)
	barWidth := max(2, spacing-2)

	for i := 0; i < bars; i++ {
		v := data[s.index(i, bars, len(data))]
		barHeight := max(minBarHeight, float64(v)/255*h*0.8)
		x, y := float64(i)*spacing, h-barHeight
		c := Color(r.settings.ColorScheme, i, bars, v)

		dc.SetColor(c)
		dc.DrawRectangle(x, y, barWidth, barHeight)
		dc.Fill()

		dc.SetColor(AdjustBrightness(c, 1.3))
		dc.MoveTo(x, y)
		dc.LineTo(x+barWidth, y)
		dc.LineTo(x+barWidth+depth, y-depth)
		dc.LineTo(x+depth, y-depth)
		dc.ClosePath()
		dc.Fill()

		dc.SetColor(AdjustBrightness(c, 0.7))
		dc.MoveTo(x+barWidth, y)
		dc.LineTo(x+barWidth+depth, y-depth)
		dc.LineTo(x+barWidth+depth, y+barHeight-depth)
		dc.LineTo(x+barWidth, y+barHeight)
		dc.ClosePath()
		dc.Fill()
	}
}
