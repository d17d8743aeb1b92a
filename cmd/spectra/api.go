package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/satindergrewal/spectra/internal/equalizer"
	"github.com/satindergrewal/spectra/internal/library"
	"github.com/satindergrewal/spectra/internal/player"
	"github.com/satindergrewal/spectra/internal/playlist"
	"github.com/satindergrewal/spectra/internal/settings"
	"github.com/satindergrewal/spectra/internal/stream"
	"github.com/satindergrewal/spectra/internal/visualizer"
)

// responsePoints is how many points of the EQ curve /api/eq returns.
const responsePoints = 64

type api struct {
	ctx         context.Context
	musicDir    string // when set, tracks must live under it
	player      *player.Player
	session     *equalizer.Session
	viz         *visualizer.Loop
	prefs       *settings.Store
	broadcaster *stream.Broadcaster
	webrtc      *stream.WebRTCHandler
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// post rejects anything but POST the way every mutating endpoint does.
func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// decode only takes JSON bodies, so plain cross-site form posts are refused.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct != "application/json" {
		http.Error(w, "application/json required", http.StatusUnsupportedMediaType)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

// playerError maps transport errors onto HTTP statuses.
func playerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, player.ErrEmpty):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, playlist.ErrIndexOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, player.ErrNoElement):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", a.status)

	for path, action := range map[string]func() error{
		"/api/play":     a.player.Play,
		"/api/pause":    a.player.Pause,
		"/api/toggle":   a.player.Toggle,
		"/api/stop":     a.player.Stop,
		"/api/next":     a.player.Next,
		"/api/previous": a.player.Previous,
	} {
		mux.HandleFunc(path, post(a.transport(action)))
	}
	mux.HandleFunc("/api/seek", post(a.seek))
	mux.HandleFunc("/api/save", a.save)
	mux.HandleFunc("/api/volume", post(a.volume))

	mux.HandleFunc("/api/eq", a.eq)
	mux.HandleFunc("/api/eq/band", post(a.eqBand))
	mux.HandleFunc("/api/eq/reset", post(a.eqReset))

	mux.HandleFunc("/api/playlist", a.playlist)
	mux.HandleFunc("/api/playlist/add", post(a.playlistAdd))
	mux.HandleFunc("/api/playlist/remove", post(a.playlistRemove))
	mux.HandleFunc("/api/playlist/clear", post(a.playlistClear))
	mux.HandleFunc("/api/playlist/select", post(a.playlistSelect))
	mux.HandleFunc("/api/shuffle", post(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "shuffle": a.player.ToggleShuffle()})
	}))
	mux.HandleFunc("/api/loop", post(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true, "loop": a.player.ToggleLoop()})
	}))

	mux.HandleFunc("/api/visualizer", a.visualizer)
	mux.HandleFunc("/api/visualizer/start", post(func(w http.ResponseWriter, r *http.Request) {
		if !a.viz.Start(a.ctx) {
			http.Error(w, "visualizer unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "running": true})
	}))
	mux.HandleFunc("/api/visualizer/stop", post(func(w http.ResponseWriter, r *http.Request) {
		a.viz.Stop()
		writeJSON(w, map[string]any{"ok": true, "running": false})
	}))
	mux.HandleFunc("/api/visualizer/frame.png", a.frame)
	mux.HandleFunc("/api/visualizer/stream", a.mjpeg)

	mux.HandleFunc("/api/theme", a.theme)
	mux.HandleFunc("/api/language", a.language)
	mux.HandleFunc("/api/i18n", a.i18n)
}

// allowed reports whether path may be played and downloaded.
func (a *api) allowed(path string) bool {
	if a.musicDir == "" {
		return true
	}
	dir, err := filepath.Abs(a.musicDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	published, dropped := a.broadcaster.Stats()
	prefs := a.prefs.Get()
	peers := 0
	if a.webrtc != nil {
		peers = a.webrtc.PeerCount()
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, map[string]any{
		"player":           a.player.Status(),
		"volume":           a.session.Volume(),
		"visualizer":       a.viz.Settings(),
		"visualizing":      a.viz.Running(),
		"theme":            prefs.Theme,
		"language":         prefs.Locale,
		"http_listeners":   a.broadcaster.ListenerCount(),
		"webrtc_listeners": peers,
		"frames":           published,
		"dropped":          dropped,
	})
}

func (a *api) transport(action func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(); err != nil {
			playerError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "status": a.player.Status()})
	}
}

func (a *api) seek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position float64 `json:"position"` // seconds
	}
	if !decode(w, r, &req) {
		return
	}
	if math.IsNaN(req.Position) || math.IsInf(req.Position, 0) {
		http.Error(w, "invalid position", http.StatusBadRequest)
		return
	}
	if err := a.player.Seek(time.Duration(req.Position * float64(time.Second))); err != nil {
		playerError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "position": a.player.Status().CurrentTime})
}

// save hands the current track's file back to the browser.
func (a *api) save(w http.ResponseWriter, r *http.Request) {
	track, ok := a.player.Store().Current()
	if !ok {
		http.Error(w, "no track loaded", http.StatusNotFound)
		return
	}
	if !a.allowed(track.Path) {
		http.Error(w, "track outside the music folder", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(track.Path)))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, track.Path)
}

func (a *api) volume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if !decode(w, r, &req) {
		return
	}
	v := a.player.SetVolume(req.Volume)
	if err := a.prefs.SetVolume(v); err != nil {
		log.Printf("Saving volume: %v", err)
	}
	writeJSON(w, map[string]any{"ok": true, "volume": v, "gain": v / 100})
}

type bandView struct {
	equalizer.FilterBand
	Index int    `json:"index"`
	Label string `json:"label"`
}

func (a *api) bandViews() []bandView {
	bands := a.session.Bands()
	views := make([]bandView, len(bands))
	for i, b := range bands {
		views[i] = bandView{FilterBand: b, Index: i, Label: b.Label()}
	}
	return views
}

// responseFreqs spaces points logarithmically over 20 Hz - 20 kHz.
func responseFreqs(n int) []float64 {
	freqs := make([]float64, n)
	for i := range freqs {
		freqs[i] = 20 * math.Pow(1000, float64(i)/float64(n-1))
	}
	return freqs
}

func (a *api) eq(w http.ResponseWriter, r *http.Request) {
	freqs := responseFreqs(responsePoints)
	writeJSON(w, map[string]any{
		"bands":     a.bandViews(),
		"min":       equalizer.MinGainDB,
		"max":       equalizer.MaxGainDB,
		"frequency": freqs,
		"response":  a.session.Response(freqs),
	})
}

func (a *api) saveBands() {
	bands := a.session.Bands()
	gains := make([]float64, len(bands))
	for i, b := range bands {
		gains[i] = b.GainDB
	}
	if err := a.prefs.SetBands(gains); err != nil {
		log.Printf("Saving EQ: %v", err)
	}
}

func (a *api) eqBand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int     `json:"index"`
		Gain  float64 `json:"gain"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index < 0 || req.Index >= equalizer.NumBands {
		http.Error(w, fmt.Sprintf("band index must be 0-%d", equalizer.NumBands-1), http.StatusBadRequest)
		return
	}
	g := a.session.SetBandGain(req.Index, req.Gain)
	a.saveBands()
	writeJSON(w, map[string]any{"ok": true, "index": req.Index, "gain": g})
}

func (a *api) eqReset(w http.ResponseWriter, r *http.Request) {
	a.session.ResetBands()
	a.saveBands()
	writeJSON(w, map[string]any{"ok": true, "bands": a.bandViews()})
}

func (a *api) playlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.player.Store().Snapshot())
}

func (a *api) playlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if !decode(w, r, &req) {
		return
	}
	for _, p := range req.Paths {
		if !library.Supported(p) {
			http.Error(w, fmt.Sprintf("unsupported file: %s", p), http.StatusBadRequest)
			return
		}
		if !a.allowed(p) {
			http.Error(w, fmt.Sprintf("outside the music folder: %s", p), http.StatusForbidden)
			return
		}
	}
	n := a.player.Add(req.Paths...)
	writeJSON(w, map[string]any{"ok": true, "count": n})
}

func (a *api) playlistRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.player.Remove(req.Index); err != nil {
		playerError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "playlist": a.player.Store().Snapshot()})
}

func (a *api) playlistClear(w http.ResponseWriter, r *http.Request) {
	a.player.Clear()
	writeJSON(w, map[string]any{"ok": true})
}

func (a *api) playlistSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.player.Select(req.Index); err != nil {
		playerError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "status": a.player.Status()})
}

func (a *api) visualizer(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Mode        *string `json:"mode"`
			ColorScheme *string `json:"colorScheme"`
			Width       *int    `json:"width"`
			Height      *int    `json:"height"`
		}
		if !decode(w, r, &req) {
			return
		}
		s := a.viz.Settings()
		if req.Mode != nil {
			m, err := visualizer.ParseMode(*req.Mode)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.Mode = m
		}
		if req.ColorScheme != nil {
			c, err := visualizer.ParseColorScheme(*req.ColorScheme)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.ColorScheme = c
		}
		a.viz.SetSettings(s)
		if err := a.prefs.SetVisualizer(s); err != nil {
			log.Printf("Saving visualizer settings: %v", err)
		}
		if req.Width != nil || req.Height != nil {
			width, height := a.viz.Size()
			if req.Width != nil {
				width = *req.Width
			}
			if req.Height != nil {
				height = *req.Height
			}
			a.viz.Resize(width, height)
		}
	}

	width, height := a.viz.Size()
	writeJSON(w, map[string]any{
		"settings":     a.viz.Settings(),
		"running":      a.viz.Running(),
		"width":        width,
		"height":       height,
		"modes":        visualizer.Modes(),
		"colorSchemes": visualizer.ColorSchemes(),
	})
}

func (a *api) frame(w http.ResponseWriter, r *http.Request) {
	pic, err := a.viz.Latest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Write(pic)
}

const mjpegBoundary = "spectraframe"

func (a *api) mjpeg(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store")

	frames := a.viz.Subscribe()
	defer a.viz.Unsubscribe(frames)

	for {
		select {
		case <-r.Context().Done():
			return
		case pic, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(pic)); err != nil {
				return
			}
			if _, err := w.Write(pic); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (a *api) theme(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Theme string `json:"theme"`
		}
		if !decode(w, r, &req) {
			return
		}
		t, err := a.prefs.SetTheme(req.Theme)
		if err != nil {
			log.Printf("Saving theme: %v", err)
		}
		writeJSON(w, map[string]any{"ok": true, "theme": t, "themes": settings.ThemeNames()})
		return
	}
	writeJSON(w, map[string]any{
		"theme":  settings.LookupTheme(a.prefs.Get().Theme),
		"themes": settings.ThemeNames(),
	})
}

func (a *api) language(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Language string `json:"language"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := a.prefs.SetLanguage(req.Language); err != nil {
			if errors.Is(err, settings.ErrUnknownLanguage) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Printf("Saving language: %v", err)
		}
	}
	writeJSON(w, map[string]any{
		"language":   a.prefs.Get().Locale,
		"languages":  settings.Languages,
		"negotiated": settings.Negotiate(r.Header.Get("Accept-Language")),
	})
}

func (a *api) i18n(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = a.prefs.Get().Locale
	}
	if !settings.KnownLanguage(lang) {
		http.Error(w, "unknown language", http.StatusNotFound)
		return
	}
	if key := r.URL.Query().Get("key"); key != "" {
		writeJSON(w, map[string]any{"language": lang, "key": key, "text": settings.T(lang, key)})
		return
	}
	writeJSON(w, map[string]any{"language": lang, "translations": settings.Translations(lang)})
}
