package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satindergrewal/spectra/internal/config"
	"github.com/satindergrewal/spectra/internal/equalizer"
	"github.com/satindergrewal/spectra/internal/library"
	"github.com/satindergrewal/spectra/internal/media"
	"github.com/satindergrewal/spectra/internal/player"
	"github.com/satindergrewal/spectra/internal/playlist"
	"github.com/satindergrewal/spectra/internal/settings"
	"github.com/satindergrewal/spectra/internal/stream"
	"github.com/satindergrewal/spectra/internal/visualizer"
	"github.com/satindergrewal/spectra/internal/web"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("spectra starting up...")

	// Saved preferences. A broken file is reported and replaced on next save.
	_, statErr := os.Stat(cfg.SettingsPath)
	prefs, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		log.Printf("Settings: %v (using defaults)", err)
	}
	if errors.Is(statErr, fs.ErrNotExist) {
		if err := prefs.SetVolume(cfg.Volume); err != nil {
			log.Printf("Settings: %v", err)
		}
	}
	saved := prefs.Get()

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx)

	// Audio graph: element -> 15 band filters -> analyser -> gain -> broadcaster
	session := equalizer.New(equalizer.Options{
		FFTSize:    cfg.FFTSize,
		Smoothing:  cfg.Smoothing,
		Sink:       broadcaster.Publish,
		ProbeDelay: 500 * time.Millisecond,
	})
	element := media.NewElement(broadcaster.Publish)
	if !session.Attach(element) {
		log.Println("Equalizer unavailable, playing unprocessed audio")
	}
	go element.Run(ctx)

	// Playlist + transport
	p := player.New(playlist.New(), element, session)
	p.SetVolume(saved.Volume)
	for i, gain := range saved.Bands {
		session.SetBandGain(i, gain)
	}
	go p.Run(ctx)

	// Visualizer renders from the analyser
	viz := visualizer.NewLoop(session, cfg.CanvasWidth, cfg.CanvasHeight, cfg.FPS)
	viz.SetSettings(saved.Visualizer)
	viz.Start(ctx)

	// Edits to the settings file apply live
	prefs.OnChange(func(pr settings.Prefs) {
		viz.SetSettings(pr.Visualizer)
		p.SetVolume(pr.Volume)
		for i, gain := range pr.Bands {
			session.SetBandGain(i, gain)
		}
		log.Printf("Settings reloaded: theme=%s language=%s", pr.Theme, pr.Locale)
	})
	go func() {
		if err := prefs.Watch(ctx); err != nil {
			log.Printf("Settings watcher: %v", err)
		}
	}()

	// Music folder (optional)
	if cfg.MusicDir != "" {
		go func() {
			if err := library.Watch(ctx, cfg.MusicDir, func(paths ...string) { p.Add(paths...) }); err != nil {
				log.Printf("Music folder: %v", err)
			}
		}()
	} else {
		log.Println("No music folder (set SPECTRA_MUSIC_DIR to load one)")
	}

	// Local speaker (optional)
	if cfg.Speaker {
		speaker, err := stream.NewSpeaker(broadcaster)
		if err != nil {
			log.Printf("Speaker unavailable: %v", err)
		} else {
			defer speaker.Close()
			go speaker.Run(ctx)
		}
	}

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.OpusBitrate)

	// HTTP routes
	mux := http.NewServeMux()

	// Web UI
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	// Audio streams
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate))
	mux.Handle("/offer", webrtcHandler)

	(&api{
		ctx:         ctx,
		musicDir:    cfg.MusicDir,
		player:      p,
		session:     session,
		viz:         viz,
		prefs:       prefs,
		broadcaster: broadcaster,
		webrtc:      webrtcHandler,
	}).routes(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		viz.Stop()
		webrtcHandler.Close()
		session.Cleanup()
		log.Println(p.Describe())
		server.Close()
	}()

	log.Printf("spectra live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
