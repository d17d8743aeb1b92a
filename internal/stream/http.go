package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/satindergrewal/spectra/internal/audio"
)

// HTTPHandler serves the equalized output as a chunked MP3 stream. Each
// connection gets its own ffmpeg encoder fed from the broadcaster.
type HTTPHandler struct {
	broadcaster *Broadcaster
	bitrate     int // kbit/s
}

// NewHTTPHandler creates an MP3 stream handler encoding at bitrateKbps.
func NewHTTPHandler(b *Broadcaster, bitrateKbps int) *HTTPHandler {
	if bitrateKbps <= 0 {
		bitrateKbps = 192
	}
	return &HTTPHandler{broadcaster: b, bitrate: bitrateKbps}
}

// encoderArgs are the ffmpeg arguments turning s16le PCM on stdin into MP3
// on stdout.
func (h *HTTPHandler) encoderArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", h.bitrate),
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "spectra")
	w.Header().Set("ICY-Br", strconv.Itoa(h.bitrate))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", h.encoderArgs()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Printf("HTTP stream: stdin pipe error: %v", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Printf("HTTP stream: stdout pipe error: %v", err)
		return
	}

	if err := cmd.Start(); err != nil {
		log.Printf("HTTP stream: ffmpeg start error: %v", err)
		return
	}

	log.Printf("HTTP listener %s connected", r.RemoteAddr)
	defer log.Printf("HTTP listener %s disconnected", r.RemoteAddr)

	go func() {
		defer stdin.Close()
		h.broadcaster.Drain(ctx, "http "+r.RemoteAddr, func(frame []int16) error {
			_, err := stdin.Write(audio.SamplesToBytes(frame))
			return err
		})
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("HTTP stream: ffmpeg read error: %v", err)
			}
			break
		}
	}

	cmd.Wait()
}
