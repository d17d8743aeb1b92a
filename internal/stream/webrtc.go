package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/spectra/internal/audio"
)

// maxOpusPacket is the largest packet the encoder may produce for one frame.
const maxOpusPacket = 4000

// WebRTCHandler answers SDP offers on /offer and streams the equalized
// output to each peer as Opus.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	bitrate     int // bit/s

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]context.CancelFunc
}

// NewWebRTCHandler creates a WebRTC handler encoding Opus at bitrate bit/s.
func NewWebRTCHandler(b *Broadcaster, bitrate int) *WebRTCHandler {
	if bitrate <= 0 {
		bitrate = 128000
	}
	return &WebRTCHandler{
		broadcaster: b,
		bitrate:     bitrate,
		peers:       make(map[*webrtc.PeerConnection]context.CancelFunc),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := h.accept(offer)
	if err != nil {
		log.Printf("WebRTC: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.peers[pc] = cancel
	total := len(h.peers)
	h.mu.Unlock()
	log.Printf("WebRTC peer connected (total: %d)", total)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			if h.drop(pc) {
				log.Printf("WebRTC peer %s (remaining: %d)", s, h.PeerCount())
			}
		}
	})

	go h.stream(ctx, pc, track)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// accept builds a peer connection with one Opus track for offer and waits
// for ICE gathering so the answer carries every candidate.
func (h *WebRTCHandler) accept(offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, fmt.Errorf("create peer connection: %w", err)
	}

	track, err := h.negotiate(pc, offer)
	if err != nil {
		pc.Close()
		return nil, nil, err
	}
	return pc, track, nil
}

func (h *WebRTCHandler) negotiate(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.TrackLocalStaticSample, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.SampleRate, Channels: audio.Channels},
		"audio",
		"spectra",
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	<-gathered
	return track, nil
}

// stream feeds the peer until it disconnects or a sample cannot be written.
func (h *WebRTCHandler) stream(ctx context.Context, pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample) {
	defer h.drop(pc)

	write, err := opusWriter(track, h.bitrate)
	if err != nil {
		log.Printf("WebRTC: %v", err)
		return
	}
	if err := h.broadcaster.Drain(ctx, "webrtc", write); err != nil {
		log.Printf("WebRTC: peer stream ended: %v", err)
	}
}

// opusWriter returns a frame sink that encodes to Opus and writes one sample
// per frame to track.
func opusWriter(track *webrtc.TrackLocalStaticSample, bitrate int) (func(frame []int16) error, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		log.Printf("WebRTC: opus bitrate %d: %v", bitrate, err)
	}

	packet := make([]byte, maxOpusPacket)
	return func(frame []int16) error {
		n, err := enc.Encode(frame, packet)
		if err != nil {
			log.Printf("WebRTC: opus encode: %v", err)
			return nil // skip the frame, keep the peer
		}
		return track.WriteSample(media.Sample{Data: packet[:n], Duration: audio.FrameDuration})
	}, nil
}

// drop forgets pc, stops its stream and closes it. It reports whether pc
// was still registered.
func (h *WebRTCHandler) drop(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	cancel, ok := h.peers[pc]
	delete(h.peers, pc)
	h.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	pc.Close()
	return true
}

// Close disconnects every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := make([]*webrtc.PeerConnection, 0, len(h.peers))
	for pc := range h.peers {
		peers = append(peers, pc)
	}
	h.mu.Unlock()
	for _, pc := range peers {
		h.drop(pc)
	}
}
