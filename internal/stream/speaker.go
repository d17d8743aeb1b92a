package stream

import (
	"context"
	"fmt"
	"log"

	"github.com/hajimehoshi/oto"

	"github.com/satindergrewal/spectra/internal/audio"
)

// speakerBuffer is about 100ms of output latency.
const speakerBuffer = 5 * audio.FrameBytes

// Speaker plays broadcaster output on the host's default audio device.
type Speaker struct {
	broadcaster *Broadcaster
	ctx         *oto.Context
	player      *oto.Player
}

// NewSpeaker opens the default output device.
func NewSpeaker(b *Broadcaster) (*Speaker, error) {
	c, err := oto.NewContext(audio.SampleRate, audio.Channels, audio.BitDepth/8, speakerBuffer)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	return &Speaker{broadcaster: b, ctx: c, player: c.NewPlayer()}, nil
}

// Run writes frames to the device until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) {
	log.Printf("Speaker output started")
	err := s.broadcaster.Drain(ctx, "speaker", func(frame []int16) error {
		_, err := s.player.Write(audio.SamplesToBytes(frame))
		return err
	})
	if err != nil {
		log.Printf("Speaker write error, stopping: %v", err)
	}
}

func (s *Speaker) Close() error {
	if err := s.player.Close(); err != nil {
		return err
	}
	return s.ctx.Close()
}
