package player

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satindergrewal/spectra/internal/equalizer"
	"github.com/satindergrewal/spectra/internal/media"
	"github.com/satindergrewal/spectra/internal/playlist"
)

// writeTone writes a 48 kHz stereo 440 Hz tone of the given length.
func writeTone(t *testing.T, path string, length time.Duration) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := int(length.Seconds() * 48000)
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		v := int(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
		data[2*i], data[2*i+1] = v, v
	}
	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	buf := &audio.IntBuffer{Data: data, Format: &audio.Format{NumChannels: 2, SampleRate: 48000}, SourceBitDepth: 16}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func newPlayer(t *testing.T, tracks int, length time.Duration) (*Player, []string) {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i := 0; i < tracks; i++ {
		p := filepath.Join(dir, string(rune('a'+i))+".wav")
		writeTone(t, p, length)
		paths = append(paths, p)
	}

	session := equalizer.New(equalizer.Options{})
	el := media.NewElement(nil)
	if !session.InitContext() || !session.Connect(el) {
		t.Fatal("session setup failed")
	}
	p := New(playlist.New(), el, session)
	p.Add(paths...)
	return p, paths
}

func TestPlayLoadsCurrentTrack(t *testing.T) {
	p, paths := newPlayer(t, 2, 200*time.Millisecond)
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	st := p.Status()
	if !st.Playing || st.Paused {
		t.Errorf("status after Play: %+v", st)
	}
	if st.Track == nil || st.Track.Path != paths[0] {
		t.Errorf("track = %+v", st.Track)
	}
	if st.Duration < 0.19 || st.Duration > 0.21 {
		t.Errorf("duration = %v", st.Duration)
	}
	if st.Graph != "element-connected" || st.Context != "running" {
		t.Errorf("graph=%s context=%s", st.Graph, st.Context)
	}
}

func TestPlayEmptyPlaylist(t *testing.T) {
	session := equalizer.New(equalizer.Options{})
	el := media.NewElement(nil)
	session.Attach(el)
	p := New(playlist.New(), el, session)
	if err := p.Play(); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v", err)
	}
	if err := p.Next(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Next err = %v", err)
	}
}

func TestPauseToggleStop(t *testing.T) {
	p, _ := newPlayer(t, 1, 200*time.Millisecond)
	p.Play()
	if err := p.Toggle(); err != nil {
		t.Fatal(err)
	}
	if st := p.Status(); st.Playing || !st.Paused {
		t.Errorf("after toggle: %+v", st.Snapshot)
	}
	p.Toggle()
	if !p.Status().Playing {
		t.Error("second toggle did not resume")
	}
	p.Seek(100 * time.Millisecond)
	p.Stop()
	st := p.Status()
	if st.Playing || st.Paused || st.CurrentTime != 0 {
		t.Errorf("after Stop: %+v", st.Snapshot)
	}
}

func TestSelectNextPrevious(t *testing.T) {
	p, paths := newPlayer(t, 3, 100*time.Millisecond)
	if err := p.Select(2); err != nil {
		t.Fatal(err)
	}
	if p.element.Src() != paths[2] {
		t.Errorf("src = %s", p.element.Src())
	}
	p.Next()
	if p.element.Src() != paths[0] {
		t.Errorf("Next did not wrap: %s", p.element.Src())
	}
	p.Previous()
	if p.element.Src() != paths[2] {
		t.Errorf("Previous did not wrap: %s", p.element.Src())
	}
	if err := p.Select(9); !errors.Is(err, playlist.ErrIndexOutOfRange) {
		t.Errorf("Select(9) err = %v", err)
	}
}

func TestVolumeReachesSession(t *testing.T) {
	p, _ := newPlayer(t, 1, 100*time.Millisecond)
	if got := p.SetVolume(130); got != 100 {
		t.Errorf("SetVolume = %v", got)
	}
	if p.session.Volume() != 100 {
		t.Errorf("session volume = %v", p.session.Volume())
	}
	p.SetVolume(25)
	if p.session.Volume() != 25 || p.store.Volume() != 25 {
		t.Error("volume not mirrored")
	}
}

func TestToggleLoopSetsElement(t *testing.T) {
	p, _ := newPlayer(t, 1, 100*time.Millisecond)
	if !p.ToggleLoop() || !p.element.Loop() {
		t.Error("loop not applied to element")
	}
}

func TestRemoveLoadedTrackStops(t *testing.T) {
	p, paths := newPlayer(t, 2, 100*time.Millisecond)
	p.Play()
	if err := p.Remove(0); err != nil {
		t.Fatal(err)
	}
	if p.element.Src() != "" || p.Status().Playing {
		t.Error("removing the loaded track kept it playing")
	}
	if tr, _ := p.store.Current(); tr.Path != paths[1] {
		t.Errorf("current = %s", tr.Path)
	}
}

func TestRemoveDuplicateKeepsPlaying(t *testing.T) {
	p, paths := newPlayer(t, 2, 100*time.Millisecond)
	p.Add(paths[0])
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(2); err != nil {
		t.Fatal(err)
	}
	if p.element.Src() != paths[0] || !p.Status().Playing {
		t.Error("removing a copy of the loaded track stopped playback")
	}
	if p.store.CurrentIndex() != 0 || p.store.Count() != 2 {
		t.Errorf("current = %d, count = %d", p.store.CurrentIndex(), p.store.Count())
	}
}

func TestClear(t *testing.T) {
	p, _ := newPlayer(t, 2, 100*time.Millisecond)
	p.Play()
	p.Clear()
	if p.store.Count() != 0 || p.element.Src() != "" || p.Status().Playing {
		t.Error("Clear left state behind")
	}
}

func TestTrackEndAdvances(t *testing.T) {
	p, paths := newPlayer(t, 2, 60*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.element.Run(ctx)

	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for p.element.Src() != paths[1] {
		if time.Now().After(deadline) {
			t.Fatal("player did not advance after track end")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
