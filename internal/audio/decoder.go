package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrInvalidWAV is returned when a .wav file has no usable RIFF/WAVE header.
var ErrInvalidWAV = errors.New("invalid wav file")

// DecodeFile decodes an audio file to interleaved stereo int16 samples at
// SampleRate. MP3 and WAV are decoded natively; anything else goes through
// FFmpeg.
func DecodeFile(path string) ([]int16, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(path)
	case ".wav", ".wave":
		return decodeWAV(path)
	default:
		return decodeFFmpeg(path)
	}
}

func decodeMP3(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode %s: %w", path, err)
	}

	// go-mp3 always yields 16-bit little-endian stereo
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("mp3 read %s: %w", path, err)
	}
	samples := BytesToSamples(raw)
	if d.SampleRate() == SampleRate {
		return samples, nil
	}
	return convertRate(Deinterleave(samples, nil), float64(d.SampleRate()))
}

func decodeWAV(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode %s: %w", path, err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	planar, err := wavPlanar(buf.Data, buf.Format.NumChannels, bitDepth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if buf.Format.SampleRate == SampleRate {
		return Interleave(planar), nil
	}
	return convertRate(planar, float64(buf.Format.SampleRate))
}

// wavPlanar scales integer WAV samples to [-1, 1) stereo. 8-bit WAV is
// unsigned and centred on 128.
func wavPlanar(data []int, numCh, bitDepth int) ([][]float64, error) {
	if numCh < 1 || bitDepth < 1 || bitDepth > 32 {
		return nil, ErrInvalidWAV
	}
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(data) / numCh
	planar := [][]float64{make([]float64, frames), make([]float64, frames)}
	for i := 0; i < frames; i++ {
		left := (float64(data[i*numCh]) - offset) / scale
		right := left
		if numCh > 1 {
			right = (float64(data[i*numCh+1]) - offset) / scale
		}
		planar[0][i] = left
		planar[1][i] = right
	}
	return planar, nil
}

// convertRate resamples planar channels from inRate to SampleRate.
func convertRate(planar [][]float64, inRate float64) ([]int16, error) {
	out := make([][]float64, len(planar))
	for c, ch := range planar {
		r, err := resample.NewForRates(inRate, SampleRate)
		if err != nil {
			return nil, fmt.Errorf("resample %.0f Hz: %w", inRate, err)
		}
		out[c] = r.Process(ch)
	}
	// channels may differ by a sample after filtering
	n := len(out[0])
	for _, ch := range out[1:] {
		n = min(n, len(ch))
	}
	for c := range out {
		out[c] = out[c][:n]
	}
	return Interleave(out), nil
}

// decodeFFmpeg runs FFmpeg to decode an audio file to raw PCM int16 samples.
func decodeFFmpeg(path string) ([]int16, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return BytesToSamples(out), nil
}

// BytesToSamples converts little-endian PCM bytes to int16 samples,
// dropping a trailing odd byte.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
