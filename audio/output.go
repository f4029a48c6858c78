package audio

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// Output plays a Mixer on the default sound device
type Output struct {
	mixer     *Mixer
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	buffer    []float64
	running   atomic.Bool
}

// NewOutput opens the sound device and starts pulling from mixer
func NewOutput(mixer *Mixer) (*Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   mixer.SampleRate(),
		ChannelCount: 1, // Mono
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	out := &Output{
		mixer:  mixer,
		otoCtx: otoCtx,
		buffer: make([]float64, 512),
	}
	out.running.Store(true)

	out.otoPlayer = otoCtx.NewPlayer(&stream{out: out})
	out.otoPlayer.SetBufferSize(mixer.SampleRate() / 20 * 2) // 50ms of 16-bit mono
	out.otoPlayer.Play()

	return out, nil
}

// Close stops the audio output
func (o *Output) Close() error {
	o.running.Store(false)
	if o.otoPlayer != nil {
		return o.otoPlayer.Close()
	}
	return nil
}

// stream implements io.Reader for oto
type stream struct {
	out *Output
}

func (s *stream) Read(buf []byte) (int, error) {
	samples := len(buf) / 2 // 16-bit = 2 bytes per sample
	if !s.out.running.Load() {
		clear(buf[:samples*2])
		return samples * 2, nil
	}

	if samples > len(s.out.buffer) {
		s.out.buffer = make([]float64, samples)
	}
	s.out.mixer.Render(s.out.buffer[:samples])
	encodePCM16(buf, s.out.buffer[:samples])
	return samples * 2, nil
}

// encodePCM16 writes samples as little-endian signed 16-bit
func encodePCM16(dst []byte, samples []float64) {
	for i, sample := range samples {
		if sample > 1.0 {
			sample = 1.0
		}
		if sample < -1.0 {
			sample = -1.0
		}
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(sample*32767)))
	}
}
