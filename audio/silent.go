package audio

import (
	"sync/atomic"

	"go-looper/sequencer"
)

// Silent discards every trigger. It counts them so headless runs can
// still show activity.
type Silent struct {
	played atomic.Int64
}

// NewVoice implements sequencer.Synth
func (s *Silent) NewVoice(key sequencer.VoiceKey) (sequencer.VoiceOutput, error) {
	return silentVoice{s: s}, nil
}

// Played returns how many triggers were received
func (s *Silent) Played() int64 {
	return s.played.Load()
}

type silentVoice struct {
	s *Silent
}

func (v silentVoice) Play(sequencer.Trigger) { v.s.played.Add(1) }
func (v silentVoice) Close() error           { return nil }
