package sequencer

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestVoiceCacheReusesEqualTimbres(t *testing.T) {
	synth := &recordingSynth{}
	cache := NewVoiceCache(synth, DefaultVoiceLimits())

	a := &Instrument{ID: "a", Waveform: Square, ADSR: ADSR{0.01, 0.1, 0.5, 0.1}, Gain: 0.1}
	b := *a
	b.ID = "b" // ids are not part of the key

	va, err := cache.Acquire(a)
	if err != nil {
		t.Fatal(err)
	}
	vb, err := cache.Acquire(&b)
	if err != nil {
		t.Fatal(err)
	}
	if va != vb {
		t.Fatal("equal timbres should share a voice")
	}
	if cache.Len() != 1 || len(synth.voices) != 1 {
		t.Fatalf("want 1 voice, cache=%d synth=%d", cache.Len(), len(synth.voices))
	}

	c := *a
	c.Waveform = Triangle
	if vc, _ := cache.Acquire(&c); vc == va {
		t.Fatal("different waveform must not share a voice")
	}
	if cache.Len() != 2 {
		t.Fatalf("want 2 voices, got %d", cache.Len())
	}
}

func TestVoiceKeyClamps(t *testing.T) {
	cache := NewVoiceCache(&recordingSynth{}, DefaultVoiceLimits())

	tests := []struct {
		name string
		inst *Instrument
		want VoiceKey
	}{
		{
			name: "nil is default timbre",
			inst: nil,
			want: VoiceKey{Sine, 0.02, 0.2, 0.8, 0.3, 0.2},
		},
		{
			name: "long release and loud gain are capped",
			inst: &Instrument{Waveform: Sawtooth, ADSR: ADSR{0.1, 0.1, 0.5, 2}, Gain: 1},
			want: VoiceKey{Sawtooth, 0.1, 0.1, 0.5, 0.3, 0.2},
		},
		{
			name: "bad numbers fall back",
			inst: &Instrument{Waveform: "organ", ADSR: ADSR{math.NaN(), -1, 3, math.Inf(1)}, Gain: 0.05},
			want: VoiceKey{Sine, 0.02, 0, 1, 0.3, 0.05},
		},
	}
	for _, tt := range tests {
		if got := cache.KeyFor(tt.inst); got != tt.want {
			t.Errorf("%s: key = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestVoiceCacheCustomLimits(t *testing.T) {
	cache := NewVoiceCache(&recordingSynth{}, VoiceLimits{MaxRelease: 1, MaxGain: 0.5})
	key := cache.KeyFor(&Instrument{Waveform: Sine, ADSR: ADSR{Release: 0.8}, Gain: 0.9})
	if key.Release != 0.8 || key.Gain != 0.5 {
		t.Fatalf("unexpected key %+v", key)
	}
}

func TestVoiceTriggerConvertsNote(t *testing.T) {
	synth := &recordingSynth{}
	cache := NewVoiceCache(synth, DefaultVoiceLimits())
	v, _ := cache.Acquire(nil)

	at := time.Unix(100, 0)
	v.Trigger(69, 140*time.Millisecond, at)

	played := synth.played()
	if len(played) != 1 {
		t.Fatalf("want 1 trigger, got %d", len(played))
	}
	p := played[0]
	if p.Frequency != 440 || p.Note != 69 || p.Duration != 140*time.Millisecond || !p.At.Equal(at) {
		t.Fatalf("unexpected trigger %+v", p)
	}
}

func TestVoiceCacheDisposeAll(t *testing.T) {
	synth := &recordingSynth{}
	cache := NewVoiceCache(synth, DefaultVoiceLimits())
	cache.Acquire(nil)
	cache.Acquire(&Instrument{Waveform: Square})

	if err := cache.DisposeAll(); err != nil {
		t.Fatal(err)
	}
	if err := cache.DisposeAll(); !errors.Is(err, ErrVoiceCacheClosed) {
		t.Fatalf("second dispose = %v, want ErrVoiceCacheClosed", err)
	}
	for _, v := range synth.voices {
		if v.closes != 1 {
			t.Fatalf("voice %+v closed %d times", v.key, v.closes)
		}
	}
	if _, err := cache.Acquire(nil); !errors.Is(err, ErrVoiceCacheClosed) {
		t.Fatalf("acquire after dispose = %v", err)
	}
}

func TestVoiceCacheSynthFailure(t *testing.T) {
	boom := errors.New("no device")
	cache := NewVoiceCache(&recordingSynth{fail: boom}, DefaultVoiceLimits())
	if _, err := cache.Acquire(nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if cache.Len() != 0 {
		t.Fatal("failed voice must not be cached")
	}
}
