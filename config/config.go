package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Backend selects where voice triggers are rendered
type Backend string

const (
	BackendOto  Backend = "oto"  // built-in software synth
	BackendMIDI Backend = "midi" // external synth over MIDI out
	BackendNone Backend = "none" // silent, for headless runs
)

// KeyboardConfig selects which MIDI inputs act as note keyboards
type KeyboardConfig struct {
	PortName    string `json:"portName,omitempty"` // substring match, empty = any
	AutoConnect bool   `json:"autoConnect"`
}

// SynthOutputConfig defines the MIDI output used by the midi backend
type SynthOutputConfig struct {
	PortName string `json:"portName,omitempty"`
	Channel  int    `json:"channel,omitempty"` // 1-16, first channel voices are allocated from
}

// AudioConfig configures the built-in software synth
type AudioConfig struct {
	SampleRate int     `json:"sampleRate"`
	MasterGain float64 `json:"masterGain"`
	LimitDB    float64 `json:"limitDb"`
}

// VoiceConfig caps per-voice parameters before voices are built
type VoiceConfig struct {
	MaxRelease float64 `json:"maxRelease"`
	MaxGain    float64 `json:"maxGain"`
}

// UIConfig holds terminal UI settings
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // .gpl file, empty = built-in
	FPS     int    `json:"fps,omitempty"`
}

// Config is everything read from config.json
type Config struct {
	Tempo       float64           `json:"tempo"`
	Channels    int               `json:"channels"`
	Backend     Backend           `json:"backend"`
	PresetsPath string            `json:"presetsPath,omitempty"`
	Keyboard    KeyboardConfig    `json:"keyboard"`
	SynthOutput SynthOutputConfig `json:"synthOutput,omitempty"`
	Audio       AudioConfig       `json:"audio"`
	Voice       VoiceConfig       `json:"voice"`
	UI          UIConfig          `json:"ui,omitempty"`
	Debug       bool              `json:"debug,omitempty"`
}

// DefaultConfig is used for any field the file leaves out
func DefaultConfig() *Config {
	return &Config{
		Tempo:    86,
		Channels: 5,
		Backend:  BackendOto,
		Keyboard: KeyboardConfig{
			AutoConnect: true,
		},
		SynthOutput: SynthOutputConfig{
			Channel: 1,
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			MasterGain: 2,
			LimitDB:    -3,
		},
		Voice: VoiceConfig{
			MaxRelease: 0.3,
			MaxGain:    0.2,
		},
		UI: UIConfig{
			FPS: 30,
		},
	}
}

// Validate reports the first field that cannot be used as is
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOto, BackendMIDI, BackendNone:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", c.Channels)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.SynthOutput.Channel < 0 || c.SynthOutput.Channel > 16 {
		return fmt.Errorf("synth output channel must be 1-16, got %d", c.SynthOutput.Channel)
	}
	if c.Voice.MaxRelease < 0 || c.Voice.MaxGain < 0 {
		return fmt.Errorf("voice limits must not be negative")
	}
	return nil
}

// ConfigDir is ~/.config/go-looper
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(home, ".config", "go-looper"), nil
}

// ConfigPath is the config.json inside ConfigDir
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	return filepath.Join(dir, "config.json"), err
}

// Load reads ConfigPath, or returns defaults when there is no file.
// Fields missing from the file keep their default values.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to ConfigPath
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes indented JSON, creating the parent directory
func (c *Config) SaveFile(path string) error {
	data, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
