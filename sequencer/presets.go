package sequencer

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yml
var defaultPresetsYaml []byte

type presetFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// DefaultPresets returns the built-in instrument presets
func DefaultPresets() []Instrument {
	presets, err := ParsePresets(defaultPresetsYaml)
	if err != nil {
		panic(fmt.Errorf("failed to parse built-in presets: %w", err))
	}
	return presets
}

// LoadPresets reads an instrument preset file
func LoadPresets(path string) ([]Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	presets, err := ParsePresets(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return presets, nil
}

// ParsePresets decodes preset YAML and checks every entry
func ParsePresets(data []byte) ([]Instrument, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(f.Instruments))
	for i := range f.Instruments {
		inst := &f.Instruments[i]
		if inst.ID == "" {
			return nil, fmt.Errorf("preset %d has no id", i)
		}
		if seen[inst.ID] {
			return nil, fmt.Errorf("duplicate preset id %q", inst.ID)
		}
		seen[inst.ID] = true

		if inst.Waveform == "" {
			inst.Waveform = Sine
		}
		if !inst.Waveform.Valid() {
			return nil, fmt.Errorf("preset %q: unknown waveform %q", inst.ID, inst.Waveform)
		}
		if inst.Gain < 0 || !finite(inst.Gain) {
			return nil, fmt.Errorf("preset %q: bad gain %v", inst.ID, inst.Gain)
		}
	}
	return f.Instruments, nil
}

// MarshalPresets encodes presets in the file layout ParsePresets reads
func MarshalPresets(presets []Instrument) ([]byte, error) {
	return yaml.Marshal(presetFile{Instruments: presets})
}
