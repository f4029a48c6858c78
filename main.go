package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-looper/audio"
	"go-looper/config"
	"go-looper/debug"
	"go-looper/midi"
	"go-looper/sequencer"
	"go-looper/theme"
	"go-looper/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-looper/config.json)")
	debugLog := flag.Bool("debug", false, "write a debug log to ~/.config/go-looper/debug.log")
	backend := flag.String("backend", "", "sound backend: oto, midi or none")
	presets := flag.String("presets", "", "instrument presets YAML file")
	dumpPresets := flag.Bool("dump-presets", false, "print the built-in presets as YAML and exit")
	flag.Parse()

	if *dumpPresets {
		if err := writeDefaultPresets(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *debugLog, *backend, *presets); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// writeDefaultPresets writes a starting point for a --presets file
func writeDefaultPresets(w io.Writer) error {
	data, err := sequencer.MarshalPresets(sequencer.DefaultPresets())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func run(configPath string, debugLog bool, backend, presetsPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Backend = config.Backend(backend)
	}
	if presetsPath != "" {
		cfg.PresetsPath = presetsPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if debugLog || cfg.Debug {
		if err := debug.Enable(debug.DefaultPath()); err != nil {
			return err
		}
		defer debug.Disable()
	}

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		debug.Log("ui", "palette %s: %v, using built-in", cfg.UI.Palette, err)
	}
	th := theme.New(palette)

	var instruments []sequencer.Instrument
	if cfg.PresetsPath != "" {
		instruments, err = sequencer.LoadPresets(cfg.PresetsPath)
		if err != nil {
			return err
		}
	}

	synth, output, err := openSynth(cfg)
	if err != nil {
		return err
	}
	if output != nil {
		defer output.Close()
	}

	manager := sequencer.NewManager(sequencer.Options{
		Synth: synth,
		Limits: sequencer.VoiceLimits{
			MaxRelease: cfg.Voice.MaxRelease,
			MaxGain:    cfg.Voice.MaxGain,
		},
		Channels: cfg.Channels,
		Tempo:    cfg.Tempo,
		Presets:  instruments,
		FPS:      cfg.UI.FPS,
	})
	defer manager.Close()
	manager.StartRuntime()

	// Create MIDI device manager (handles hot-plug)
	var deviceMgr *midi.DeviceManager
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Keyboard.AutoConnect {
		deviceMgr = midi.NewDeviceManager(manager.IDs, cfg.Keyboard.PortName)
		go deviceMgr.Run(ctx)
	}

	debug.Log("main", "backend=%s tempo=%.0f channels=%d", cfg.Backend, cfg.Tempo, cfg.Channels)

	m := tui.NewModel(manager, deviceMgr, th)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// openSynth builds the configured backend. The closer, when non-nil,
// shuts the device down after the manager has released its voices.
func openSynth(cfg *config.Config) (sequencer.Synth, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMIDI:
		out, err := audio.OpenMIDIOutput(cfg.SynthOutput.PortName, cfg.SynthOutput.Channel)
		if err != nil {
			return nil, nil, err
		}
		return out, out, nil

	case config.BackendNone:
		return &audio.Silent{}, nil, nil
	}

	mixer := audio.NewMixer(cfg.Audio.SampleRate, cfg.Audio.MasterGain, cfg.Audio.LimitDB)
	out, err := audio.NewOutput(mixer)
	if err != nil {
		return nil, nil, fmt.Errorf("audio output: %w", err)
	}
	return mixer, out, nil
}
