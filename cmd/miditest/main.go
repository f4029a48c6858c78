// Command miditest exercises MIDI ports outside the looper UI.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-looper/audio"
	looper "go-looper/midi"
	"go-looper/sequencer"
	"go-looper/widgets"
)

type command struct {
	name, args, help string
	run              func(arg string) error
}

var commands = []command{
	{"list", "", "show every input and output port", func(string) error { return list() }},
	{"monitor", "[name]", "print stamped notes from a keyboard", monitor},
	{"ping", "[name]", "play an arpeggio on a MIDI output", ping},
	{"poll", "", "report port changes until interrupted", func(string) error { return poll() }},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	i := slices.IndexFunc(commands, func(c command) bool { return c.name == os.Args[1] })
	if i < 0 {
		usage()
		os.Exit(2)
	}

	var arg string
	if len(os.Args) > 2 {
		arg = os.Args[2]
	}
	if err := commands[i].run(arg); err != nil {
		fmt.Fprintln(os.Stderr, "miditest:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: miditest <command> [arg]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %-7s %s\n", c.name, c.args, c.help)
	}
}

func scanPorts() (looper.Ports, error) {
	ports, err := looper.ListPorts(3 * time.Second)
	if err != nil {
		return ports, fmt.Errorf("%w (try: sudo killall coreaudiod midiserver)", err)
	}
	return ports, nil
}

func portNames[P interface{ String() string }](ports []P) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

func list() error {
	ports, err := scanPorts()
	if err != nil {
		return err
	}
	for _, group := range []struct {
		title string
		names []string
	}{
		{"inputs", portNames(ports.Ins)},
		{"outputs", portNames(ports.Outs)},
	} {
		fmt.Printf("%s (%d)\n", group.title, len(group.names))
		for i, n := range group.names {
			fmt.Printf("  %2d  %s\n", i, n)
		}
	}
	return nil
}

// findIn returns the first input whose name contains name, or the first
// non-loopback input when name is empty.
func findIn(name string) drivers.In {
	want := strings.ToLower(name)
	for _, p := range midi.GetInPorts() {
		pn := strings.ToLower(p.String())
		if want == "" && strings.Contains(pn, "midi through") {
			continue
		}
		if strings.Contains(pn, want) {
			return p
		}
	}
	return nil
}

func monitor(name string) error {
	port := findIn(name)
	if port == nil {
		return fmt.Errorf("no input matches %q", name)
	}

	kb, err := looper.NewKeyboardController(port.String(), port, &looper.NoteIDs{})
	if err != nil {
		return err
	}
	defer kb.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	fmt.Printf("monitoring %s, ctrl+c to stop\n", port.String())

	for {
		select {
		case <-sig:
			return nil
		case ev := <-kb.NoteEvents():
			fmt.Printf("  #%-4d note %3d (%-4s %7.2f Hz) vel %3d ch %d\n",
				ev.ID, ev.Note, widgets.NoteName(ev.Note), sequencer.NoteFrequency(ev.Note), ev.Velocity, ev.Channel+1)
		}
	}
}

func ping(name string) error {
	out, err := audio.OpenMIDIOutput(name, 1)
	if err != nil {
		return err
	}
	defer out.Close()

	v, err := out.NewVoice(sequencer.VoiceKey{Waveform: sequencer.Square, Sustain: 1, Release: 0.1, Gain: 0.2})
	if err != nil {
		return err
	}

	start := time.Now()
	for i, note := range []uint8{60, 64, 67, 72} {
		v.Play(sequencer.Trigger{
			Note:     note,
			Duration: 200 * time.Millisecond,
			At:       start.Add(time.Duration(i) * 250 * time.Millisecond),
		})
	}
	time.Sleep(1200 * time.Millisecond)
	fmt.Println("sent C major arpeggio")
	return nil
}

func poll() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()

	var prevIns, prevOuts []string
	first := true
	for {
		if ports, err := scanPorts(); err != nil {
			fmt.Printf("%s  %v\n", time.Now().Format(time.TimeOnly), err)
		} else {
			ins, outs := portNames(ports.Ins), portNames(ports.Outs)
			if first || !slices.Equal(ins, prevIns) || !slices.Equal(outs, prevOuts) {
				fmt.Printf("%s  in=%v out=%v\n", time.Now().Format(time.TimeOnly), ins, outs)
				prevIns, prevOuts, first = ins, outs, false
			}
		}

		select {
		case <-sig:
			return nil
		case <-tick.C:
		}
	}
}
