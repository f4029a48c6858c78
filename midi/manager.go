package midi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-looper/debug"
)

// ErrPortScanTimeout is returned when the driver does not answer a port scan.
var ErrPortScanTimeout = errors.New("midi port scan timed out")

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Ports is a snapshot of the driver's ports
type Ports struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// ListPorts asks the driver for its ports, giving up after timeout
// (CoreMIDI can hang).
func ListPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{Ins: gomidi.GetInPorts(), Outs: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrPortScanTimeout
	}
}

// DeviceManager handles hot-plug detection of MIDI keyboards and
// Launchpads
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	ids         *NoteIDs
	match       func(name string) bool
}

// NewDeviceManager creates a device manager. Keyboards it opens stamp
// their notes from ids. portName restricts which keyboard inputs are
// opened (case-insensitive substring); empty means every non-loopback
// input. Launchpads are always opened.
func NewDeviceManager(ids *NoteIDs, portName string) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		ids:         ids,
		match:       portMatcher(portName),
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]Controller, len(dm.controllers))
	for name, c := range dm.controllers {
		out[name] = c
	}
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	ports, err := ListPorts(3 * time.Second)
	if err != nil {
		// a hung CoreMIDI needs: sudo killall coreaudiod midiserver
		debug.Log("midi", "scan skipped: %v", err)
		return
	}

	present := make(map[string]bool, len(ports.Ins))
	for _, in := range ports.Ins {
		name := in.String()
		if !dm.wants(name) {
			continue
		}
		present[name] = true
		if !dm.has(name) {
			dm.connect(name, in, ports.Outs)
		}
	}
	dm.prune(present)
}

// wants reports whether a port should get a controller: Launchpad MIDI
// ports always, other Launchpad ports never, keyboards when they match.
func (dm *DeviceManager) wants(name string) bool {
	if isLaunchpad(name) {
		return true
	}
	if strings.Contains(strings.ToLower(name), "launchpad") {
		return false
	}
	return dm.match(name)
}

func (dm *DeviceManager) has(name string) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	_, ok := dm.controllers[name]
	return ok
}

func (dm *DeviceManager) connect(name string, in drivers.In, outs []drivers.Out) {
	var (
		c   Controller
		err error
	)
	if isLaunchpad(name) {
		c, err = NewLaunchpadController(name, in, matchingOut(outs, name))
	} else {
		c, err = NewKeyboardController(name, in, dm.ids)
	}
	if err != nil {
		debug.Log("midi", "open %q: %v", name, err)
		return
	}

	dm.mu.Lock()
	dm.controllers[name] = c
	dm.mu.Unlock()

	debug.Log("midi", "%s connected: %s", c.Type(), name)
	dm.emit(DeviceEvent{Type: DeviceConnected, Controller: c, ID: name})
}

// prune closes every controller whose port went away
func (dm *DeviceManager) prune(present map[string]bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for name, c := range dm.controllers {
		if present[name] {
			continue
		}
		c.Close()
		delete(dm.controllers, name)
		debug.Log("midi", "disconnected: %s", name)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: name})
	}
}

// emit never blocks the scan; a UI that stopped listening just misses events
func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// matchingOut finds the output port with the same name as an input
func matchingOut(outs []drivers.Out, name string) drivers.Out {
	name = strings.ToLower(name)
	for _, op := range outs {
		if strings.ToLower(op.String()) == name {
			return op
		}
	}
	return nil
}

func portMatcher(portName string) func(string) bool {
	want := strings.ToLower(strings.TrimSpace(portName))
	return func(name string) bool {
		name = strings.ToLower(name)
		if want != "" {
			return strings.Contains(name, want)
		}
		return !isLoopback(name)
	}
}

func isLoopback(name string) bool {
	return strings.Contains(name, "midi through") || strings.Contains(name, "rtmidi")
}
