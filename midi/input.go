package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// inputGuard owns a port listener. Driver callbacks go through do, which
// skips them once shutdown has run, so nothing sends on a closed channel.
type inputGuard struct {
	mu     sync.Mutex
	stop   func()
	closed bool
}

// open starts listening on in. A nil port is allowed and never calls fn.
func (g *inputGuard) open(in drivers.In, fn func(msg gomidi.Message, timestampms int32)) error {
	if in == nil {
		return nil
	}
	stop, err := gomidi.ListenTo(in, fn)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", in.String(), err)
	}
	g.stop = stop
	return nil
}

func (g *inputGuard) do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		fn()
	}
}

func (g *inputGuard) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// shutdown runs release and stops the listener. Only the first call
// does anything; it reports whether this was that call.
func (g *inputGuard) shutdown(release func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.closed = true
	release()
	g.mu.Unlock()

	if g.stop != nil {
		g.stop()
	}
	return true
}
