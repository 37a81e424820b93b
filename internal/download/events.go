package download

import (
	"sync"
	"time"
)

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventProgress
	EventError
)

// Event is what the manager pushes to its sink. JobID is the uuid of the
// job concerned. Progress events for one job are ordered relative to each
// other; nothing is guaranteed across jobs.
type Event struct {
	JobID      string
	Kind       EventKind
	State      JobState
	Name       string
	BytesDone  int64
	BytesTotal int64 // -1 when the server never reported a length
	Err        error
}

// emitter owns the bounded event channel. Progress ticks are coalesced to
// one per interval per job and dropped outright if the sink is not
// draining; state changes and errors always go through, blocking if they
// must. A slow sink therefore loses granularity, never terminal events.
type emitter struct {
	ch       chan Event
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func newEmitter(buffer int, interval time.Duration) *emitter {
	if buffer <= 0 {
		buffer = 256
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &emitter{
		ch:       make(chan Event, buffer),
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

func (e *emitter) state(ev Event) {
	ev.Kind = EventStateChanged
	e.ch <- ev
}

func (e *emitter) errorEvent(ev Event) {
	ev.Kind = EventError
	e.ch <- ev
}

func (e *emitter) progress(ev Event) {
	ev.Kind = EventProgress
	e.mu.Lock()
	now := time.Now()
	if now.Sub(e.last[ev.JobID]) < e.interval {
		e.mu.Unlock()
		return
	}
	e.last[ev.JobID] = now
	e.mu.Unlock()

	select {
	case e.ch <- ev:
	default:
		// Sink is behind; this tick is expendable.
	}
}

func (e *emitter) close() {
	close(e.ch)
}
