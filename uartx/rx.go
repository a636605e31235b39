package uartx

import (
	"log/slog"
	"sync"
	"time"
)

// RxEngine owns at most one incoming transfer. Each ByteReceived event is
// classified against its line status, stored, and checked against the match
// character.
type RxEngine struct {
	mu    sync.Mutex // held by both the caller and the event context
	hw    Receiver
	state State
	cur   transfer
	last  int // bytes stored by the most recent finished transfer

	d     dispatcher
	log   *slog.Logger
	stats *Stats
}

// NewRxEngine returns an idle engine driving r. The caller routes r's
// ByteReceived events to the engine.
func NewRxEngine(r Receiver, opts ...Option) *RxEngine {
	o := buildOptions(ComponentRx, opts)
	return &RxEngine{
		hw:    r,
		cur:   transfer{match: noMatch},
		d:     dispatcher{log: o.logger, stats: o.stats},
		log:   o.logger,
		stats: o.stats,
	}
}

// Read starts receiving len(p) bytes into p and returns immediately. cb
// receives exactly one Event when the transfer ends: EventRxComplete when p is
// full, or a line error bit. On a line error the offending byte is not stored
// and p keeps its previous contents from that index on.
//
// A zero-length p completes with EventRxComplete before Read returns.
// A timeout <= 0 waits forever.
func (e *RxEngine) Read(p []byte, cb Callback, timeout time.Duration) error {
	return e.arm(p, noMatch, cb, timeout)
}

// ReadMatch is Read with a match character. Receiving match ends the transfer
// early with EventRxCharacterMatch; if match is also the byte that fills p the
// event is EventRxComplete|EventRxCharacterMatch. The match byte itself is
// stored.
func (e *RxEngine) ReadMatch(p []byte, match byte, cb Callback, timeout time.Duration) error {
	if len(p) == 0 {
		return ErrInvalidArgument
	}
	return e.arm(p, int(match), cb, timeout)
}

func (e *RxEngine) arm(p []byte, match int, cb Callback, timeout time.Duration) error {
	if cb == nil {
		return ErrInvalidArgument
	}
	e.mu.Lock()
	if st := e.state; st != StateIdle {
		e.mu.Unlock()
		inc(&e.stats.Rejected)
		e.log.Debug("read rejected", "state", st.String())
		return ErrBusy
	}
	inc(&e.stats.RxStarted)
	e.cur = transfer{buf: p, match: match, cb: cb, seq: e.cur.seq + 1}
	if len(p) == 0 {
		c := e.finish(EventRxComplete)
		e.mu.Unlock()
		c.fire()
		return nil
	}
	e.state = StateArmed
	e.cur.armTimer(timeout, e.expire)
	e.log.Debug("read armed", "len", len(p), "match", match, "timeout", timeout, "seq", e.cur.seq)
	e.hw.StartReceive()
	e.mu.Unlock()
	return nil
}

// ByteReceived handles one received byte and its line status.
func (e *RxEngine) ByteReceived(b byte, status LineStatus) {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		inc(&e.stats.RxDropped)
		return
	}
	e.state = StateInProgress
	trace(e.log, "byte received", "byte", b, "status", uint8(status), "at", e.cur.pos)

	var ev Event
	switch {
	case status&StatusFramingError != 0:
		ev = EventRxFramingError
	case status&StatusParityError != 0:
		ev = EventRxParityError
	case status&StatusOverrun != 0:
		ev = EventRxOverflow
	default:
		e.cur.buf[e.cur.pos] = b
		e.cur.pos++
		inc(&e.stats.RxBytes)
		if e.cur.matches(b) {
			e.cur.pending |= EventRxCharacterMatch
		}
		switch {
		case e.cur.full():
			ev = EventRxComplete | e.cur.pending
		case e.cur.pending != 0:
			ev = e.cur.pending
		}
	}
	if ev == 0 {
		e.mu.Unlock()
		return
	}
	if ev&EventRxErrors != 0 {
		e.log.Debug("line error", "event", ev.String(), "at", e.cur.pos)
	}
	c := e.finish(ev)
	e.mu.Unlock()
	c.fire()
}

func (e *RxEngine) expire(seq uint64) {
	e.mu.Lock()
	if e.state == StateIdle || e.cur.seq != seq {
		e.mu.Unlock()
		return
	}
	c := e.finish(EventRxTimeout)
	e.mu.Unlock()
	c.fire()
}

// finish stops the receiver and retires the current transfer. Lock held.
func (e *RxEngine) finish(ev Event) completion {
	if e.state != StateIdle {
		e.hw.StopReceive()
	}
	e.last = e.cur.pos
	return e.d.retire(&e.cur, &e.state, ev)
}

// State reports the engine state.
func (e *RxEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Count returns the number of bytes stored by the current transfer, or by the
// most recent one when idle. After a character match it is the index of the
// match byte plus one.
func (e *RxEngine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return e.cur.pos
	}
	return e.last
}
