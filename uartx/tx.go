package uartx

import (
	"log/slog"
	"sync"
	"time"
)

// TxEngine owns at most one outgoing transfer. It loads one byte per
// TransmitReady event and raises EventTxComplete once the peripheral has
// taken the last byte.
type TxEngine struct {
	mu    sync.Mutex // held by both the caller and the event context
	hw    Transmitter
	state State
	cur   transfer
	last  int // bytes loaded by the most recent finished transfer

	d     dispatcher
	log   *slog.Logger
	stats *Stats
}

// NewTxEngine returns an idle engine driving t. The caller routes t's
// TransmitReady and TransmitError events to the engine.
func NewTxEngine(t Transmitter, opts ...Option) *TxEngine {
	o := buildOptions(ComponentTx, opts)
	return &TxEngine{
		hw:    t,
		cur:   transfer{match: noMatch},
		d:     dispatcher{log: o.logger, stats: o.stats},
		log:   o.logger,
		stats: o.stats,
	}
}

// Write starts sending p and returns immediately. cb receives exactly one
// Event when the transfer ends. p must not be modified until then.
//
// A zero-length p completes with EventTxComplete before Write returns.
// A timeout <= 0 waits forever. Write returns ErrBusy while a previous write
// is still running and ErrInvalidArgument for a nil cb.
func (e *TxEngine) Write(p []byte, cb Callback, timeout time.Duration) error {
	if cb == nil {
		return ErrInvalidArgument
	}
	e.mu.Lock()
	if st := e.state; st != StateIdle {
		e.mu.Unlock()
		inc(&e.stats.Rejected)
		e.log.Debug("write rejected", "state", st.String())
		return ErrBusy
	}
	inc(&e.stats.TxStarted)
	e.cur = transfer{buf: p, match: noMatch, cb: cb, seq: e.cur.seq + 1}
	if len(p) == 0 {
		c := e.finish(EventTxComplete)
		e.mu.Unlock()
		c.fire()
		return nil
	}
	e.state = StateArmed
	e.cur.armTimer(timeout, e.expire)
	e.log.Debug("write armed", "len", len(p), "timeout", timeout, "seq", e.cur.seq)
	e.hw.StartTransmit()
	e.mu.Unlock()
	return nil
}

// TransmitReady handles a "data register empty" event.
func (e *TxEngine) TransmitReady() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		inc(&e.stats.TxSpurious)
		return
	}
	e.state = StateInProgress
	if !e.cur.full() {
		b := e.cur.buf[e.cur.pos]
		e.hw.Transmit(b)
		trace(e.log, "byte loaded", "byte", b, "at", e.cur.pos)
		e.cur.pos++
		inc(&e.stats.TxBytes)
		e.mu.Unlock()
		return
	}
	c := e.finish(EventTxComplete)
	e.mu.Unlock()
	c.fire()
}

// TransmitError handles a transmitter fault reported by the peripheral.
func (e *TxEngine) TransmitError() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	e.log.Warn("transmitter fault", "sent", e.cur.pos, "len", len(e.cur.buf))
	c := e.finish(EventTxError)
	e.mu.Unlock()
	c.fire()
}

func (e *TxEngine) expire(seq uint64) {
	e.mu.Lock()
	if e.state == StateIdle || e.cur.seq != seq {
		e.mu.Unlock()
		return
	}
	c := e.finish(EventTxTimeout)
	e.mu.Unlock()
	c.fire()
}

// finish stops the transmitter and retires the current transfer. Lock held.
func (e *TxEngine) finish(ev Event) completion {
	if e.state != StateIdle {
		e.hw.StopTransmit()
	}
	e.last = e.cur.pos
	return e.d.retire(&e.cur, &e.state, ev)
}

// State reports the engine state.
func (e *TxEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Sent returns the number of bytes loaded into the peripheral by the current
// transfer, or by the most recent one when idle.
func (e *TxEngine) Sent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return e.cur.pos
	}
	return e.last
}
