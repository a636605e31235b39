package uartx

import "log/slog"

// completion is the callback and event of a retired transfer, fired once the
// engine lock has been released.
type completion struct {
	cb Callback
	ev Event
}

func (c completion) fire() {
	if c.cb != nil {
		c.cb(c.ev)
	}
}

// dispatcher is the single point where an engine ends a transfer.
type dispatcher struct {
	log   *slog.Logger
	stats *Stats
}

// retire ends t with ev. It must be called with the engine lock held.
// The descriptor is cleared and the engine is Idle before the lock is
// dropped, so the callback only ever fires once and may start the next
// transfer straight away.
func (d *dispatcher) retire(t *transfer, state *State, ev Event) completion {
	c := completion{cb: t.cb, ev: ev}
	d.stats.record(ev, t.pos)
	d.log.Debug("transfer done", "event", ev.String(), "bytes", t.pos, "len", len(t.buf), "seq", t.seq)
	t.clear()
	*state = StateIdle
	return c
}
