package uartx

import "time"

// noMatch marks a transfer without a match character.
const noMatch = -1

// NoTimeout disables the transfer timeout. Any timeout <= 0 does the same.
const NoTimeout time.Duration = -1

// transfer is the descriptor of one in-flight Write or Read. The buffer is
// owned by the caller and must outlive the transfer; the engine only writes
// buf[:pos]. It is mutated only under the owning engine's lock.
type transfer struct {
	buf     []byte
	pos     int // 0 <= pos <= len(buf)
	match   int // match byte, or noMatch
	cb      Callback
	pending Event // reasons collected before the terminal event

	seq   uint64      // identifies this transfer to its timer
	timer *time.Timer // nil without timeout
}

func (t *transfer) remaining() int { return len(t.buf) - t.pos }

func (t *transfer) full() bool { return t.pos == len(t.buf) }

// matches reports whether b is the configured match character.
func (t *transfer) matches(b byte) bool { return t.match != noMatch && int(b) == t.match }

// armTimer schedules expire(seq) after d. A d <= 0 leaves the transfer untimed.
func (t *transfer) armTimer(d time.Duration, expire func(seq uint64)) {
	if d <= 0 {
		return
	}
	seq := t.seq
	t.timer = time.AfterFunc(d, func() { expire(seq) })
}

// clear drops every reference held by the descriptor.
func (t *transfer) clear() {
	if t.timer != nil {
		t.timer.Stop()
	}
	seq := t.seq
	*t = transfer{seq: seq, match: noMatch}
}
