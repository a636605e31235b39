// Package fifo holds the receive FIFO shared by the uartx peripherals.
//
// A Ring is safe for one producer (the interrupt or line side) and one
// consumer (the event goroutine) without further locking: the producer
// writes the slot before publishing head, the consumer reads the slot before
// publishing tail.
package fifo

import "sync/atomic"

// Size is the ring depth in entries (PL011: 32). Power of two so the
// counters can wrap freely.
const Size = 32

// Entry is one FIFO slot laid out like a PL011 DR read: data in bits 0-7,
// line status from bit 8 up.
type Entry uint16

// MakeEntry packs a data byte and its status bits.
func MakeEntry(b byte, status uint8) Entry { return Entry(b) | Entry(status)<<8 }

// Data returns the received byte.
func (e Entry) Data() byte { return byte(e) }

// Status returns the line status bits latched with the byte.
func (e Entry) Status() uint8 { return uint8(e >> 8) }

// Ring is a fixed-size FIFO of entries.
type Ring struct {
	buf  [Size]Entry
	head atomic.Uint32
	tail atomic.Uint32
}

// Used returns how many entries are stored.
func (r *Ring) Used() int { return int(r.head.Load() - r.tail.Load()) }

// Full reports whether Put would fail.
func (r *Ring) Full() bool { return r.Used() == Size }

// Put stores e. If the ring is already full, it returns false.
func (r *Ring) Put(e Entry) bool {
	if r.Full() {
		return false
	}
	h := r.head.Load()
	r.buf[(h+1)%Size] = e // 1) write data
	r.head.Store(h + 1)   // 2) publish
	return true
}

// Get removes the oldest entry. If the ring is empty, it returns (0, false).
func (r *Ring) Get() (Entry, bool) {
	if r.Used() == 0 {
		return 0, false
	}
	t := r.tail.Load()
	e := r.buf[(t+1)%Size] // 1) read current element
	r.tail.Store(t + 1)    // 2) publish consumption
	return e, true
}

// MarkNewest ORs status bits into the most recently stored entry. Producer
// side only.
func (r *Ring) MarkNewest(status uint8) {
	if r.Used() == 0 {
		return
	}
	i := r.head.Load() % Size
	r.buf[i] = MakeEntry(r.buf[i].Data(), r.buf[i].Status()|status)
}

// PutOrMark stores e, or flags the newest entry with overrun when the ring is full.
// It reports whether e was stored.
func (r *Ring) PutOrMark(e Entry, overrun uint8) bool {
	if r.Put(e) {
		return true
	}
	r.MarkNewest(overrun)
	return false
}

// Clear drops every entry. Neither side may be active.
func (r *Ring) Clear() {
	r.head.Store(0)
	r.tail.Store(0)
}
