package uartx

import "sync/atomic"

// Stats holds counters since the last reset. Both engines of a Serial share one
// Stats; every field is updated atomically from the event context.
type Stats struct {
	// TX
	TxStarted   uint32 // writes accepted
	TxCompleted uint32 // writes ended with EventTxComplete
	TxBytes     uint32 // bytes loaded into the transmitter
	TxErrors    uint32 // EventTxError
	TxSpurious  uint32 // TransmitReady with no write armed

	// RX
	RxStarted     uint32 // reads accepted
	RxCompleted   uint32 // reads ended with EventRxComplete
	RxBytes       uint32 // bytes stored into caller buffers
	RxMatches     uint32 // reads carrying EventRxCharacterMatch
	RxDropped     uint32 // bytes delivered with no read armed
	ErrParity     uint32
	ErrFraming    uint32
	ErrOverflow   uint32
	RxMaxTransfer uint32 // high-water mark of bytes stored by a single read

	// Shared
	Timeouts uint32 // transfers retired by their timer
	Rejected uint32 // Write/Read refused with ErrBusy
}

func add(p *uint32, n int) { atomic.AddUint32(p, uint32(n)) }

func inc(p *uint32) { atomic.AddUint32(p, 1) }

// raise lifts a high-water mark to v.
func raise(p *uint32, v int) {
	for {
		max := atomic.LoadUint32(p)
		if uint32(v) <= max {
			return
		}
		if atomic.CompareAndSwapUint32(p, max, uint32(v)) {
			return
		}
	}
}

// record counts a retired transfer by its terminal event.
func (s *Stats) record(ev Event, n int) {
	switch {
	case ev.Has(EventTxComplete):
		inc(&s.TxCompleted)
	case ev.Has(EventTxError):
		inc(&s.TxErrors)
	}
	if ev.Has(EventRxComplete) {
		inc(&s.RxCompleted)
	}
	if ev.Has(EventRxCharacterMatch) {
		inc(&s.RxMatches)
	}
	if ev.Has(EventRxParityError) {
		inc(&s.ErrParity)
	}
	if ev.Has(EventRxFramingError) {
		inc(&s.ErrFraming)
	}
	if ev.Has(EventRxOverflow) {
		inc(&s.ErrOverflow)
	}
	if ev&(EventTxTimeout|EventRxTimeout) != 0 {
		inc(&s.Timeouts)
	}
	if ev&EventRxAll != 0 {
		raise(&s.RxMaxTransfer, n)
	}
}

// Snapshot returns a copy safe to read while transfers run.
func (s *Stats) Snapshot() Stats {
	return Stats{
		TxStarted:   atomic.LoadUint32(&s.TxStarted),
		TxCompleted: atomic.LoadUint32(&s.TxCompleted),
		TxBytes:     atomic.LoadUint32(&s.TxBytes),
		TxErrors:    atomic.LoadUint32(&s.TxErrors),
		TxSpurious:  atomic.LoadUint32(&s.TxSpurious),

		RxStarted:     atomic.LoadUint32(&s.RxStarted),
		RxCompleted:   atomic.LoadUint32(&s.RxCompleted),
		RxBytes:       atomic.LoadUint32(&s.RxBytes),
		RxMatches:     atomic.LoadUint32(&s.RxMatches),
		RxDropped:     atomic.LoadUint32(&s.RxDropped),
		ErrParity:     atomic.LoadUint32(&s.ErrParity),
		ErrFraming:    atomic.LoadUint32(&s.ErrFraming),
		ErrOverflow:   atomic.LoadUint32(&s.ErrOverflow),
		RxMaxTransfer: atomic.LoadUint32(&s.RxMaxTransfer),

		Timeouts: atomic.LoadUint32(&s.Timeouts),
		Rejected: atomic.LoadUint32(&s.Rejected),
	}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	for _, p := range []*uint32{
		&s.TxStarted, &s.TxCompleted, &s.TxBytes, &s.TxErrors, &s.TxSpurious,
		&s.RxStarted, &s.RxCompleted, &s.RxBytes, &s.RxMatches, &s.RxDropped,
		&s.ErrParity, &s.ErrFraming, &s.ErrOverflow, &s.RxMaxTransfer,
		&s.Timeouts, &s.Rejected,
	} {
		atomic.StoreUint32(p, 0)
	}
}
