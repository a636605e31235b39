package uartx

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Serial pairs a TX and an RX engine on one peripheral and routes the
// peripheral's events to them. The two directions run independently.
type Serial struct {
	hw    Peripheral
	tx    *TxEngine
	rx    *RxEngine
	stats *Stats
	log   *slog.Logger

	mu     sync.Mutex // serializes format and baud changes
	format Format
	baud   uint32
}

// New builds a Serial on p and attaches it as p's event handler.
func New(p Peripheral, opts ...Option) *Serial {
	o := collect(opts)
	shared := []Option{WithLogger(o.logger), WithStats(o.stats)}
	s := &Serial{
		hw:     p,
		tx:     NewTxEngine(p, shared...),
		rx:     NewRxEngine(p, shared...),
		stats:  o.stats,
		log:    o.logger.With("component", string(ComponentSerial)),
		format: DefaultFormat,
	}
	p.Attach(s)
	return s
}

// Write starts a non-blocking transmit of p. See TxEngine.Write.
func (s *Serial) Write(p []byte, cb Callback, timeout time.Duration) error {
	return s.tx.Write(p, cb, timeout)
}

// Read starts a non-blocking receive into p. See RxEngine.Read.
func (s *Serial) Read(p []byte, cb Callback, timeout time.Duration) error {
	return s.rx.Read(p, cb, timeout)
}

// ReadMatch starts a non-blocking receive into p that also ends on match.
// See RxEngine.ReadMatch.
func (s *Serial) ReadMatch(p []byte, match byte, cb Callback, timeout time.Duration) error {
	return s.rx.ReadMatch(p, match, cb, timeout)
}

// SetFormat reprograms the frame format. It is refused with ErrBusy while a
// transfer is running in either direction.
func (s *Serial) SetFormat(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.whileIdle(func() error { return s.hw.SetFormat(f) })
	if err == ErrBusy {
		return err
	}
	if err != nil {
		return fmt.Errorf("set format %v: %w", f, err)
	}
	s.format = f
	s.log.Info("format changed", "format", f.String())
	return nil
}

// SetBaudRate reprograms the baud rate. It is refused with ErrBusy while a
// transfer is running in either direction.
func (s *Serial) SetBaudRate(br uint32) error {
	if br == 0 {
		return ErrInvalidBaud
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.whileIdle(func() error { return s.hw.SetBaudRate(br) })
	if err == ErrBusy {
		return err
	}
	if err != nil {
		return fmt.Errorf("set baud %d: %w", br, err)
	}
	s.baud = br
	s.log.Info("baud changed", "baud", br)
	return nil
}

// whileIdle runs apply with both engines locked, so no Write or Read can arm
// between the idle check and the hardware change. Lock order is tx then rx.
func (s *Serial) whileIdle(apply func() error) error {
	s.tx.mu.Lock()
	defer s.tx.mu.Unlock()
	s.rx.mu.Lock()
	defer s.rx.mu.Unlock()
	if s.tx.state != StateIdle || s.rx.state != StateIdle {
		return ErrBusy
	}
	return apply()
}

// Format returns the last format set through SetFormat (8N1 initially).
func (s *Serial) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// BaudRate returns the last rate set through SetBaudRate, or 0.
func (s *Serial) BaudRate() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// Tx returns the transmit engine.
func (s *Serial) Tx() *TxEngine { return s.tx }

// Rx returns the receive engine.
func (s *Serial) Rx() *RxEngine { return s.rx }

// Stats returns a snapshot of the counters shared by both engines.
func (s *Serial) Stats() Stats { return s.stats.Snapshot() }

// ResetStats zeroes the counters.
func (s *Serial) ResetStats() { s.stats.Reset() }

// ---------- Handler ----------

// TransmitReady forwards the peripheral's ready event to the TX engine.
func (s *Serial) TransmitReady() { s.tx.TransmitReady() }

// TransmitError forwards a transmitter fault to the TX engine.
func (s *Serial) TransmitError() { s.tx.TransmitError() }

// ByteReceived forwards a received byte and its status to the RX engine.
func (s *Serial) ByteReceived(b byte, status LineStatus) { s.rx.ByteReceived(b, status) }
