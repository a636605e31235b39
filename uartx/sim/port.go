// Package sim models UART peripherals on the host so the uartx engines can be
// exercised without hardware. Each Port has its own event goroutine standing
// in for the UART interrupt; ports are cross-wired with Connect to reproduce
// a TX-to-RX link, including the line errors a mismatched configuration
// produces on real silicon.
package sim

import (
	"sync"

	"github.com/jangala-dev/uartasync/uartx"
	"github.com/jangala-dev/uartasync/uartx/internal/fifo"
)

// DefaultBaud is the rate a new Port starts at.
const DefaultBaud = 115200

// frame is one character on the wire, with the sender's line settings.
type frame struct {
	data   byte
	format uartx.Format
	baud   uint32
}

// Port is a simulated UART instance implementing uartx.Peripheral.
//
// TX: a byte loaded with Transmit moves to the line on the event goroutine,
// then TransmitReady fires once for the now-empty data register.
// RX: characters arriving from the line are decoded against this port's
// format and baud and queued in a 32-entry FIFO; while receive is enabled the
// event goroutine drains the FIFO into ByteReceived. A full FIFO marks its
// newest entry with an overrun and drops the character.
type Port struct {
	name string

	mu      sync.Mutex
	h       uartx.Handler
	format  uartx.Format
	baud    uint32
	peer    *Port
	txOn    bool
	txFull  bool // a byte is loaded and has not reached the line
	txByte  byte
	txReady bool // TransmitReady already raised for the empty register
	rxOn    bool
	rx      fifo.Ring

	notify chan struct{} // coalesced wake-up for the event goroutine
	closed chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewPort returns an unconnected 8N1 port at DefaultBaud with its event
// goroutine running. Call Close to stop it.
func NewPort(name string) *Port {
	p := &Port{
		name:   name,
		format: uartx.DefaultFormat,
		baud:   DefaultBaud,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Connect drives rx's line from tx's transmitter. A port has one outgoing line;
// connecting it again replaces the previous peer.
func Connect(tx, rx *Port) {
	tx.mu.Lock()
	tx.peer = rx
	tx.mu.Unlock()
}

// Loopback wires p's transmitter to its own receiver.
func Loopback(p *Port) { Connect(p, p) }

// Pair returns two ports with a full-duplex link between them.
func Pair(a, b string) (*Port, *Port) {
	pa, pb := NewPort(a), NewPort(b)
	Connect(pa, pb)
	Connect(pb, pa)
	return pa, pb
}

// Name returns the name given to NewPort.
func (p *Port) Name() string { return p.name }

// Close stops the event goroutine. Pending events are discarded.
func (p *Port) Close() error {
	p.once.Do(func() { close(p.closed) })
	<-p.done
	return nil
}

// ---------- uartx.Peripheral ----------

func (p *Port) Attach(h uartx.Handler) {
	p.mu.Lock()
	p.h = h
	p.mu.Unlock()
}

func (p *Port) StartTransmit() {
	p.mu.Lock()
	p.txOn = true
	p.txReady = false
	p.mu.Unlock()
	p.wake()
}

func (p *Port) StopTransmit() {
	p.mu.Lock()
	p.txOn = false
	p.mu.Unlock()
}

func (p *Port) Transmit(b byte) {
	p.mu.Lock()
	p.txByte = b
	p.txFull = true
	p.txReady = false
	p.mu.Unlock()
	p.wake()
}

func (p *Port) StartReceive() {
	p.mu.Lock()
	p.rxOn = true
	p.mu.Unlock()
	p.wake()
}

func (p *Port) StopReceive() {
	p.mu.Lock()
	p.rxOn = false
	p.mu.Unlock()
}

func (p *Port) SetFormat(f uartx.Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.format = f
	p.mu.Unlock()
	return nil
}

func (p *Port) SetBaudRate(br uint32) error {
	if br == 0 {
		return uartx.ErrInvalidBaud
	}
	p.mu.Lock()
	p.baud = br
	p.mu.Unlock()
	return nil
}

// ---------- test hooks ----------

// Inject queues a received byte with an explicit line status, as if it had
// arrived from the line.
func (p *Port) Inject(b byte, status uartx.LineStatus) {
	p.mu.Lock()
	p.rx.PutOrMark(fifo.MakeEntry(b, uint8(status)), uint8(uartx.StatusOverrun))
	p.mu.Unlock()
	p.wake()
}

// Buffered returns the number of characters waiting in the RX FIFO.
func (p *Port) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rx.Used()
}

// Flush empties the RX FIFO.
func (p *Port) Flush() {
	p.mu.Lock()
	p.rx.Clear()
	p.mu.Unlock()
}

// ---------- event context ----------

func (p *Port) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Port) run() {
	defer close(p.done)
	for {
		select {
		case <-p.notify:
		case <-p.closed:
			return
		}
		for p.service() {
			select {
			case <-p.closed:
				return
			default:
			}
		}
	}
}

// service performs one unit of interrupt work and reports whether it did any.
// Handler calls are made without p.mu held.
func (p *Port) service() bool {
	p.mu.Lock()
	h := p.h

	// Shift a loaded byte onto the line.
	if p.txFull {
		f := frame{data: p.txByte & dataMask(p.format.DataBits), format: p.format, baud: p.baud}
		p.txFull = false
		peer := p.peer
		p.mu.Unlock()
		if peer != nil {
			peer.receive(f)
		}
		return true
	}

	// Data register empty.
	if p.txOn && !p.txReady && h != nil {
		p.txReady = true
		p.mu.Unlock()
		h.TransmitReady()
		return true
	}

	// Drain one received character.
	if p.rxOn && h != nil {
		if e, ok := p.rx.Get(); ok {
			p.mu.Unlock()
			h.ByteReceived(e.Data(), uartx.LineStatus(e.Status()))
			return true
		}
	}

	p.mu.Unlock()
	return false
}

// receive latches a character arriving on p's line.
func (p *Port) receive(f frame) {
	p.mu.Lock()
	status := p.decode(f)
	data := f.data & dataMask(p.format.DataBits)
	p.rx.PutOrMark(fifo.MakeEntry(data, uint8(status)), uint8(uartx.StatusOverrun))
	p.mu.Unlock()
	p.wake()
}

// decode reports the line status p's receiver sees for f. Lock held.
func (p *Port) decode(f frame) uartx.LineStatus {
	// Wrong bit timing or width puts the stop bit in the wrong place.
	if f.baud != p.baud || f.format.DataBits != p.format.DataBits {
		return uartx.StatusFramingError
	}
	// The bit after the data: the sender's parity bit, or its first stop bit.
	next := uint8(1)
	if f.format.Parity != uartx.ParityNone {
		next = f.format.Parity.Bit(f.data, f.format.DataBits)
	}
	if p.format.Parity != uartx.ParityNone {
		if next != p.format.Parity.Bit(f.data, p.format.DataBits) {
			return uartx.StatusParityError
		}
		return 0
	}
	// No parity expected: that bit is read as the stop bit.
	if next == 0 {
		return uartx.StatusFramingError
	}
	return 0
}

func dataMask(bits uint8) byte { return byte(uint16(1)<<bits - 1) }

var _ uartx.Peripheral = (*Port)(nil)
