//go:build rp2040 || rp2350

package uartx

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
	"sync/atomic"

	"github.com/jangala-dev/uartasync/uartx/internal/fifo"
)

// PL011 is a Peripheral backed by one RP2040/RP2350 PL011 instance.
//
// The hardware ISR never calls the Handler. It drains DR into a software
// FIFO and wakes an event goroutine, which makes the Handler calls in order.
// Handler code may therefore take locks.
//
// TransmitReady is raised whenever the TX FIFO is not full (FR.TXFF clear),
// so bytes are loaded back to back until it fills. The TX interrupt only
// fires when the FIFO level falls through the 1/8 trigger, which a full FIFO
// always does, and its one job is to wake the event goroutine.
type PL011 struct {
	Bus       *rp.UART0_Type
	Interrupt interrupt.Interrupt

	h      Handler
	rx     fifo.Ring
	txOn   atomic.Bool
	rxOn   atomic.Bool
	notify chan struct{}
	baud   uint32
	format Format
}

// PL011 instances on the RP2040/RP2350.
var (
	PL011UART0  = &_PL011UART0
	_PL011UART0 = PL011{Bus: rp.UART0, notify: make(chan struct{}, 1)}

	PL011UART1  = &_PL011UART1
	_PL011UART1 = PL011{Bus: rp.UART1, notify: make(chan struct{}, 1)}
)

func init() {
	PL011UART0.Interrupt = interrupt.New(rp.IRQ_UART0_IRQ, _PL011UART0.handleInterrupt)
	PL011UART1.Interrupt = interrupt.New(rp.IRQ_UART1_IRQ, _PL011UART1.handleInterrupt)
}

// Configure resets the PL011, muxes its pins, programs 8N1 at cfg.BaudRate
// and starts the event goroutine. TX interrupts stay masked until
// StartTransmit. Flow-control pins in cfg are ignored.
func (u *PL011) Configure(cfg machine.UARTConfig) error {
	resetPL011(u.Bus)

	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.TX == machine.NoPin && cfg.RX == machine.NoPin {
		cfg.TX = machine.UART_TX_PIN
		cfg.RX = machine.UART_RX_PIN
	}

	u.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	if cfg.TX != machine.NoPin {
		cfg.TX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if cfg.RX != machine.NoPin {
		cfg.RX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}

	if err := u.SetBaudRate(cfg.BaudRate); err != nil {
		return err
	}
	if err := u.SetFormat(DefaultFormat); err != nil {
		return err
	}

	// Clear pending IRQs, purge the RX FIFO, clear sticky errors.
	u.Bus.UARTICR.Set(0x7FF)
	for !u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = u.Bus.UARTDR.Get()
	}
	u.Bus.UARTRSR.Set(0)
	u.rx.Clear()

	u.Bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	u.Interrupt.SetPriority(0x80)
	u.Interrupt.Enable()
	u.Bus.UARTIFLS.Set(0)
	u.Bus.UARTIMSC.Set(rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM)

	go u.run()
	return nil
}

// ---------- Peripheral ----------

func (u *PL011) Attach(h Handler) { u.h = h }

func (u *PL011) StartTransmit() {
	u.txOn.Store(true)
	u.Bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
	u.wake()
}

func (u *PL011) StopTransmit() {
	u.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
	u.txOn.Store(false)
}

// Transmit writes b with TXIM masked and unmasks it afterwards, so the TX
// level is presented afresh after a TXIC cleared by an earlier interrupt.
func (u *PL011) Transmit(b byte) {
	u.Bus.UARTIMSC.ClearBits(rp.UART0_UARTIMSC_TXIM)
	u.Bus.UARTDR.Set(uint32(b))
	if u.txOn.Load() {
		u.Bus.UARTIMSC.SetBits(rp.UART0_UARTIMSC_TXIM)
	}
}

func (u *PL011) StartReceive() {
	u.rxOn.Store(true)
	u.wake()
}

func (u *PL011) StopReceive() { u.rxOn.Store(false) }

// SetBaudRate programs the integer and fractional divisors and performs the
// LCR_H write the PL011 needs to latch them.
func (u *PL011) SetBaudRate(br uint32) error {
	if br == 0 {
		return ErrInvalidBaud
	}
	ibrd, fbrd := pl011Divisors(machine.CPUFrequency(), br)
	u.Bus.UARTIBRD.Set(ibrd)
	u.Bus.UARTFBRD.Set(fbrd)
	u.Bus.UARTLCR_H.Set(u.Bus.UARTLCR_H.Get())
	u.baud = br
	return nil
}

// SetFormat writes the full LCR_H value with the FIFOs enabled.
func (u *PL011) SetFormat(f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	var pen, eps uint32
	if f.Parity != ParityNone {
		pen = rp.UART0_UARTLCR_H_PEN
		if f.Parity == ParityEven {
			eps = rp.UART0_UARTLCR_H_EPS
		}
	}
	val := uint32(f.DataBits-5)<<rp.UART0_UARTLCR_H_WLEN_Pos |
		uint32(f.StopBits-1)<<rp.UART0_UARTLCR_H_STP2_Pos |
		pen | eps | rp.UART0_UARTLCR_H_FEN
	u.Bus.UARTLCR_H.Set(val)
	u.format = f
	return nil
}

// BaudRate returns the last programmed rate.
func (u *PL011) BaudRate() uint32 { return u.baud }

func resetPL011(bus *rp.UART0_Type) {
	var resetVal uint32
	switch bus {
	case rp.UART0:
		resetVal = rp.RESETS_RESET_UART0
	case rp.UART1:
		resetVal = rp.RESETS_RESET_UART1
	}
	rp.RESETS.RESET.SetBits(resetVal)
	rp.RESETS.RESET.ClearBits(resetVal)
	for !rp.RESETS.RESET_DONE.HasBits(resetVal) {
	}
}

// ---------- interrupt and event context ----------

// lineStatus maps the DR error bits onto LineStatus. A break reads as a
// framing error.
func lineStatus(dr uint32) LineStatus {
	var s LineStatus
	if dr&(rp.UART0_UARTDR_FE|rp.UART0_UARTDR_BE) != 0 {
		s |= StatusFramingError
	}
	if dr&rp.UART0_UARTDR_PE != 0 {
		s |= StatusParityError
	}
	if dr&rp.UART0_UARTDR_OE != 0 {
		s |= StatusOverrun
	}
	return s
}

func (u *PL011) handleInterrupt(interrupt.Interrupt) {
	mis := u.Bus.UARTMIS.Get()

	if mis&(rp.UART0_UARTMIS_RXMIS|rp.UART0_UARTMIS_RTMIS) != 0 {
		for !u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
			dr := u.Bus.UARTDR.Get()
			u.rx.PutOrMark(fifo.MakeEntry(byte(dr), uint8(lineStatus(dr))), uint8(StatusOverrun))
		}
		u.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_RTIC)
		u.Bus.UARTRSR.Set(0)
	}

	if mis&rp.UART0_UARTMIS_TXMIS != 0 {
		u.Bus.UARTICR.Set(rp.UART0_UARTICR_TXIC)
	}

	u.wake()
}

func (u *PL011) wake() {
	select {
	case u.notify <- struct{}{}:
	default:
	}
}

// run delivers pending TX readiness and received bytes to the Handler.
func (u *PL011) run() {
	for range u.notify {
		for u.service() {
		}
	}
}

func (u *PL011) service() bool {
	h := u.h
	if h == nil {
		return false
	}
	if u.txOn.Load() && !u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFF) {
		h.TransmitReady()
		return true
	}
	if u.rxOn.Load() {
		if e, ok := u.rx.Get(); ok {
			h.ByteReceived(e.Data(), LineStatus(e.Status()))
			return true
		}
	}
	return false
}

var _ Peripheral = (*PL011)(nil)
