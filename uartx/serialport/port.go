//go:build !baremetal

// Package serialport drives the uartx engines through an operating-system
// serial device (go.bug.st/serial). The OS does not expose per-byte line
// status, so every byte is reported clean; parity and framing errors are
// caught or discarded by the host driver instead.
package serialport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/jangala-dev/uartasync/uartx"
)

const (
	// holdSize bounds the bytes kept while no read is armed.
	holdSize = 4096
	// defaultPoll is the read timeout of the reader goroutine.
	defaultPoll = 20 * time.Millisecond
)

// Config holds configuration for opening a serial device.
type Config struct {
	Device   string
	BaudRate uint32
	Format   uartx.Format  // zero value means 8N1
	Poll     time.Duration // reader wake-up interval, default 20ms
	Logger   *slog.Logger
}

// device is the part of serial.Port the peripheral uses.
type device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Port is a uartx.Peripheral backed by an OS serial device.
type Port struct {
	dev  device
	name string
	log  *slog.Logger

	mu      sync.Mutex
	h       uartx.Handler
	baud    uint32
	format  uartx.Format
	txOn    bool
	txFull  bool
	txByte  byte
	txReady bool
	txErr   bool
	rxOn    bool
	held    []rxByte

	notify chan struct{}
	closed chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

type rxByte struct {
	b      byte
	status uartx.LineStatus
}

// Open opens the device with the given configuration.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial device path is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.Format == (uartx.Format{}) {
		cfg.Format = uartx.DefaultFormat
	}
	mode, err := modeFor(cfg.BaudRate, cfg.Format)
	if err != nil {
		return nil, err
	}
	dev, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	p, err := newPort(dev, cfg)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return p, nil
}

func newPort(dev device, cfg Config) (*Port, error) {
	if cfg.Poll <= 0 {
		cfg.Poll = defaultPoll
	}
	if err := dev.SetReadTimeout(cfg.Poll); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Port{
		dev:    dev,
		name:   cfg.Device,
		log:    log.With("component", "serialport", "device", cfg.Device),
		baud:   cfg.BaudRate,
		format: cfg.Format,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	p.wg.Add(2)
	go p.readLoop()
	go p.eventLoop()
	return p, nil
}

// modeFor maps a uartx frame format onto a serial.Mode.
func modeFor(baud uint32, f uartx.Format) (*serial.Mode, error) {
	if baud == 0 {
		return nil, uartx.ErrInvalidBaud
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m := &serial.Mode{
		BaudRate: int(baud),
		DataBits: int(f.DataBits),
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch f.Parity {
	case uartx.ParityEven:
		m.Parity = serial.EvenParity
	case uartx.ParityOdd:
		m.Parity = serial.OddParity
	}
	if f.StopBits == 2 {
		m.StopBits = serial.TwoStopBits
	}
	return m, nil
}

// PortName returns the device path.
func (p *Port) PortName() string { return p.name }

// Close stops both goroutines and closes the device.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.dev.Close()
		p.wg.Wait()
	})
	return err
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
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := modeFor(p.baud, f)
	if err != nil {
		return err
	}
	if err := p.dev.SetMode(m); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	p.format = f
	return nil
}

func (p *Port) SetBaudRate(br uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := modeFor(br, p.format)
	if err != nil {
		return err
	}
	if err := p.dev.SetMode(m); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	p.baud = br
	return nil
}

// ---------- goroutines ----------

func (p *Port) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Port) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// readLoop moves bytes from the device into the hold queue.
func (p *Port) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 256)
	for {
		n, err := p.dev.Read(buf)
		if p.isClosed() {
			return
		}
		if err != nil {
			p.log.Error("read failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		p.mu.Lock()
		for _, b := range buf[:n] {
			if len(p.held) == holdSize {
				p.held[len(p.held)-1].status |= uartx.StatusOverrun
				continue
			}
			p.held = append(p.held, rxByte{b: b})
		}
		p.mu.Unlock()
		p.wake()
	}
}

// eventLoop plays the interrupt context for the attached handler.
func (p *Port) eventLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.notify:
		case <-p.closed:
			return
		}
		for !p.isClosed() && p.service() {
		}
	}
}

func (p *Port) service() bool {
	p.mu.Lock()
	h := p.h

	if p.txFull {
		b := p.txByte
		p.txFull = false
		p.mu.Unlock()
		if _, err := p.dev.Write([]byte{b}); err != nil {
			p.log.Warn("write failed", "error", err)
			p.mu.Lock()
			p.txErr = true
			p.mu.Unlock()
		}
		return true
	}

	if p.txOn && p.txErr && h != nil {
		p.txErr = false
		p.txReady = true
		p.mu.Unlock()
		h.TransmitError()
		return true
	}

	if p.txOn && !p.txReady && h != nil {
		p.txReady = true
		p.mu.Unlock()
		h.TransmitReady()
		return true
	}

	if p.rxOn && h != nil && len(p.held) > 0 {
		c := p.held[0]
		p.held = p.held[1:]
		if len(p.held) == 0 {
			p.held = nil
		}
		p.mu.Unlock()
		h.ByteReceived(c.b, c.status)
		return true
	}

	p.mu.Unlock()
	return false
}

var _ uartx.Peripheral = (*Port)(nil)
