package selftest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jangala-dev/uartasync/uartx"
	"github.com/jangala-dev/uartasync/uartx/serialport"
	"github.com/jangala-dev/uartasync/uartx/sim"
)

// Link is one TX instance cross-wired to one RX instance. TX and RX are the
// same Serial on a single-port loopback.
type Link struct {
	TX, RX *uartx.Serial

	// Buffered reports bytes held by the RX peripheral while no read is
	// armed. Nil when the rig cannot tell.
	Buffered func() int

	closers []io.Closer
}

// Close releases the peripherals behind the link.
func (l *Link) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Rig opens a fresh Link for every scenario.
type Rig interface {
	Name() string
	// LineStatus reports whether the RX side sees parity, framing and
	// overrun errors per byte.
	LineStatus() bool
	Open() (*Link, error)
}

// SimRig wires two simulated ports TX to RX.
type SimRig struct {
	Logger *slog.Logger
}

func (SimRig) Name() string    { return "sim" }
func (SimRig) LineStatus() bool { return true }

func (r SimRig) Open() (*Link, error) {
	tx, rx := sim.NewPort("tx"), sim.NewPort("rx")
	sim.Connect(tx, rx)
	return &Link{
		TX:       uartx.New(tx, logOpts(r.Logger, "tx")...),
		RX:       uartx.New(rx, logOpts(r.Logger, "rx")...),
		Buffered: rx.Buffered,
		closers:  []io.Closer{tx, rx},
	}, nil
}

// SerialRig drives OS serial devices. With TXDevice == RXDevice, or RXDevice
// empty, the device is used as a single loopback port (TX jumpered to RX).
type SerialRig struct {
	TXDevice string
	RXDevice string
	BaudRate uint32
	Logger   *slog.Logger
}

func (r SerialRig) Name() string {
	if r.RXDevice == "" || r.TXDevice == r.RXDevice {
		return "serial:" + r.TXDevice
	}
	return "serial:" + r.TXDevice + "->" + r.RXDevice
}

// LineStatus is false: the OS driver does not report per-byte errors.
func (SerialRig) LineStatus() bool { return false }

func (r SerialRig) Open() (*Link, error) {
	if r.TXDevice == "" {
		return nil, errors.New("tx device is required")
	}
	if r.RXDevice == "" {
		r.RXDevice = r.TXDevice
	}
	tx, err := serialport.Open(serialport.Config{Device: r.TXDevice, BaudRate: r.BaudRate, Logger: r.Logger})
	if err != nil {
		return nil, err
	}
	if r.RXDevice == r.TXDevice {
		s := uartx.New(tx, logOpts(r.Logger, "loop")...)
		return &Link{TX: s, RX: s, closers: []io.Closer{tx}}, nil
	}
	rx, err := serialport.Open(serialport.Config{Device: r.RXDevice, BaudRate: r.BaudRate, Logger: r.Logger})
	if err != nil {
		_ = tx.Close()
		return nil, fmt.Errorf("rx side: %w", err)
	}
	return &Link{
		TX:      uartx.New(tx, logOpts(r.Logger, "tx")...),
		RX:      uartx.New(rx, logOpts(r.Logger, "rx")...),
		closers: []io.Closer{tx, rx},
	}, nil
}

func logOpts(l *slog.Logger, side string) []uartx.Option {
	if l == nil {
		return nil
	}
	return []uartx.Option{uartx.WithLogger(l.With("side", side))}
}
