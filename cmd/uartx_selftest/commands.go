package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jangala-dev/uartasync/internal/selftest"
)

// output is where reports go; bound to stdout in main.
type output interface{ io.Writer }

var errFailed = errors.New("self-test failed")

// RigFlags select and describe the link under test.
type RigFlags struct {
	Rig      string        `help:"Link to test (sim, serial)." enum:"sim,serial" default:"sim" env:"UARTX_RIG"`
	TxDevice string        `help:"Serial device on the transmitting side." placeholder:"PATH" env:"UARTX_TX_DEVICE"`
	RxDevice string        `help:"Serial device on the receiving side; defaults to --tx-device." placeholder:"PATH" env:"UARTX_RX_DEVICE"`
	Baud     uint32        `help:"Serial baud rate." default:"115200" env:"UARTX_BAUD"`
	Format   string        `help:"Report format (text, json, yaml, toml)." enum:"text,json,yaml,toml" default:"text" short:"o"`
	Timeout  time.Duration `help:"Per-scenario deadline." default:"2s"`
}

func (f RigFlags) rig(logger *slog.Logger) (selftest.Rig, error) {
	switch f.Rig {
	case "sim":
		return selftest.SimRig{Logger: logger}, nil
	case "serial":
		if f.TxDevice == "" {
			return nil, errors.New("--tx-device is required with --rig serial")
		}
		return selftest.SerialRig{TXDevice: f.TxDevice, RXDevice: f.RxDevice, BaudRate: f.Baud, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown rig %q", f.Rig)
	}
}

// RunCmd runs the scenarios.
type RunCmd struct {
	RigFlags `embed:""`
	Only     []string `help:"Run only these scenarios." sep:","`
}

func (c *RunCmd) Run(logger *slog.Logger, out output) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rig, err := c.rig(logger)
	if err != nil {
		return err
	}
	logger.Info("running scenarios", "rig", rig.Name())
	rep := selftest.Run(ctx, rig, selftest.Options{Timeout: c.Timeout, Only: c.Only, Logger: logger})
	if err := rep.Encode(out, c.Format); err != nil {
		return err
	}
	if !rep.OK() {
		return errFailed
	}
	return nil
}

// IntegrityCmd streams chained transfers.
type IntegrityCmd struct {
	RigFlags  `embed:""`
	Transfers int    `help:"Number of chained transfers." default:"256"`
	MaxLen    int    `help:"Largest single transfer in bytes." default:"16"`
	Seed      uint64 `help:"Pattern seed; 0 picks one."`
}

func (c *IntegrityCmd) Run(logger *slog.Logger, out output) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rig, err := c.rig(logger)
	if err != nil {
		return err
	}
	l, err := rig.Open()
	if err != nil {
		return err
	}
	defer l.Close()

	// Budget the per-scenario deadline per transfer.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.Transfers)*c.Timeout)
	defer cancel()

	logger.Info("integrity run", "rig", rig.Name(), "transfers", c.Transfers, "max_len", c.MaxLen)
	res := selftest.Integrity(ctx, l, selftest.IntegrityConfig{Transfers: c.Transfers, MaxLen: c.MaxLen, Seed: c.Seed})
	logger.Info("integrity done", "transfers", res.Transfers, "bytes", res.Bytes, "elapsed", res.Elapsed,
		"tx_stats", l.TX.Stats(), "rx_stats", l.RX.Stats())

	rep := &selftest.Report{Rig: rig.Name(), Integrity: &res}
	if err := rep.Encode(out, c.Format); err != nil {
		return err
	}
	if !rep.OK() {
		return errFailed
	}
	return nil
}

// ListCmd prints the scenario names.
type ListCmd struct{}

func (ListCmd) Run(out output) error {
	for _, sc := range selftest.Scenarios() {
		suffix := ""
		if sc.NeedsLineStatus {
			suffix = "  (needs line status)"
		}
		if _, err := fmt.Fprintf(out, "%s%s\n", sc.Name, suffix); err != nil {
			return err
		}
	}
	return nil
}
