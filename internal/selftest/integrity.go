package selftest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jangala-dev/uartasync/uartx"
)

// IntegrityConfig tunes an integrity run.
type IntegrityConfig struct {
	Transfers int    // chained transfers, default 256
	MaxLen    int    // upper bound on one transfer, default LongXfer
	Seed      uint64 // pattern seed, 0 picks one from the clock
}

// IntegrityResult summarises a completed or failed run.
type IntegrityResult struct {
	Seed      uint64        `json:"seed" yaml:"seed" toml:"seed"`
	Transfers int           `json:"transfers" yaml:"transfers" toml:"transfers"`
	Bytes     int           `json:"bytes" yaml:"bytes" toml:"bytes"`
	Elapsed   time.Duration `json:"-" yaml:"-" toml:"-"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}

// chain runs transfer i+1 once both halves of transfer i have called back.
// Every re-arm happens on the event context, inside a callback.
type chain struct {
	l   *Link
	cfg IntegrityConfig
	rng *rand.Rand

	mu     sync.Mutex
	i      int
	out    []byte
	in     []byte
	txDone bool
	rxDone bool
	res    IntegrityResult
	done   chan error
	over   bool
}

// Integrity streams randomly sized, randomly filled transfers from l.TX to
// l.RX, re-arming both directions from their callbacks, and verifies every
// received byte.
func Integrity(ctx context.Context, l *Link, cfg IntegrityConfig) IntegrityResult {
	if cfg.Transfers <= 0 {
		cfg.Transfers = 256
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = LongXfer
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	c := &chain{
		l:    l,
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5A5A)),
		done: make(chan error, 1),
	}
	c.res.Seed = cfg.Seed

	start := time.Now()
	c.mu.Lock()
	err := c.next()
	c.mu.Unlock()
	if err == nil {
		select {
		case err = <-c.done:
		case <-ctx.Done():
			err = fmt.Errorf("after %d transfers: %w", c.completed(), ctx.Err())
			c.stop()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.res.Elapsed = time.Since(start)
	if err != nil {
		c.res.Error = err.Error()
	}
	return c.res
}

func (c *chain) completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res.Transfers
}

func (c *chain) stop() {
	c.mu.Lock()
	c.over = true
	c.mu.Unlock()
}

// next arms transfer c.i. Lock held.
func (c *chain) next() error {
	n := 1 + c.rng.IntN(c.cfg.MaxLen)
	c.out = make([]byte, n)
	c.in = make([]byte, n)
	for j := range c.out {
		c.out[j] = byte(c.rng.Uint32())
		c.in[j] = RxFill
	}
	c.txDone, c.rxDone = false, false
	if err := c.l.RX.Read(c.in, c.onRx, uartx.NoTimeout); err != nil {
		return fmt.Errorf("transfer %d: read: %w", c.i, err)
	}
	if err := c.l.TX.Write(c.out, c.onTx, uartx.NoTimeout); err != nil {
		return fmt.Errorf("transfer %d: write: %w", c.i, err)
	}
	return nil
}

func (c *chain) onTx(ev uartx.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev != uartx.EventTxComplete {
		c.finish(fmt.Errorf("transfer %d: tx event %v", c.i, ev))
		return
	}
	c.txDone = true
	c.step()
}

func (c *chain) onRx(ev uartx.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev != uartx.EventRxComplete {
		c.finish(fmt.Errorf("transfer %d: rx event %v after %d bytes", c.i, ev, c.l.RX.Rx().Count()))
		return
	}
	c.rxDone = true
	c.step()
}

// step verifies transfer c.i and starts the next. Lock held.
func (c *chain) step() {
	if !c.txDone || !c.rxDone || c.over {
		return
	}
	for j := range c.out {
		if c.in[j] != c.out[j] {
			c.finish(fmt.Errorf("transfer %d: byte %d = %#02x, want %#02x", c.i, j, c.in[j], c.out[j]))
			return
		}
	}
	c.res.Transfers++
	c.res.Bytes += len(c.out)
	c.i++
	if c.i == c.cfg.Transfers {
		c.finish(nil)
		return
	}
	if err := c.next(); err != nil {
		c.finish(err)
	}
}

// finish reports the outcome once. Lock held.
func (c *chain) finish(err error) {
	if c.over {
		return
	}
	c.over = true
	c.done <- err
}
