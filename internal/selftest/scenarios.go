package selftest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jangala-dev/uartasync/uartx"
)

const (
	ShortXfer = 3
	LongXfer  = 16
	// TxBase seeds the TX pattern: byte i is TxBase+i.
	TxBase = 0x55
	// RxFill pre-fills every RX buffer so untouched bytes are visible.
	RxFill = 0x5A
)

// Scenario is one named check run on a fresh Link. Run returns "" on pass
// or a short failure message.
type Scenario struct {
	Name string
	// NeedsLineStatus skips the scenario on rigs without per-byte errors.
	NeedsLineStatus bool
	Run             func(ctx context.Context, l *Link) string
}

// Scenarios returns the suite in run order.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "short_tx_0_rx", Run: shortTxNoRx},
		{Name: "short_tx_short_rx", Run: func(ctx context.Context, l *Link) string { return roundTrip(ctx, l, ShortXfer) }},
		{Name: "long_tx_long_rx", Run: func(ctx context.Context, l *Link) string { return roundTrip(ctx, l, LongXfer) }},
		{Name: "rx_parity_error", NeedsLineStatus: true, Run: rxParityError},
		{Name: "rx_framing_error", NeedsLineStatus: true, Run: rxFramingError},
		{Name: "char_matching_success", Run: charMatchSuccess},
		{Name: "char_matching_failed", Run: charMatchFailed},
		{Name: "char_matching_with_complete", Run: charMatchWithComplete},
		{Name: "zero_length_tx", Run: zeroLengthTx},
		{Name: "rearm_after_complete", Run: rearmAfterComplete},
		{Name: "rx_overflow", NeedsLineStatus: true, Run: rxOverflow},
	}
}

// buffers returns the TX pattern and a sentinel-filled RX buffer.
func buffers() (tx, rx []byte) {
	tx = make([]byte, LongXfer)
	rx = make([]byte, LongXfer)
	for i := range tx {
		tx[i] = byte(TxBase + i)
		rx[i] = RxFill
	}
	return tx, rx
}

// pending is an armed transfer awaiting its callback.
type pending struct {
	done <-chan uartx.Event
}

func write(l *Link, p []byte) (pending, error) {
	cb, done := uartx.Notify()
	return pending{done}, l.TX.Write(p, cb, uartx.NoTimeout)
}

func read(l *Link, p []byte) (pending, error) {
	cb, done := uartx.Notify()
	return pending{done}, l.RX.Read(p, cb, uartx.NoTimeout)
}

func readMatch(l *Link, p []byte, match byte) (pending, error) {
	cb, done := uartx.Notify()
	return pending{done}, l.RX.ReadMatch(p, match, cb, uartx.NoTimeout)
}

// expect waits for p and compares its event.
func expect(ctx context.Context, what string, p pending, want uartx.Event) string {
	got, err := uartx.Wait(ctx, p.done)
	if err != nil {
		return what + ": no callback"
	}
	if got != want {
		return fmt.Sprintf("%s: event %v, want %v", what, got, want)
	}
	return ""
}

// same checks got[from:to] against want[from:to].
func same(what string, want, got []byte, from, to int) string {
	if !bytes.Equal(want[from:to], got[from:to]) {
		return fmt.Sprintf("%s: bytes [%d:%d] = % x, want % x", what, from, to, got[from:to], want[from:to])
	}
	return ""
}

// untouched checks got[from:] still holds the RX fill byte.
func untouched(what string, got []byte, from int) string {
	for i := from; i < len(got); i++ {
		if got[i] != RxFill {
			return fmt.Sprintf("%s: byte %d = %#02x, want fill %#02x", what, i, got[i], RxFill)
		}
	}
	return ""
}

// first returns the first non-empty message.
func first(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}

func shortTxNoRx(ctx context.Context, l *Link) string {
	tx, rx := buffers()
	w, err := write(l, tx[:ShortXfer])
	if err != nil {
		return "write: " + err.Error()
	}
	return first(
		expect(ctx, "tx", w, uartx.EventTxComplete),
		untouched("rx", rx, 0),
	)
}

func roundTrip(ctx context.Context, l *Link, n int) string {
	tx, rx := buffers()
	r, err := read(l, rx[:n])
	if err != nil {
		return "read: " + err.Error()
	}
	w, err := write(l, tx[:n])
	if err != nil {
		return "write: " + err.Error()
	}
	return first(
		expect(ctx, "tx", w, uartx.EventTxComplete),
		expect(ctx, "rx", r, uartx.EventRxComplete),
		same("rx", tx, rx, 0, n),
		untouched("rx tail", rx, n),
	)
}

// lineError sends LongXfer bytes after misconfiguring one side and expects
// the RX transfer to end with want.
func lineError(ctx context.Context, l *Link, want uartx.Event, setup func() error) string {
	if err := setup(); err != nil {
		return "configure: " + err.Error()
	}
	tx, rx := buffers()
	r, err := read(l, rx)
	if err != nil {
		return "read: " + err.Error()
	}
	w, err := write(l, tx)
	if err != nil {
		return "write: " + err.Error()
	}
	return first(
		expect(ctx, "tx", w, uartx.EventTxComplete),
		expect(ctx, "rx", r, want),
	)
}

func rxParityError(ctx context.Context, l *Link) string {
	return lineError(ctx, l, uartx.EventRxParityError, func() error {
		if err := l.RX.SetFormat(uartx.Format{DataBits: 8, StopBits: 1, Parity: uartx.ParityEven}); err != nil {
			return err
		}
		return l.TX.SetFormat(uartx.Format{DataBits: 8, StopBits: 1, Parity: uartx.ParityOdd})
	})
}

func rxFramingError(ctx context.Context, l *Link) string {
	return lineError(ctx, l, uartx.EventRxFramingError, func() error {
		return l.TX.SetBaudRate(4800)
	})
}

func charMatchSuccess(ctx context.Context, l *Link) string {
	const k = 5
	tx, rx := buffers()
	r, err := readMatch(l, rx, TxBase+k)
	if err != nil {
		return "read: " + err.Error()
	}
	w, err := write(l, tx)
	if err != nil {
		return "write: " + err.Error()
	}
	msg := first(
		expect(ctx, "tx", w, uartx.EventTxComplete),
		expect(ctx, "rx", r, uartx.EventRxCharacterMatch),
		same("rx", tx, rx, 0, k+1),
		untouched("rx after match", rx, k+1),
	)
	if msg == "" && l.RX.Rx().Count() != k+1 {
		msg = fmt.Sprintf("rx: count %d, want %d", l.RX.Rx().Count(), k+1)
	}
	return msg
}

func charMatchFailed(ctx context.Context, l *Link) string {
	tx, rx := buffers()
	r, err := readMatch(l, rx, TxBase+LongXfer)
	if err != nil {
		return "read: " + err.Error()
	}
	w, err := write(l, tx)
	if err != nil {
		return "write: " + err.Error()
	}
	return first(
		expect(ctx, "tx", w, uartx.EventTxComplete),
		expect(ctx, "rx", r, uartx.EventRxComplete),
		same("rx", tx, rx, 0, LongXfer),
	)
}

func charMatchWithComplete(ctx context.Context, l *Link) string {
	tx, rx := buffers()
	r, err := readMatch(l, rx, TxBase+LongXfer-1)
	if err != nil {
		return "read: " + err.Error()
	}
	w, err := write(l, tx)
	if err != nil {
		return "write: " + err.Error()
	}
	return first(
		expect(ctx, "tx", w, uartx.EventTxComplete),
		expect(ctx, "rx", r, uartx.EventRxComplete|uartx.EventRxCharacterMatch),
		same("rx", tx, rx, 0, LongXfer),
	)
}

// zeroLengthTx expects the callback before Write returns.
func zeroLengthTx(_ context.Context, l *Link) string {
	var got uartx.Event
	calls := 0
	err := l.TX.Write(nil, func(ev uartx.Event) { got = ev; calls++ }, uartx.NoTimeout)
	switch {
	case err != nil:
		return "write: " + err.Error()
	case calls != 1:
		return fmt.Sprintf("callback ran %d times before return", calls)
	case got != uartx.EventTxComplete:
		return fmt.Sprintf("event %v, want %v", got, uartx.EventTxComplete)
	case l.TX.Tx().State() != uartx.StateIdle:
		return "tx not idle"
	}
	return ""
}

// rearmAfterComplete issues the second write from inside the first
// write's callback.
func rearmAfterComplete(ctx context.Context, l *Link) string {
	tx, rx := buffers()
	r, err := read(l, rx[:2*ShortXfer])
	if err != nil {
		return "read: " + err.Error()
	}
	second, done := uartx.Notify()
	rearmErr := make(chan error, 1)
	err = l.TX.Write(tx[:ShortXfer], func(uartx.Event) {
		rearmErr <- l.TX.Write(tx[ShortXfer:2*ShortXfer], second, uartx.NoTimeout)
	}, uartx.NoTimeout)
	if err != nil {
		return "write: " + err.Error()
	}
	select {
	case err := <-rearmErr:
		if err != nil {
			return "re-arm from callback: " + err.Error()
		}
	case <-ctx.Done():
		return "first write: no callback"
	}
	return first(
		expect(ctx, "second write", pending{done}, uartx.EventTxComplete),
		expect(ctx, "rx", r, uartx.EventRxComplete),
		same("rx", tx, rx, 0, 2*ShortXfer),
	)
}

// rxOverflow sends more than the RX FIFO holds with no read armed, then
// expects the read to stop at the overrun.
func rxOverflow(ctx context.Context, l *Link) string {
	const n = 40
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	w, err := write(l, out)
	if err != nil {
		return "write: " + err.Error()
	}
	if msg := expect(ctx, "tx", w, uartx.EventTxComplete); msg != "" {
		return msg
	}
	if l.Buffered != nil && !settle(ctx, l.Buffered) {
		return "rx: fifo never settled"
	}
	in := make([]byte, n)
	r, err := read(l, in)
	if err != nil {
		return "read: " + err.Error()
	}
	if msg := expect(ctx, "rx", r, uartx.EventRxOverflow); msg != "" {
		return msg
	}
	if c := l.RX.Rx().Count(); c >= n {
		return fmt.Sprintf("rx: count %d, want fewer than %d", c, n)
	}
	return ""
}

// settle waits until buffered stops changing, so the last bytes of a
// write have landed before a read is armed.
func settle(ctx context.Context, buffered func() int) bool {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	last, stable := -1, 0
	for stable < 5 {
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
		}
		if n := buffered(); n > 0 && n == last {
			stable++
		} else {
			last, stable = n, 0
		}
	}
	return true
}
