package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/uartasync/uartx"
)

const waitFor = 2 * time.Second

// newLink returns a Serial on each end of a one-way tx -> rx link.
func newLink(t *testing.T) (tx, rx *uartx.Serial, txp, rxp *Port) {
	t.Helper()
	txp, rxp = NewPort("tx"), NewPort("rx")
	Connect(txp, rxp)
	t.Cleanup(func() {
		_ = txp.Close()
		_ = rxp.Close()
	})
	return uartx.New(txp), uartx.New(rxp), txp, rxp
}

func transfer(t *testing.T, tx, rx *uartx.Serial, out, in []byte) (txEv, rxEv uartx.Event) {
	t.Helper()
	rxCb, rxDone := uartx.Notify()
	txCb, txDone := uartx.Notify()
	require.NoError(t, rx.Read(in, rxCb, uartx.NoTimeout))
	require.NoError(t, tx.Write(out, txCb, uartx.NoTimeout))

	txEv, err := uartx.WaitTimeout(txDone, waitFor)
	require.NoError(t, err)
	rxEv, err = uartx.WaitTimeout(rxDone, waitFor)
	require.NoError(t, err)
	return txEv, rxEv
}

func TestPort_Loopback(t *testing.T) {
	p := NewPort("lo")
	defer p.Close()
	Loopback(p)
	s := uartx.New(p)

	in := make([]byte, 5)
	txEv, rxEv := transfer(t, s, s, []byte("hello"), in)
	assert.Equal(t, uartx.EventTxComplete, txEv)
	assert.Equal(t, uartx.EventRxComplete, rxEv)
	assert.Equal(t, "hello", string(in))
}

func TestPort_LineErrors(t *testing.T) {
	even := uartx.Format{DataBits: 8, StopBits: 1, Parity: uartx.ParityEven}
	odd := uartx.Format{DataBits: 8, StopBits: 1, Parity: uartx.ParityOdd}
	sevenBit := uartx.Format{DataBits: 7, StopBits: 1, Parity: uartx.ParityNone}

	tests := []struct {
		name     string
		txFormat uartx.Format
		rxFormat uartx.Format
		txBaud   uint32
		want     uartx.Event
	}{
		{name: "matching settings", txFormat: uartx.DefaultFormat, rxFormat: uartx.DefaultFormat, want: uartx.EventRxComplete},
		{name: "matching parity", txFormat: even, rxFormat: even, want: uartx.EventRxComplete},
		{name: "odd sent, even expected", txFormat: odd, rxFormat: even, want: uartx.EventRxParityError},
		{name: "baud mismatch", txFormat: uartx.DefaultFormat, rxFormat: uartx.DefaultFormat, txBaud: 4800, want: uartx.EventRxFramingError},
		{name: "data width mismatch", txFormat: sevenBit, rxFormat: uartx.DefaultFormat, want: uartx.EventRxFramingError},
		// 0x55 has four ones: its even parity bit is 0 and lands where the stop bit belongs.
		{name: "unexpected parity bit", txFormat: even, rxFormat: uartx.DefaultFormat, want: uartx.EventRxFramingError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, rx, _, _ := newLink(t)
			require.NoError(t, tx.SetFormat(tt.txFormat))
			require.NoError(t, rx.SetFormat(tt.rxFormat))
			if tt.txBaud != 0 {
				require.NoError(t, tx.SetBaudRate(tt.txBaud))
			}

			out := []byte{0x55, 0x56, 0x57, 0x58}
			in := []byte{0x5A, 0x5A, 0x5A, 0x5A}
			txEv, rxEv := transfer(t, tx, rx, out, in)

			assert.Equal(t, uartx.EventTxComplete, txEv, "transmitter is unaware of the receiver's settings")
			assert.Equal(t, tt.want, rxEv)
			if tt.want == uartx.EventRxComplete {
				assert.Equal(t, out, in)
			} else {
				assert.Equal(t, []byte{0x5A, 0x5A, 0x5A, 0x5A}, in)
			}
		})
	}
}

func TestPort_OverrunWhenNobodyReads(t *testing.T) {
	tx, rx, _, rxp := newLink(t)

	out := make([]byte, 40)
	for i := range out {
		out[i] = byte(i)
	}
	txCb, txDone := uartx.Notify()
	require.NoError(t, tx.Write(out, txCb, uartx.NoTimeout))
	ev, err := uartx.WaitTimeout(txDone, waitFor)
	require.NoError(t, err)
	require.Equal(t, uartx.EventTxComplete, ev)
	require.Eventually(t, func() bool { return rxp.Buffered() == 32 }, waitFor, time.Millisecond)

	in := make([]byte, 40)
	rxCb, rxDone := uartx.Notify()
	require.NoError(t, rx.Read(in, rxCb, uartx.NoTimeout))
	ev, err = uartx.WaitTimeout(rxDone, waitFor)
	require.NoError(t, err)

	assert.Equal(t, uartx.EventRxOverflow, ev)
	assert.Equal(t, 31, rx.Rx().Count())
	assert.Equal(t, out[:31], in[:31])
}

func TestPort_InjectedStatus(t *testing.T) {
	p := NewPort("inj")
	defer p.Close()
	s := uartx.New(p)

	p.Inject('a', 0)
	p.Inject('b', uartx.StatusParityError)

	in := make([]byte, 4)
	cb, done := uartx.Notify()
	require.NoError(t, s.Read(in, cb, uartx.NoTimeout))
	ev, err := uartx.WaitTimeout(done, waitFor)
	require.NoError(t, err)
	assert.Equal(t, uartx.EventRxParityError, ev)
	assert.Equal(t, []byte{'a', 0, 0, 0}, in)
}

func TestPort_HeldBytesDeliveredOnNextRead(t *testing.T) {
	p := NewPort("held")
	defer p.Close()
	s := uartx.New(p)
	for _, b := range []byte("abc") {
		p.Inject(b, 0)
	}

	first := make([]byte, 2)
	cb, done := uartx.Notify()
	require.NoError(t, s.Read(first, cb, uartx.NoTimeout))
	_, err := uartx.WaitTimeout(done, waitFor)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(first))
	assert.Equal(t, 1, p.Buffered(), "receiver must stop once the read is satisfied")

	second := make([]byte, 1)
	cb, done = uartx.Notify()
	require.NoError(t, s.Read(second, cb, uartx.NoTimeout))
	_, err = uartx.WaitTimeout(done, waitFor)
	require.NoError(t, err)
	assert.Equal(t, "c", string(second))

	p.Inject('z', 0)
	p.Flush()
	assert.Zero(t, p.Buffered())
}

func TestPort_RejectsBadSettings(t *testing.T) {
	p := NewPort("cfg")
	defer p.Close()
	assert.ErrorIs(t, p.SetBaudRate(0), uartx.ErrInvalidBaud)
	assert.ErrorIs(t, p.SetFormat(uartx.Format{DataBits: 4, StopBits: 1}), uartx.ErrInvalidFormat)
}
