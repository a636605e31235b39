//go:build !baremetal

package serialport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/jangala-dev/uartasync/uartx"
)

// echoDevice loops every written byte back to Read, like a TX-RX jumper.
type echoDevice struct {
	mu       sync.Mutex
	pending  []byte
	mode     *serial.Mode
	timeout  time.Duration
	writeErr error
	closed   chan struct{}
	once     sync.Once
}

func newEchoDevice() *echoDevice { return &echoDevice{closed: make(chan struct{})} }

func (d *echoDevice) Read(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, errors.New("closed")
	case <-time.After(time.Millisecond):
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *echoDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.pending = append(d.pending, p...)
	return len(p), nil
}

func (d *echoDevice) SetMode(m *serial.Mode) error {
	d.mu.Lock()
	d.mode = m
	d.mu.Unlock()
	return nil
}

func (d *echoDevice) SetReadTimeout(t time.Duration) error { d.timeout = t; return nil }

func (d *echoDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

func newTestPort(t *testing.T, setup ...func(*echoDevice)) (*Port, *echoDevice) {
	t.Helper()
	dev := newEchoDevice()
	for _, f := range setup {
		f(dev)
	}
	p, err := newPort(dev, Config{Device: "/dev/ttyTEST", BaudRate: 9600, Format: uartx.DefaultFormat})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, dev
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		name    string
		baud    uint32
		format  uartx.Format
		want    *serial.Mode
		wantErr error
	}{
		{
			name:   "8N1",
			baud:   115200,
			format: uartx.DefaultFormat,
			want:   &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		},
		{
			name:   "7E2",
			baud:   4800,
			format: uartx.Format{DataBits: 7, StopBits: 2, Parity: uartx.ParityEven},
			want:   &serial.Mode{BaudRate: 4800, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
		},
		{
			name:   "8O1",
			baud:   9600,
			format: uartx.Format{DataBits: 8, StopBits: 1, Parity: uartx.ParityOdd},
			want:   &serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OneStopBit},
		},
		{name: "zero baud", format: uartx.DefaultFormat, wantErr: uartx.ErrInvalidBaud},
		{name: "bad format", baud: 9600, format: uartx.Format{DataBits: 9, StopBits: 1}, wantErr: uartx.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := modeFor(tt.baud, tt.format)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_RequiresDevice(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorContains(t, err, "required")
}

func TestPort_EchoTransfer(t *testing.T) {
	p, dev := newTestPort(t)
	assert.Equal(t, defaultPoll, dev.timeout)
	s := uartx.New(p)

	in := make([]byte, 6)
	rxCb, rxDone := uartx.Notify()
	txCb, txDone := uartx.Notify()
	require.NoError(t, s.ReadMatch(in, '\n', rxCb, time.Second))
	require.NoError(t, s.Write([]byte("ping\n"), txCb, time.Second))

	ev, err := uartx.WaitTimeout(txDone, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uartx.EventTxComplete, ev)

	ev, err = uartx.WaitTimeout(rxDone, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uartx.EventRxCharacterMatch, ev)
	assert.Equal(t, "ping\n", string(in[:s.Rx().Count()]))
}

func TestPort_WriteFailureRaisesTxError(t *testing.T) {
	p, _ := newTestPort(t, func(d *echoDevice) { d.writeErr = errors.New("unplugged") })
	s := uartx.New(p)

	cb, done := uartx.Notify()
	require.NoError(t, s.Write([]byte("x"), cb, time.Second))
	ev, err := uartx.WaitTimeout(done, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uartx.EventTxError, ev)
}

func TestPort_SetFormatAndBaud(t *testing.T) {
	p, dev := newTestPort(t)
	s := uartx.New(p)

	require.NoError(t, s.SetBaudRate(57600))
	require.NoError(t, s.SetFormat(uartx.Format{DataBits: 8, StopBits: 1, Parity: uartx.ParityOdd}))

	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, &serial.Mode{BaudRate: 57600, DataBits: 8, Parity: serial.OddParity, StopBits: serial.OneStopBit}, dev.mode)
}
