package uartx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feed delivers data byte by byte as clean receptions.
func feed(h Handler, data []byte) {
	for _, b := range data {
		h.ByteReceived(b, 0)
	}
}

func TestRead_CharacterMatch(t *testing.T) {
	const n = 16
	tx := pattern(n)

	tests := []struct {
		name      string
		match     *byte
		want      Event
		wantCount int
	}{
		{name: "no match configured", want: EventRxComplete, wantCount: n},
		{name: "match mid stream", match: ptr(byte(txBase + 5)), want: EventRxCharacterMatch, wantCount: 6},
		{name: "match on first byte", match: ptr(byte(txBase)), want: EventRxCharacterMatch, wantCount: 1},
		{name: "match on last byte", match: ptr(byte(txBase + n - 1)), want: EventRxComplete | EventRxCharacterMatch, wantCount: n},
		{name: "match never sent", match: ptr(byte(txBase + n)), want: EventRxComplete, wantCount: n},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newTestSerial()
			var rec recorder
			rx := filled(n, sentinel)

			if tt.match != nil {
				require.NoError(t, s.ReadMatch(rx, *tt.match, rec.cb, NoTimeout))
			} else {
				require.NoError(t, s.Read(rx, rec.cb, NoTimeout))
			}
			assert.True(t, f.receiving())
			feed(f.h, tx)

			require.Equal(t, []Event{tt.want}, rec.got())
			assert.Equal(t, tt.wantCount, s.Rx().Count())
			assert.Equal(t, tx[:tt.wantCount], rx[:tt.wantCount])
			assert.Equal(t, filled(n-tt.wantCount, sentinel), rx[tt.wantCount:])
			assert.False(t, f.receiving())
			assert.Equal(t, StateIdle, s.Rx().State())
		})
	}
}

func TestRead_LineErrorsStopBeforeTheBadByte(t *testing.T) {
	tests := []struct {
		name   string
		status LineStatus
		want   Event
	}{
		{"parity", StatusParityError, EventRxParityError},
		{"framing", StatusFramingError, EventRxFramingError},
		{"overrun", StatusOverrun, EventRxOverflow},
		{"framing wins over parity", StatusFramingError | StatusParityError, EventRxFramingError},
		{"parity wins over overrun", StatusParityError | StatusOverrun, EventRxParityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newTestSerial()
			var rec recorder
			rx := filled(16, sentinel)

			require.NoError(t, s.Read(rx, rec.cb, NoTimeout))
			feed(f.h, []byte{1, 2, 3, 4})
			f.h.ByteReceived(0xEE, tt.status)

			assert.Equal(t, []Event{tt.want}, rec.got())
			assert.Equal(t, []byte{1, 2, 3, 4}, rx[:4])
			assert.Equal(t, filled(12, sentinel), rx[4:])
			assert.Equal(t, 4, s.Rx().Count())
			assert.False(t, f.receiving())
		})
	}
}

func TestRead_ExactlyOnceDespiteTrailingBytes(t *testing.T) {
	s, f := newTestSerial()
	var rec recorder
	rx := make([]byte, 3)

	require.NoError(t, s.ReadMatch(rx, 'b', rec.cb, NoTimeout))
	feed(f.h, []byte("abcdef"))
	f.h.ByteReceived('x', StatusParityError)

	assert.Equal(t, []Event{EventRxCharacterMatch}, rec.got())
	assert.Equal(t, []byte{'a', 'b', 0}, rx)
	assert.EqualValues(t, 5, s.Stats().RxDropped)
	assert.EqualValues(t, 0, s.Stats().ErrParity)
}

func TestRead_ZeroLength(t *testing.T) {
	s, f := newTestSerial()
	var rec recorder

	require.NoError(t, s.Read(nil, rec.cb, NoTimeout))
	assert.Equal(t, []Event{EventRxComplete}, rec.got())
	assert.Equal(t, 0, f.rxStarts)

	assert.ErrorIs(t, s.ReadMatch(nil, 'x', rec.cb, NoTimeout), ErrInvalidArgument)
	assert.ErrorIs(t, s.Read(make([]byte, 1), nil, NoTimeout), ErrInvalidArgument)
}

func TestRead_RejectsWhileBusyAndRearmsAfterCompletion(t *testing.T) {
	s, f := newTestSerial()
	var rec recorder
	rx := make([]byte, 2)

	require.NoError(t, s.Read(rx, rec.cb, NoTimeout))
	assert.ErrorIs(t, s.Read(rx, rec.cb, NoTimeout), ErrBusy)
	feed(f.h, []byte{7, 8})
	require.Equal(t, []Event{EventRxComplete}, rec.got())

	require.NoError(t, s.Read(rx, rec.cb, NoTimeout))
	feed(f.h, []byte{9, 10})
	assert.Equal(t, []Event{EventRxComplete, EventRxComplete}, rec.got())
	assert.Equal(t, []byte{9, 10}, rx)
	assert.Equal(t, 2, f.rxStarts)
}

func TestRead_TimeoutKeepsPartialData(t *testing.T) {
	s, f := newTestSerial()
	cb, done := Notify()
	rx := filled(8, sentinel)

	require.NoError(t, s.Read(rx, cb, 20*time.Millisecond))
	feed(f.h, []byte{1, 2})

	ev, err := WaitTimeout(done, time.Second)
	require.NoError(t, err)
	assert.Equal(t, EventRxTimeout, ev)
	assert.Equal(t, []byte{1, 2}, rx[:2])
	assert.Equal(t, filled(6, sentinel), rx[2:])
	assert.Equal(t, 2, s.Rx().Count())
	assert.False(t, f.receiving())

	// Late bytes after the timeout belong to nobody.
	f.h.ByteReceived(3, 0)
	assert.EqualValues(t, 1, s.Stats().RxDropped)
}

func TestRead_DirectionsAreIndependent(t *testing.T) {
	s, f := newTestSerial()
	var txRec, rxRec recorder
	rx := filled(4, sentinel)

	require.NoError(t, s.Write([]byte("hi"), txRec.cb, NoTimeout))
	require.NoError(t, s.Read(rx[:2], rxRec.cb, NoTimeout))

	f.h.TransmitReady()
	f.h.ByteReceived('o', 0)
	f.h.TransmitReady()
	f.h.TransmitReady()
	assert.Equal(t, []Event{EventTxComplete}, txRec.got())
	assert.Empty(t, rxRec.got())
	assert.Equal(t, StateInProgress, s.Rx().State())

	f.h.ByteReceived('k', 0)
	assert.Equal(t, []Event{EventRxComplete}, rxRec.got())
	assert.Equal(t, []byte{'o', 'k', sentinel, sentinel}, rx)
}

func ptr[T any](v T) *T { return &v }
