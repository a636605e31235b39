package uartx

import (
	"errors"
	"fmt"
)

// Synchronous errors returned by Write, Read and the configuration calls.
// Line errors during a transfer are never returned; they arrive as Event bits.
var (
	// ErrBusy is returned when the engine already owns a transfer.
	ErrBusy = errors.New("uartx: transfer in progress")

	// ErrInvalidArgument is returned for a nil callback or a zero-length read with a match byte.
	ErrInvalidArgument = errors.New("uartx: invalid argument")

	// ErrInvalidFormat is returned for a frame format the UART cannot produce.
	ErrInvalidFormat = errors.New("uartx: invalid format")

	// ErrInvalidBaud is returned for a zero baud rate.
	ErrInvalidBaud = errors.New("uartx: invalid baud rate")

	// ErrTimeout is returned by Wait when its context ends first.
	ErrTimeout = errors.New("uartx: wait timed out")

	// ErrClosed is returned by peripherals after Close.
	ErrClosed = errors.New("uartx: peripheral closed")
)

// EventError reports a transfer that ended for a reason other than success.
type EventError struct {
	Event Event
}

func (e *EventError) Error() string {
	return fmt.Sprintf("uartx: transfer ended with %v", e.Event)
}

// Err converts a terminal Event into an error. Completion and character match
// (alone or combined with completion) are successes and return nil.
func (e Event) Err() error {
	if e == 0 || e&^(EventTxComplete|EventRxComplete|EventRxCharacterMatch) == 0 {
		return nil
	}
	return &EventError{Event: e}
}
