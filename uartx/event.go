package uartx

import "strings"

// Event is a bitmask of the reasons a transfer ended. Exactly one Event is
// delivered to the transfer's Callback.
type Event uint32

const (
	// EventTxComplete reports that every byte of a write was accepted by the peripheral.
	EventTxComplete Event = 1 << iota
	// EventTxError reports a transmitter fault raised by the peripheral.
	EventTxError
	// EventTxTimeout reports that a write did not finish within its timeout.
	EventTxTimeout
	// EventRxComplete reports that the requested number of bytes was received.
	EventRxComplete
	// EventRxOverflow reports that the peripheral lost data before it was drained.
	EventRxOverflow
	// EventRxParityError reports a parity mismatch on a received byte.
	EventRxParityError
	// EventRxFramingError reports an invalid stop bit on a received byte.
	EventRxFramingError
	// EventRxCharacterMatch reports that the configured match byte was received.
	EventRxCharacterMatch
	// EventRxTimeout reports that a read did not finish within its timeout.
	EventRxTimeout
)

// Group masks.
const (
	EventTxAll    = EventTxComplete | EventTxError | EventTxTimeout
	EventRxErrors = EventRxOverflow | EventRxParityError | EventRxFramingError
	EventRxAll    = EventRxComplete | EventRxErrors | EventRxCharacterMatch | EventRxTimeout
)

var eventNames = [...]struct {
	e    Event
	name string
}{
	{EventTxComplete, "tx-complete"},
	{EventTxError, "tx-error"},
	{EventTxTimeout, "tx-timeout"},
	{EventRxComplete, "rx-complete"},
	{EventRxOverflow, "rx-overflow"},
	{EventRxParityError, "rx-parity-error"},
	{EventRxFramingError, "rx-framing-error"},
	{EventRxCharacterMatch, "rx-character-match"},
	{EventRxTimeout, "rx-timeout"},
}

// Has reports whether every bit of f is set in e.
func (e Event) Has(f Event) bool { return f != 0 && e&f == f }

// String joins the set reasons with '|', e.g. "rx-complete|rx-character-match".
func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, n := range eventNames {
		if e&n.e != 0 {
			parts = append(parts, n.name)
			e &^= n.e
		}
	}
	if e != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// Callback receives the terminal Event of one transfer. It runs on the
// peripheral's event context and must not block; it may start a new transfer.
type Callback func(Event)
