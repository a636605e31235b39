package uartx

import "fmt"

// LineStatus carries the per-byte receive status reported by the peripheral,
// mirroring the OE/PE/FE bits a PL011 returns alongside each data byte.
// The zero value means the byte was received cleanly.
type LineStatus uint8

const (
	// StatusParityError is set when the received parity bit did not match.
	StatusParityError LineStatus = 1 << iota
	// StatusFramingError is set when no valid stop bit was seen.
	StatusFramingError
	// StatusOverrun is set when the receiver lost data after this byte.
	StatusOverrun
)

// Parity defines the parity setting used for UART communication.
type Parity uint8

const (
	// ParityNone disables parity generation and checking (the most common setting).
	ParityNone Parity = iota
	// ParityEven sets even parity (total number of 1 bits is even).
	ParityEven
	// ParityOdd sets odd parity (total number of 1 bits is odd).
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return fmt.Sprintf("parity(%d)", uint8(p))
	}
}

// Bit returns the parity bit p generates for the low dataBits of b.
// ParityNone has no parity bit and returns 0.
func (p Parity) Bit(b byte, dataBits uint8) uint8 {
	if p == ParityNone {
		return 0
	}
	var ones uint8
	for i := uint8(0); i < dataBits; i++ {
		ones += (b >> i) & 1
	}
	if p == ParityEven {
		return ones & 1
	}
	return (ones & 1) ^ 1
}

// Format is the character frame: data bits, stop bits and parity.
type Format struct {
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// DefaultFormat is 8N1.
var DefaultFormat = Format{DataBits: 8, StopBits: 1, Parity: ParityNone}

// Validate checks the frame is one a UART can generate.
func (f Format) Validate() error {
	if f.DataBits < 5 || f.DataBits > 8 {
		return fmt.Errorf("%w: %d data bits", ErrInvalidFormat, f.DataBits)
	}
	if f.StopBits != 1 && f.StopBits != 2 {
		return fmt.Errorf("%w: %d stop bits", ErrInvalidFormat, f.StopBits)
	}
	if f.Parity > ParityOdd {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, f.Parity)
	}
	return nil
}

func (f Format) String() string {
	p := "N"
	switch f.Parity {
	case ParityEven:
		p = "E"
	case ParityOdd:
		p = "O"
	}
	return fmt.Sprintf("%d%s%d", f.DataBits, p, f.StopBits)
}
