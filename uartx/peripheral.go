package uartx

// Transmitter is the TX half of a UART peripheral.
type Transmitter interface {
	// StartTransmit enables TransmitReady events. The first event follows
	// as soon as the peripheral can accept a byte.
	StartTransmit()
	// StopTransmit masks TransmitReady events. Bytes already accepted may
	// still leave the line.
	StopTransmit()
	// Transmit loads one byte into the transmit data register. It is only
	// called from within TransmitReady.
	Transmit(b byte)
}

// Receiver is the RX half of a UART peripheral.
type Receiver interface {
	// StartReceive enables ByteReceived events, starting with any bytes the
	// peripheral already holds.
	StartReceive()
	// StopReceive masks ByteReceived events. Later bytes stay in the
	// peripheral until the next StartReceive, or are lost to overrun.
	StopReceive()
}

// Peripheral is the capability set the transfer engines drive. Pin muxing,
// clocks and register layout stay behind it.
//
// Events are delivered to the attached Handler on the peripheral's own event
// context (an ISR, or a goroutine standing in for one). A peripheral must never
// call a Handler method synchronously from inside one of its own methods.
type Peripheral interface {
	Transmitter
	Receiver
	SetFormat(f Format) error
	SetBaudRate(br uint32) error
	Attach(h Handler)
}

// Handler consumes hardware events.
type Handler interface {
	// TransmitReady signals that the transmit data register can take a byte.
	TransmitReady()
	// TransmitError signals a transmitter fault.
	TransmitError()
	// ByteReceived delivers one received byte with its line status.
	ByteReceived(b byte, status LineStatus)
}
