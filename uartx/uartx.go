// Package uartx provides an event-driven asynchronous UART transfer engine.
// Write and Read arm a transfer on a caller-owned buffer and return at once;
// hardware events from a Peripheral move the transfer forward and a Callback
// receives exactly one Event bitmask when it ends. Line errors (parity,
// framing, overrun) and an optional match character end a read early.
//
// The engine never touches registers. A Peripheral supplies start/stop of
// each direction, byte load, format and baud, and reports TransmitReady,
// TransmitError and ByteReceived on its own event context. Host builds use
// the uartx/sim and uartx/serialport peripherals; RP2040/RP2350 builds also
// get a PL011 peripheral, PL011UART0 and PL011UART1.
//
// Callbacks run on the event context and must not block. The engine is Idle
// again before a callback runs, so a callback may chain the next transfer.
// For select-based code, Notify and Wait turn a completion into a channel
// receive.
package uartx
