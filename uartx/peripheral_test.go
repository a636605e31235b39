package uartx

import (
	"sync"
)

// fakePeripheral records what the engines ask of the hardware. Tests play the
// interrupt context themselves by calling the Handler methods.
type fakePeripheral struct {
	mu       sync.Mutex
	h        Handler
	txOn     bool
	rxOn     bool
	txStarts int
	rxStarts int
	sent     []byte
	format   Format
	baud     uint32
	err      error // returned by SetFormat and SetBaudRate
	// onSetFormat runs inside SetFormat, before the change is applied.
	onSetFormat func()
}

func (f *fakePeripheral) StartTransmit() { f.mu.Lock(); f.txOn = true; f.txStarts++; f.mu.Unlock() }
func (f *fakePeripheral) StopTransmit()  { f.mu.Lock(); f.txOn = false; f.mu.Unlock() }
func (f *fakePeripheral) StartReceive()  { f.mu.Lock(); f.rxOn = true; f.rxStarts++; f.mu.Unlock() }
func (f *fakePeripheral) StopReceive()   { f.mu.Lock(); f.rxOn = false; f.mu.Unlock() }

func (f *fakePeripheral) Transmit(b byte) {
	f.mu.Lock()
	f.sent = append(f.sent, b)
	f.mu.Unlock()
}

func (f *fakePeripheral) SetFormat(fm Format) error {
	if f.onSetFormat != nil {
		f.onSetFormat()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.format = fm
	return nil
}

func (f *fakePeripheral) SetBaudRate(br uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.baud = br
	return nil
}

func (f *fakePeripheral) Attach(h Handler) { f.h = h }

func (f *fakePeripheral) transmitting() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.txOn }
func (f *fakePeripheral) receiving() bool    { f.mu.Lock(); defer f.mu.Unlock(); return f.rxOn }

func (f *fakePeripheral) wire() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.sent...)
}

// newTestSerial returns a Serial on a fresh fake peripheral.
func newTestSerial() (*Serial, *fakePeripheral) {
	f := &fakePeripheral{}
	return New(f), f
}

// recorder collects every event delivered to its callback.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) cb(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) got() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

const (
	txBase   = 0x55
	sentinel = 0x5A
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i + txBase)
	}
	return p
}

func filled(n int, b byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = b
	}
	return p
}
