// Package port provides byte transports for the MIDI codec: OS MIDI driver
// ports, serial UARTs and an in-memory loopback.
package port

import (
	"errors"
	"io"
)

// Type represents the kind of transport behind a Port
type Type string

const (
	TypeDriver   Type = "driver"   // OS MIDI port through gomidi/rtmidi
	TypeSerial   Type = "serial"   // UART at MIDI baud rate
	TypeLoopback Type = "loopback" // in-memory, writes come back as reads
)

var (
	ErrClosed   = errors.New("port closed")
	ErrNoInput  = errors.New("port has no input")
	ErrNoOutput = errors.New("port has no output")
)

// Port is a MIDI byte transport.
//
// Read never waits for a full buffer: it returns (0, nil) when no byte is
// available, or after the port's read timeout expires. Write sends the whole
// buffer or fails.
type Port interface {
	io.Reader
	io.Writer
	io.Closer

	// Name returns a human readable port name
	Name() string
}
