package port

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the MIDI 1.0 DIN baud rate
	DefaultBaudRate = 31250
	// DefaultReadTimeout bounds how long a single Read waits for a byte
	DefaultReadTimeout = time.Millisecond
)

// serialConn is the part of serial.Port a SerialPort needs
type serialConn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// openSerial is replaced in tests
var openSerial = func(path string, mode *serial.Mode) (serialConn, error) {
	return serial.Open(path, mode)
}

// SerialPort is a UART carrying MIDI, such as a DIN MIDI interface wired to
// TX/RX pins. Reads wait at most the configured read timeout and return
// (0, nil) when it expires.
type SerialPort struct {
	path string
	conn serialConn
}

// OpenSerial opens the serial device at path. A zero baud rate or timeout
// selects the MIDI defaults.
func OpenSerial(path string, baudRate int, readTimeout time.Duration) (*SerialPort, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	conn, err := openSerial(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	if err := conn.SetReadTimeout(readTimeout); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}
	return &SerialPort{path: path, conn: conn}, nil
}

func (s *SerialPort) Name() string {
	return s.path
}

func (s *SerialPort) Read(p []byte) (int, error) {
	return s.conn.Read(p)
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *SerialPort) Close() error {
	return s.conn.Close()
}
