package port

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DriverPort adapts a gomidi driver input/output pair to the byte level Port
// contract. Either side may be nil.
//
// Incoming messages are delivered by the driver on its own thread; their bytes
// are queued and handed out by Read one call at a time.
type DriverPort struct {
	name string
	in   drivers.In
	out  drivers.Out
	log  logrus.FieldLogger

	fifo *Loopback
	stop func()

	mu     sync.Mutex
	closed bool
}

// NewDriverPort opens in and out and starts listening on in.
func NewDriverPort(name string, in drivers.In, out drivers.Out, logger logrus.FieldLogger) (*DriverPort, error) {
	if in == nil && out == nil {
		return nil, fmt.Errorf("driver port %s: no input or output", name)
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	p := &DriverPort{
		name: name,
		in:   in,
		out:  out,
		log:  logger.WithField("port", name),
		fifo: NewLoopback(name),
	}

	if out != nil && !out.IsOpen() {
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("failed to open output %s: %w", out.String(), err)
		}
	}

	if in != nil {
		if !in.IsOpen() {
			if err := in.Open(); err != nil {
				p.closeOut()
				return nil, fmt.Errorf("failed to open input %s: %w", in.String(), err)
			}
		}
		stop, err := in.Listen(p.onMessage, drivers.ListenConfig{
			TimeCode:    true,
			ActiveSense: true,
			SysEx:       true,
			OnErr: func(err error) {
				p.log.WithError(err).Warn("MIDI input error")
			},
		})
		if err != nil {
			_ = in.Close()
			p.closeOut()
			return nil, fmt.Errorf("failed to start listening on %s: %w", in.String(), err)
		}
		p.stop = stop
	}

	return p, nil
}

func (p *DriverPort) onMessage(msg []byte, _ int32) {
	if err := p.fifo.Feed(msg...); err != nil {
		p.log.WithError(err).Debug("dropping input after close")
	}
}

func (p *DriverPort) Name() string {
	return p.name
}

func (p *DriverPort) Read(b []byte) (int, error) {
	if p.in == nil {
		return 0, ErrNoInput
	}
	return p.fifo.Read(b)
}

// Write sends b to the output port. The driver takes whole messages, so b is
// split at message boundaries and each message is sent separately.
func (p *DriverPort) Write(b []byte) (int, error) {
	if p.out == nil {
		return 0, ErrNoOutput
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	written := 0
	for _, chunk := range splitMessages(b) {
		if err := p.out.Send(chunk); err != nil {
			return written, fmt.Errorf("failed to send to %s: %w", p.out.String(), err)
		}
		written += len(chunk)
	}
	return written, nil
}

func (p *DriverPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.stop != nil {
		p.stop()
	}
	if p.in != nil {
		err = p.in.Close()
	}
	if cerr := p.closeOut(); err == nil {
		err = cerr
	}
	_ = p.fifo.Close()
	return err
}

func (p *DriverPort) closeOut() error {
	if p.out == nil {
		return nil
	}
	return p.out.Close()
}

// splitMessages cuts an encoded buffer into single messages. A system
// exclusive message runs up to and including its end byte.
func splitMessages(b []byte) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		n := 1
		if kind, ok := midi.KindOf(b[0]); ok {
			n += kind.Arity()
			if kind == midi.SystemExclusive {
				if end := bytes.IndexByte(b, byte(midi.SysexEnd)); end >= 0 {
					n = end + 1
				}
			}
		}
		if n > len(b) {
			n = len(b)
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}
