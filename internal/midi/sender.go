package midi

import (
	"fmt"
	"io"
)

// SendOption configures a single Send or SendAll call.
type SendOption func(*sendConfig)

type sendConfig struct {
	channel    uint8
	overridden bool
}

// WithChannel sets the channel of every message in the call before it is
// encoded. The caller's messages are updated as well.
func WithChannel(channel uint8) SendOption {
	return func(c *sendConfig) {
		c.channel = channel
		c.overridden = true
	}
}

// Sender encodes messages onto a byte sink. Every call results in exactly one
// Write of the concatenated encoding.
type Sender struct {
	dst io.Writer
	buf []byte
}

// NewSender creates a Sender writing to dst.
func NewSender(dst io.Writer) *Sender {
	return &Sender{dst: dst}
}

// Send writes a single message.
func (s *Sender) Send(m *Message, opts ...SendOption) error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	batch := []Message{*m}
	err := s.SendAll(batch, opts...)
	*m = batch[0]
	return err
}

// SendAll writes messages in order with a single Write. Nothing is written,
// and no message is modified, when any message fails validation.
func (s *Sender) SendAll(msgs []Message, opts ...SendOption) error {
	var cfg sendConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.overridden && cfg.channel > channelMask {
		return fmt.Errorf("%w: channel override %d out of range 0-15", ErrInvalidMessage, cfg.channel)
	}

	for _, m := range msgs {
		if cfg.overridden {
			m.Channel = cfg.channel
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if cfg.overridden {
		for i := range msgs {
			msgs[i].Channel = cfg.channel
		}
	}

	s.buf = s.buf[:0]
	for i := range msgs {
		s.buf = msgs[i].AppendTo(s.buf)
	}

	n, err := s.dst.Write(s.buf)
	if err != nil {
		return fmt.Errorf("failed to write MIDI data: %w", err)
	}
	if n != len(s.buf) {
		return io.ErrShortWrite
	}
	return nil
}
