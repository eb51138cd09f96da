package midi

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// Parse errors. They are never returned from Receive; they classify the
// malformed input counted by ErrorCount and appear in debug logs.
var (
	// ErrDesync is a data byte that arrived with no usable running status.
	ErrDesync = errors.New("data byte without status")
	// ErrCorrupt is a status byte found where a data byte was expected.
	ErrCorrupt = errors.New("status byte inside message data")
	// ErrUnknownStatus is a status byte outside the message kind enumeration.
	ErrUnknownStatus = errors.New("undefined status byte")
)

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithRunningStatus enables running status: data bytes that arrive without a
// status byte reuse the last channel message status.
func WithRunningStatus(enabled bool) ReceiverOption {
	return func(r *Receiver) {
		r.runningEnabled = enabled
	}
}

// WithSysExSkip makes the receiver drop system exclusive payload bytes
// silently instead of counting them as errors.
func WithSysExSkip(enabled bool) ReceiverOption {
	return func(r *Receiver) {
		r.skipSysEx = enabled
	}
}

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(logger logrus.FieldLogger) ReceiverOption {
	return func(r *Receiver) {
		if logger != nil {
			r.log = logger
		}
	}
}

// Receiver parses messages from a byte source one call at a time.
//
// The source is read through a one byte buffer. A read returning (0, nil)
// means no byte is available right now; Receive then returns without a
// message. How long a single read may block is up to the source, for example
// a serial port read timeout.
//
// A Receiver is not safe for concurrent use.
type Receiver struct {
	src io.Reader
	buf [1]byte
	log logrus.FieldLogger

	runningEnabled bool
	skipSysEx      bool

	running    byte // last channel status byte, 0 when unset
	inSysEx    bool
	errorCount uint64
	bytesRead  uint64

	// message being assembled when the source ran dry mid-message
	pending     bool
	pendingMsg  Message
	pendingNeed int
	pendingHave int
}

// NewReceiver creates a Receiver reading from src.
func NewReceiver(src io.Reader, opts ...ReceiverOption) *Receiver {
	r := &Receiver{src: src}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = l
	}
	return r
}

// ErrorCount returns the number of malformed inputs seen so far.
func (r *Receiver) ErrorCount() uint64 {
	return r.errorCount
}

// BytesRead returns the number of bytes taken from the source so far. A
// Receive that returns no message but moves this counter consumed input.
func (r *Receiver) BytesRead() uint64 {
	return r.bytesRead
}

// RunningStatus returns the recorded running status byte, if any.
func (r *Receiver) RunningStatus() (byte, bool) {
	return r.running, r.running != 0
}

// readByte pulls a single byte from the source. ok is false when the source
// has nothing available.
func (r *Receiver) readByte() (b byte, ok bool, err error) {
	n, err := r.src.Read(r.buf[:])
	if n > 0 {
		r.bytesRead++
		return r.buf[0], true, nil
	}
	return 0, false, err
}

// Receive reads at most one message. It returns ok == false when no complete
// message is available, either because the source has no data or because
// malformed input was discarded (see ErrorCount). A non-nil error comes from
// the source and is returned unchanged.
func (r *Receiver) Receive() (msg Message, ok bool, err error) {
	if r.pending {
		return r.resume()
	}

	b, got, err := r.readByte()
	if !got {
		return Message{}, false, err
	}

	status := b
	if b&statusBit == 0 {
		if r.inSysEx {
			return Message{}, false, nil
		}
		if !r.runningEnabled || r.running == 0 {
			r.fail(ErrDesync, b)
			return Message{}, false, nil
		}
		status = r.running
	}

	kind, known := KindOf(status)
	if !known {
		if status < realtimeStatus {
			r.inSysEx = false
		}
		r.fail(ErrUnknownStatus, status)
		return Message{}, false, nil
	}
	msg = Message{Kind: kind}

	switch {
	case IsChannelStatus(status):
		r.running = status
		r.inSysEx = false
		msg.Channel = status & channelMask
	case kind.IsRealtime():
		// real-time bytes interleave with everything else
	case kind == SystemExclusive || kind == SysexEnd:
		// SysEx framing cancels running status
		r.running = 0
		r.inSysEx = r.skipSysEx && kind == SystemExclusive
	default:
		r.inSysEx = false
	}

	need, have := kind.Arity(), 0
	if status != b {
		msg.Data0 = b
		have = 1
	}
	return r.collect(msg, need, have)
}

// collect reads the remaining data bytes of msg.
func (r *Receiver) collect(msg Message, need, have int) (Message, bool, error) {
	for have < need {
		b, got, err := r.readByte()
		if !got {
			r.pending = true
			r.pendingMsg = msg
			r.pendingNeed = need
			r.pendingHave = have
			return Message{}, false, err
		}
		if b&statusBit != 0 {
			r.pending = false
			r.fail(ErrCorrupt, b)
			return Message{}, false, nil
		}
		if have == 0 {
			msg.Data0 = b
		} else {
			msg.Data1 = b
		}
		have++
	}
	r.pending = false
	return msg, true, nil
}

func (r *Receiver) resume() (Message, bool, error) {
	return r.collect(r.pendingMsg, r.pendingNeed, r.pendingHave)
}

func (r *Receiver) fail(reason error, b byte) {
	r.errorCount++
	r.log.WithFields(logrus.Fields{
		"error": reason,
		"byte":  b,
		"count": r.errorCount,
	}).Debug("discarding malformed MIDI input")
}
