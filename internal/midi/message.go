package midi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMessage is wrapped by every error returned from Message.Validate.
var ErrInvalidMessage = errors.New("invalid MIDI message")

// InvalidMessageError describes why a message cannot be encoded.
type InvalidMessageError struct {
	Message Message
	Reason  string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidMessage, e.Message, e.Reason)
}

func (e *InvalidMessageError) Unwrap() error {
	return ErrInvalidMessage
}

// Message is a single MIDI event.
type Message struct {
	Kind    Kind
	Channel uint8 // 0-15, only meaningful for channel kinds
	Data0   uint8 // first data byte, 0-127
	Data1   uint8 // second data byte, 0-127
}

// NewNoteOn creates a Note On message.
func NewNoteOn(channel, note, velocity uint8) Message {
	return Message{Kind: NoteOn, Channel: channel, Data0: note, Data1: velocity}
}

// NewNoteOff creates a Note Off message.
func NewNoteOff(channel, note, velocity uint8) Message {
	return Message{Kind: NoteOff, Channel: channel, Data0: note, Data1: velocity}
}

// NewAftertouch creates a polyphonic key pressure message.
func NewAftertouch(channel, note, pressure uint8) Message {
	return Message{Kind: Aftertouch, Channel: channel, Data0: note, Data1: pressure}
}

// NewControlChange creates a Control Change message.
func NewControlChange(channel, controller, value uint8) Message {
	return Message{Kind: ControlChange, Channel: channel, Data0: controller, Data1: value}
}

// NewProgramChange creates a Program Change message.
func NewProgramChange(channel, program uint8) Message {
	return Message{Kind: ProgramChange, Channel: channel, Data0: program}
}

// NewChannelPressure creates a channel pressure message.
func NewChannelPressure(channel, pressure uint8) Message {
	return Message{Kind: ChannelPressure, Channel: channel, Data0: pressure}
}

// NewPitchBend creates a Pitch Bend message. value is in -8192..8191 and is
// clamped to that range.
func NewPitchBend(channel uint8, value int) Message {
	lsb, msb := EncodeBend(value)
	return Message{Kind: PitchBend, Channel: channel, Data0: lsb, Data1: msb}
}

// NewSongPosition creates a Song Position Pointer message from a 14-bit beat count.
func NewSongPosition(beats uint16) Message {
	return Message{Kind: SongPosition, Data0: uint8(beats & dataMask), Data1: uint8(beats>>7) & dataMask}
}

// NewSongSelect creates a Song Select message.
func NewSongSelect(song uint8) Message {
	return Message{Kind: SongSelect, Data0: song}
}

// NewBusSelect creates a Bus Select message.
func NewBusSelect(bus uint8) Message {
	return Message{Kind: BusSelect, Data0: bus}
}

// System creates a message without data bytes, such as Clock or Start.
func System(kind Kind) Message {
	return Message{Kind: kind}
}

// Note returns the note number of note and aftertouch messages.
func (m Message) Note() uint8 { return m.Data0 }

// Velocity returns the velocity of note messages.
func (m Message) Velocity() uint8 { return m.Data1 }

// Value returns the single data value of one-byte messages such as
// ProgramChange and ChannelPressure, or the controller value of a
// ControlChange.
func (m Message) Value() uint8 {
	if m.Kind.Arity() == 2 {
		return m.Data1
	}
	return m.Data0
}

// Bend returns the signed 14-bit pitch bend value.
func (m Message) Bend() int {
	return DecodeBend(m.Data0, m.Data1)
}

// EncodeBend converts a pitch bend value into its low and high 7-bit halves.
func EncodeBend(value int) (lsb, msb uint8) {
	if value < bendMin {
		value = bendMin
	} else if value > bendMax {
		value = bendMax
	}
	v := value + bendCenter
	return uint8(v & dataMask), uint8((v >> 7) & dataMask)
}

// DecodeBend converts the two 7-bit halves of a pitch bend back into a value
// in -8192..8191.
func DecodeBend(lsb, msb uint8) int {
	return (int(msb&dataMask)<<7 | int(lsb&dataMask)) - bendCenter
}

// Status returns the status byte for m.
func (m Message) Status() byte {
	if m.Kind.IsChannel() {
		return byte(m.Kind) | (m.Channel & channelMask)
	}
	return byte(m.Kind)
}

// AppendTo appends the wire encoding of m to dst.
func (m Message) AppendTo(dst []byte) []byte {
	dst = append(dst, m.Status())
	switch m.Kind.Arity() {
	case 2:
		dst = append(dst, m.Data0, m.Data1)
	case 1:
		dst = append(dst, m.Data0)
	}
	return dst
}

// Bytes returns the wire encoding of m.
func (m Message) Bytes() []byte {
	return m.AppendTo(make([]byte, 0, 3))
}

// Validate checks that m can be put on the wire unchanged.
func (m Message) Validate() error {
	if !m.Kind.Valid() {
		return &InvalidMessageError{Message: m, Reason: "unknown kind"}
	}
	if m.Kind.IsChannel() && m.Channel > channelMask {
		return &InvalidMessageError{Message: m, Reason: fmt.Sprintf("channel %d out of range 0-15", m.Channel)}
	}
	n := m.Kind.Arity()
	if n >= 1 && m.Data0 > dataMask {
		return &InvalidMessageError{Message: m, Reason: fmt.Sprintf("data0 %d out of range 0-127", m.Data0)}
	}
	if n == 2 && m.Data1 > dataMask {
		return &InvalidMessageError{Message: m, Reason: fmt.Sprintf("data1 %d out of range 0-127", m.Data1)}
	}
	return nil
}

// String renders m as "Message(NoteOn ch:3 32 111)". Kinds without a channel
// print "ch:-" and kinds without data bytes print only their name.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString("Message(")
	b.WriteString(m.Kind.String())

	n := m.Kind.Arity()
	if n > 0 {
		b.WriteString(" ch:")
		if m.Kind.IsChannel() {
			b.WriteString(strconv.Itoa(int(m.Channel)))
		} else {
			b.WriteString("-")
		}
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(int(m.Data0)))
		if n == 2 {
			b.WriteString(" ")
			b.WriteString(strconv.Itoa(int(m.Data1)))
		}
	}
	b.WriteString(")")
	return b.String()
}
