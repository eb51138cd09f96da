// Package midi implements the MIDI 1.0 wire codec: a receive state machine
// that frames messages from a byte stream and an encoder for the reverse.
package midi

import (
	"fmt"
	"strings"
)

// Kind identifies a MIDI message type. Its value is the status byte with the
// channel nibble cleared for channel messages.
type Kind uint8

const (
	NoteOff         Kind = 0x80
	NoteOn          Kind = 0x90
	Aftertouch      Kind = 0xA0
	ControlChange   Kind = 0xB0
	ProgramChange   Kind = 0xC0
	ChannelPressure Kind = 0xD0
	PitchBend       Kind = 0xE0
	SystemExclusive Kind = 0xF0
	SongPosition    Kind = 0xF2
	SongSelect      Kind = 0xF3
	BusSelect       Kind = 0xF5
	TuneRequest     Kind = 0xF6
	SysexEnd        Kind = 0xF7
	Clock           Kind = 0xF8
	Tick            Kind = 0xF9
	Start           Kind = 0xFA
	Continue        Kind = 0xFB
	Stop            Kind = 0xFC
	ActiveSensing   Kind = 0xFE
	SystemReset     Kind = 0xFF
)

const (
	statusMask  = 0xF0
	channelMask = 0x0F
	dataMask    = 0x7F
	statusBit   = 0x80

	// first status byte that is not a channel message
	systemStatus = 0xF0
	// first system real-time status byte
	realtimeStatus = 0xF8

	bendCenter = 8192
	bendMin    = -8192
	bendMax    = 8191
)

// kindInfo describes the fixed properties of a Kind
type kindInfo struct {
	name  string
	arity int
	known bool
}

// kinds is indexed by Kind. Entries with known == false are not part of the
// enumeration (0xF1, 0xF4, 0xFD and every value below 0x80).
var kinds = [256]kindInfo{
	NoteOff:         {name: "NoteOff", arity: 2, known: true},
	NoteOn:          {name: "NoteOn", arity: 2, known: true},
	Aftertouch:      {name: "Aftertouch", arity: 2, known: true},
	ControlChange:   {name: "ControlChange", arity: 2, known: true},
	ProgramChange:   {name: "ProgramChange", arity: 1, known: true},
	ChannelPressure: {name: "ChannelPressure", arity: 1, known: true},
	PitchBend:       {name: "PitchBend", arity: 2, known: true},
	SystemExclusive: {name: "SystemExclusive", arity: 0, known: true},
	SongPosition:    {name: "SongPosition", arity: 2, known: true},
	SongSelect:      {name: "SongSelect", arity: 1, known: true},
	BusSelect:       {name: "BusSelect", arity: 1, known: true},
	TuneRequest:     {name: "TuneRequest", arity: 0, known: true},
	SysexEnd:        {name: "SysexEnd", arity: 0, known: true},
	Clock:           {name: "Clock", arity: 0, known: true},
	Tick:            {name: "Tick", arity: 0, known: true},
	Start:           {name: "Start", arity: 0, known: true},
	Continue:        {name: "Continue", arity: 0, known: true},
	Stop:            {name: "Stop", arity: 0, known: true},
	ActiveSensing:   {name: "ActiveSensing", arity: 0, known: true},
	SystemReset:     {name: "SystemReset", arity: 0, known: true},
}

// aliases accepted by ParseKind in addition to the canonical names
var kindAliases = map[string]Kind{
	"cc":         ControlChange,
	"sysex":      SystemExclusive,
	"pc":         ProgramChange,
	"pitchwheel": PitchBend,
}

// Arity returns the number of data bytes that follow the status byte.
func (k Kind) Arity() int {
	return kinds[k].arity
}

// IsChannel reports whether messages of this kind carry a channel.
func (k Kind) IsChannel() bool {
	return k.Valid() && IsChannelStatus(byte(k))
}

// IsRealtime reports whether k is a system real-time kind.
func (k Kind) IsRealtime() bool {
	return k.Valid() && byte(k) >= realtimeStatus
}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	return kinds[k].known
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(0x%02X)", uint8(k))
	}
	return kinds[k].name
}

// IsChannelStatus reports whether status is the status byte of a channel
// message (0x80 through 0xEF).
func IsChannelStatus(status byte) bool {
	return status >= statusBit && status < systemStatus
}

// KindOf splits a status byte into its kind. ok is false when status is a
// data byte or a status byte outside the enumeration.
func KindOf(status byte) (kind Kind, ok bool) {
	if IsChannelStatus(status) {
		status &= statusMask
	}
	k := Kind(status)
	return k, k.Valid()
}

// ParseKind looks up a kind by name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k, ok := kindAliases[n]; ok {
		return k, nil
	}
	for i := range kinds {
		if kinds[i].known && strings.ToLower(kinds[i].name) == n {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message kind: %q", name)
}

// Kinds returns every enumerated kind in status byte order.
func Kinds() []Kind {
	out := make([]Kind, 0, 20)
	for i := range kinds {
		if kinds[i].known {
			out = append(out, Kind(i))
		}
	}
	return out
}
