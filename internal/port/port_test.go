package port

import (
	"errors"
	"testing"
	"time"

	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.bug.st/serial"
)

type fakeIn struct {
	open    bool
	stopped bool
	onMsg   func([]byte, int32)
	config  drivers.ListenConfig
}

func (f *fakeIn) Open() error             { f.open = true; return nil }
func (f *fakeIn) Close() error            { f.open = false; return nil }
func (f *fakeIn) IsOpen() bool            { return f.open }
func (f *fakeIn) Number() int             { return 0 }
func (f *fakeIn) String() string          { return "fake in" }
func (f *fakeIn) Underlying() interface{} { return nil }
func (f *fakeIn) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error) {
	f.onMsg = onMsg
	f.config = config
	return func() { f.stopped = true }, nil
}

type fakeOut struct {
	open bool
	sent [][]byte
	err  error
}

func (f *fakeOut) Open() error             { f.open = true; return nil }
func (f *fakeOut) Close() error            { f.open = false; return nil }
func (f *fakeOut) IsOpen() bool            { return f.open }
func (f *fakeOut) Number() int             { return 0 }
func (f *fakeOut) String() string          { return "fake out" }
func (f *fakeOut) Underlying() interface{} { return nil }
func (f *fakeOut) Send(data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func TestLoopback(t *testing.T) {
	l := NewLoopback("loop")
	assert.Equal(t, "loop", l.Name())

	buf := make([]byte, 1)
	n, err := l.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = l.Write([]byte{0x90, 60, 100})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, l.Pending())

	for _, want := range []byte{0x90, 60, 100} {
		n, err = l.Read(buf)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, want, buf[0])
	}
	n, err = l.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, l.Close())
	_, err = l.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.Write([]byte{1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopbackCodecRoundTrip(t *testing.T) {
	l := NewLoopback("loop")
	s := midi.NewSender(l)
	r := midi.NewReceiver(l)

	msgs := []midi.Message{midi.NewNoteOn(3, 32, 111), midi.NewProgramChange(0, 33), midi.System(midi.Clock)}
	require.NoError(t, s.SendAll(msgs))

	for _, want := range msgs {
		got, ok, err := r.Receive()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok, err := r.Receive()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriverPort(t *testing.T) {
	in := &fakeIn{}
	out := &fakeOut{}
	p, err := NewDriverPort("dev", in, out, nil)
	require.NoError(t, err)
	assert.True(t, in.open)
	assert.True(t, out.open)
	assert.True(t, in.config.SysEx)

	// driver delivers a message on its own thread
	in.onMsg([]byte{0x91, 60, 100}, 0)
	r := midi.NewReceiver(p)
	msg, ok, err := r.Receive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, midi.NewNoteOn(1, 60, 100), msg)

	s := midi.NewSender(p)
	require.NoError(t, s.SendAll([]midi.Message{midi.NewNoteOn(0, 1, 2), midi.System(midi.Start), midi.NewProgramChange(2, 5)}))
	assert.Equal(t, [][]byte{{0x90, 1, 2}, {0xFA}, {0xC2, 5}}, out.sent)

	require.NoError(t, p.Close())
	assert.True(t, in.stopped)
	assert.False(t, in.open)
	assert.False(t, out.open)
	require.NoError(t, p.Close())

	_, err = p.Write([]byte{0xFA})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDriverPortOneDirection(t *testing.T) {
	p, err := NewDriverPort("out only", nil, &fakeOut{}, nil)
	require.NoError(t, err)
	_, err = p.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrNoInput)

	p, err = NewDriverPort("in only", &fakeIn{}, nil, nil)
	require.NoError(t, err)
	_, err = p.Write([]byte{0xF8})
	assert.ErrorIs(t, err, ErrNoOutput)

	_, err = NewDriverPort("none", nil, nil, nil)
	assert.Error(t, err)
}

func TestDriverPortSendError(t *testing.T) {
	boom := errors.New("device gone")
	p, err := NewDriverPort("dev", nil, &fakeOut{err: boom}, nil)
	require.NoError(t, err)
	n, err := p.Write([]byte{0x90, 1, 2})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestSplitMessages(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want [][]byte
	}{
		{"empty", nil, nil},
		{"mixed", []byte{0x90, 1, 2, 0xF8, 0xC0, 3}, [][]byte{{0x90, 1, 2}, {0xF8}, {0xC0, 3}}},
		{"sysex", []byte{0xF0, 1, 2, 3, 0xF7, 0xFA}, [][]byte{{0xF0, 1, 2, 3, 0xF7}, {0xFA}}},
		{"truncated", []byte{0x90, 1}, [][]byte{{0x90, 1}}},
		{"stray data", []byte{0x01, 0xF1}, [][]byte{{0x01}, {0xF1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitMessages(tt.in))
		})
	}
}

type fakeSerial struct {
	*Loopback
	timeout time.Duration
}

func (f *fakeSerial) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func TestOpenSerial(t *testing.T) {
	var gotPath string
	var gotMode *serial.Mode
	fake := &fakeSerial{Loopback: NewLoopback("uart")}

	orig := openSerial
	openSerial = func(path string, mode *serial.Mode) (serialConn, error) {
		gotPath, gotMode = path, mode
		return fake, nil
	}
	defer func() { openSerial = orig }()

	p, err := OpenSerial("/dev/ttyUSB0", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", gotPath)
	assert.Equal(t, DefaultBaudRate, gotMode.BaudRate)
	assert.Equal(t, DefaultReadTimeout, fake.timeout)
	assert.Equal(t, "/dev/ttyUSB0", p.Name())

	_, err = p.Write([]byte{0xB0, 7, 100})
	require.NoError(t, err)
	r := midi.NewReceiver(p)
	msg, ok, err := r.Receive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, midi.NewControlChange(0, 7, 100), msg)
	require.NoError(t, p.Close())
}

func TestOpenSerialError(t *testing.T) {
	orig := openSerial
	openSerial = func(string, *serial.Mode) (serialConn, error) {
		return nil, errors.New("no such device")
	}
	defer func() { openSerial = orig }()

	_, err := OpenSerial("/dev/null0", 9600, time.Second)
	assert.Error(t, err)
}

func TestOpenFactory(t *testing.T) {
	p, err := Open(nil, Options{Type: TypeLoopback, Name: "loop"})
	require.NoError(t, err)
	assert.IsType(t, &Loopback{}, p)

	_, err = Open(nil, Options{Type: TypeSerial, Name: "uart"})
	assert.Error(t, err)

	_, err = Open(nil, Options{Type: TypeDriver, Name: "dev"})
	assert.Error(t, err)

	_, err = Open(nil, Options{Type: "carrier-pigeon"})
	assert.Error(t, err)
}
