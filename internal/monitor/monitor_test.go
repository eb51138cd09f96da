package monitor

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/PixPMusic/midiwire/internal/port"
)

func newTestModel(t *testing.T) (Model, *port.Loopback) {
	t.Helper()
	l := port.NewLoopback("test")
	m := NewModel("test", midi.NewReceiver(l))
	m.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return m, l
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestInitSchedulesTick(t *testing.T) {
	m, _ := newTestModel(t)
	assert.NotNil(t, m.Init())
}

func TestTickDrainsReceiver(t *testing.T) {
	m, l := newTestModel(t)
	require.NoError(t, l.Feed(0x93, 32, 111, 0x40, 0xF8, 0xF2, 1, 1))

	m, cmd := update(t, m, TickMsg(time.Now()))
	assert.NotNil(t, cmd)

	require.Len(t, m.Entries(), 3)
	assert.Equal(t, midi.NewNoteOn(3, 32, 111), m.Entries()[0].Message)
	assert.Equal(t, midi.System(midi.Clock), m.Entries()[1].Message)
	assert.Equal(t, midi.NewSongPosition(129), m.Entries()[2].Message)
	assert.Equal(t, uint64(3), m.Total())

	view := m.View()
	assert.Contains(t, view, "Message(NoteOn ch:3 32 111)")
	assert.Contains(t, view, "Message(Clock)")
	assert.Contains(t, view, "Message(SongPosition ch:- 1 1)")
	assert.Contains(t, view, "received: 3  errors: 1")
}

func TestHistoryIsBounded(t *testing.T) {
	m, l := newTestModel(t)
	m.History = 2
	require.NoError(t, l.Feed(0xC0, 1, 0xC0, 2, 0xC0, 3))

	m, _ = update(t, m, TickMsg(time.Now()))
	require.Len(t, m.Entries(), 2)
	assert.Equal(t, midi.NewProgramChange(0, 2), m.Entries()[0].Message)
	assert.Equal(t, midi.NewProgramChange(0, 3), m.Entries()[1].Message)
	assert.Equal(t, uint64(3), m.Total())
}

func TestTickSkipsSysExDump(t *testing.T) {
	l := port.NewLoopback("test")
	m := NewModel("test", midi.NewReceiver(l, midi.WithSysExSkip(true)))

	dump := []byte{0xF0}
	for i := 0; i < 1024; i++ {
		dump = append(dump, byte(i&0x7F))
	}
	dump = append(dump, 0xF7, 0xC0, 4)
	require.NoError(t, l.Feed(dump...))

	m, _ = update(t, m, TickMsg(time.Now()))
	require.Len(t, m.Entries(), 3)
	assert.Equal(t, midi.System(midi.SystemExclusive), m.Entries()[0].Message)
	assert.Equal(t, midi.System(midi.SysexEnd), m.Entries()[1].Message)
	assert.Equal(t, midi.NewProgramChange(0, 4), m.Entries()[2].Message)
	assert.Zero(t, l.Pending())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("unplugged") }

func TestTransportErrorShown(t *testing.T) {
	m := NewModel("dead", midi.NewReceiver(failingReader{}))
	m, _ = update(t, m, TickMsg(time.Now()))
	assert.Contains(t, m.View(), "unplugged")
}

func TestKeys(t *testing.T) {
	m, l := newTestModel(t)
	require.NoError(t, l.Feed(0xFA))
	m, _ = update(t, m, TickMsg(time.Now()))
	require.Len(t, m.Entries(), 1)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Empty(t, m.Entries())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}
