// Package monitor is a terminal view of the messages arriving on a port.
package monitor

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/PixPMusic/midiwire/internal/midi"
)

const (
	DefaultHistory  = 200
	DefaultInterval = 5 * time.Millisecond
	// drainLimit bounds how many messages a single tick pulls from the receiver
	drainLimit = 64
	// readLimit bounds the Receive calls of a single tick, skipped SysEx included
	readLimit = 4096
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	channelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	realtimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
)

// TickMsg asks the model to poll the receiver
type TickMsg time.Time

// Entry is one received message
type Entry struct {
	At      time.Time
	Message midi.Message
}

type Model struct {
	Receiver *midi.Receiver
	Name     string
	History  int
	Interval time.Duration

	entries  []Entry
	total    uint64
	lastErr  error
	quitting bool
	now      func() time.Time
}

func NewModel(name string, r *midi.Receiver) Model {
	return Model{
		Receiver: r,
		Name:     name,
		History:  DefaultHistory,
		Interval: DefaultInterval,
		now:      time.Now,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "c":
			m.entries = nil
		}

	case TickMsg:
		m.poll()
		return m, m.tick()
	}
	return m, nil
}

// poll drains what the receiver has ready
func (m *Model) poll() {
	for msgs, reads := 0, 0; msgs < drainLimit && reads < readLimit; reads++ {
		before := m.Receiver.BytesRead()
		msg, ok, err := m.Receiver.Receive()
		if err != nil {
			m.lastErr = err
			return
		}
		if !ok {
			// skipped or discarded input may have more bytes behind it
			if m.Receiver.BytesRead() > before {
				continue
			}
			return
		}
		msgs++
		m.total++
		m.entries = append(m.entries, Entry{At: m.now(), Message: msg})
		if m.History > 0 && len(m.entries) > m.History {
			m.entries = m.entries[len(m.entries)-m.History:]
		}
	}
}

// Entries returns the retained history, oldest first
func (m Model) Entries() []Entry {
	return m.entries
}

// Total returns the number of messages received
func (m Model) Total() uint64 {
	return m.total
}

func styleFor(k midi.Kind) lipgloss.Style {
	switch {
	case k.IsChannel():
		return channelStyle
	case k.IsRealtime():
		return realtimeStyle
	default:
		return systemStyle
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("midiwire monitor: " + m.Name))
	b.WriteString("\n\n")

	for _, e := range m.entries {
		b.WriteString(statusStyle.Render(e.At.Format("15:04:05.000")))
		b.WriteString("  ")
		b.WriteString(styleFor(e.Message.Kind).Render(e.Message.String()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf("received: %d  errors: %d", m.total, m.Receiver.ErrorCount())))
	if m.lastErr != nil {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(m.lastErr.Error()))
	}
	b.WriteString("\n")
	b.WriteString(statusStyle.Render("q: quit  c: clear"))
	b.WriteString("\n")
	return b.String()
}
