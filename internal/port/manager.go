package port

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.bug.st/serial"
)

// Manager handles MIDI port discovery. A driver must be registered, usually by
// importing gitlab.com/gomidi/midi/v2/drivers/rtmididrv from main.
type Manager struct {
	mu  sync.RWMutex
	log logrus.FieldLogger
}

// NewManager creates a new port manager
func NewManager(logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{log: logger}
}

// Close cleans up the MIDI driver
func (m *Manager) Close() {
	gomidi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ins := gomidi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// ListOutPorts returns the names of available MIDI output ports
func (m *Manager) ListOutPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	outs := gomidi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

// ListSerialPorts returns the serial devices present on the system
func (m *Manager) ListSerialPorts() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return names, nil
}

// GetInPort returns an input port by name
func (m *Manager) GetInPort(name string) (drivers.In, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, in := range gomidi.GetInPorts() {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("input port not found: %s", name)
}

// GetOutPort returns an output port by name
func (m *Manager) GetOutPort(name string) (drivers.Out, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, out := range gomidi.GetOutPorts() {
		if out.String() == name {
			return out, nil
		}
	}
	return nil, fmt.Errorf("output port not found: %s", name)
}

// OpenDriver opens a driver port from an input and an output port name.
// Either name may be empty for a one-directional port.
func (m *Manager) OpenDriver(name, inName, outName string) (*DriverPort, error) {
	var (
		in  drivers.In
		out drivers.Out
		err error
	)
	if inName != "" {
		if in, err = m.GetInPort(inName); err != nil {
			return nil, err
		}
	}
	if outName != "" {
		if out, err = m.GetOutPort(outName); err != nil {
			return nil, err
		}
	}
	if name == "" {
		name = inName
		if name == "" {
			name = outName
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return NewDriverPort(name, in, out, m.log)
}
