package port

import (
	"fmt"
	"time"
)

// Options describes a port to open
type Options struct {
	Type        Type
	Name        string
	InPort      string        // driver input name or serial device path
	OutPort     string        // driver output name, unused for serial
	BaudRate    int           // serial only
	ReadTimeout time.Duration // serial only
}

// Open returns the Port implementation for the given options
func Open(m *Manager, opts Options) (Port, error) {
	switch opts.Type {
	case TypeLoopback:
		return NewLoopback(opts.Name), nil
	case TypeSerial:
		if opts.InPort == "" {
			return nil, fmt.Errorf("serial port %s: no device path", opts.Name)
		}
		p, err := OpenSerial(opts.InPort, opts.BaudRate, opts.ReadTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	case TypeDriver, "":
		if m == nil {
			return nil, fmt.Errorf("driver port %s: no port manager", opts.Name)
		}
		p, err := m.OpenDriver(opts.Name, opts.InPort, opts.OutPort)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown port type: %s", opts.Type)
	}
}
