package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/PixPMusic/midiwire/internal/port"
	"github.com/google/uuid"
)

// EndpointConfig holds configuration for a single MIDI endpoint
type EndpointConfig struct {
	ID            string    `json:"id"`              // Unique identifier
	Name          string    `json:"name"`            // User-friendly name
	Type          port.Type `json:"type"`            // driver, serial or loopback
	InPort        string    `json:"in_port"`         // MIDI input port name or serial device path
	OutPort       string    `json:"out_port"`        // MIDI output port name
	BaudRate      int       `json:"baud_rate"`       // serial only
	ReadTimeoutMS int       `json:"read_timeout_ms"` // serial only
	RunningStatus bool      `json:"running_status"`
	SkipSysEx     bool      `json:"skip_sysex"`
}

// NewEndpointConfig creates a new endpoint config with a generated ID
func NewEndpointConfig() EndpointConfig {
	return EndpointConfig{
		ID:   uuid.New().String(),
		Name: "New Endpoint",
		Type: port.TypeDriver,
	}
}

// PortOptions converts the endpoint to options for port.Open
func (e EndpointConfig) PortOptions() port.Options {
	return port.Options{
		Type:        e.Type,
		Name:        e.Name,
		InPort:      e.InPort,
		OutPort:     e.OutPort,
		BaudRate:    e.BaudRate,
		ReadTimeout: time.Duration(e.ReadTimeoutMS) * time.Millisecond,
	}
}

// ReceiverOptions returns the receiver options selected for the endpoint
func (e EndpointConfig) ReceiverOptions() []midi.ReceiverOption {
	return []midi.ReceiverOption{
		midi.WithRunningStatus(e.RunningStatus),
		midi.WithSysExSkip(e.SkipSysEx),
	}
}

// RouteConfig forwards messages from one endpoint to another
type RouteConfig struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	From    string   `json:"from"`              // endpoint id or name
	To      string   `json:"to"`                // endpoint id or name
	Channel *int     `json:"channel,omitempty"` // 0-15, nil keeps the source channel
	Kinds   []string `json:"kinds,omitempty"`   // empty forwards every kind
}

// NewRouteConfig creates a new route between two endpoints with a generated ID
func NewRouteConfig(from, to string) RouteConfig {
	return RouteConfig{
		ID:   uuid.New().String(),
		Name: from + " -> " + to,
		From: from,
		To:   to,
	}
}

// ParseKinds resolves the route's kind filter
func (r RouteConfig) ParseKinds() ([]midi.Kind, error) {
	kinds := make([]midi.Kind, 0, len(r.Kinds))
	for _, name := range r.Kinds {
		k, err := midi.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", r.Name, err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Config holds application configuration
type Config struct {
	LogLevel  string           `json:"log_level"`
	Endpoints []EndpointConfig `json:"endpoints"`
	Routes    []RouteConfig    `json:"routes"`
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "midiwire"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Default returns an empty configuration
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Endpoints: []EndpointConfig{},
		Routes:    []RouteConfig{},
	}
}

// Load reads the config from the default location, returning defaults if not found
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile reads the config at path, returning defaults if it does not exist
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Ensure slices are not nil
	if cfg.Endpoints == nil {
		cfg.Endpoints = []EndpointConfig{}
	}
	if cfg.Routes == nil {
		cfg.Routes = []RouteConfig{}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for i := range cfg.Endpoints {
		if cfg.Endpoints[i].ID == "" {
			cfg.Endpoints[i].ID = uuid.New().String()
		}
	}
	for i := range cfg.Routes {
		if cfg.Routes[i].ID == "" {
			cfg.Routes[i].ID = uuid.New().String()
		}
	}

	return &cfg, nil
}

// Save writes the config to the default location
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(configPath)
}

// SaveFile writes the config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindEndpoint returns an endpoint by ID or name, or nil if not found
func (c *Config) FindEndpoint(idOrName string) *EndpointConfig {
	for i := range c.Endpoints {
		if c.Endpoints[i].ID == idOrName {
			return &c.Endpoints[i]
		}
	}
	for i := range c.Endpoints {
		if c.Endpoints[i].Name == idOrName {
			return &c.Endpoints[i]
		}
	}
	return nil
}

// AddEndpoint adds a new endpoint to the config
func (c *Config) AddEndpoint(endpoint EndpointConfig) {
	c.Endpoints = append(c.Endpoints, endpoint)
}

// RemoveEndpoint removes an endpoint by ID along with the routes that use it
func (c *Config) RemoveEndpoint(id string) {
	for i, e := range c.Endpoints {
		if e.ID != id {
			continue
		}
		c.Endpoints = append(c.Endpoints[:i], c.Endpoints[i+1:]...)

		routes := c.Routes[:0]
		for _, r := range c.Routes {
			if r.From != e.ID && r.From != e.Name && r.To != e.ID && r.To != e.Name {
				routes = append(routes, r)
			}
		}
		c.Routes = routes
		return
	}
}

// AddRoute adds a new route to the config
func (c *Config) AddRoute(route RouteConfig) {
	c.Routes = append(c.Routes, route)
}

// Validate reports every problem found in the config
func (c *Config) Validate() error {
	var errs []error

	names := make(map[string]bool, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("endpoint %s: missing name", e.ID))
		} else if names[e.Name] {
			errs = append(errs, fmt.Errorf("endpoint %s: duplicate name", e.Name))
		}
		names[e.Name] = true

		switch e.Type {
		case port.TypeDriver, "":
			if e.InPort == "" && e.OutPort == "" {
				errs = append(errs, fmt.Errorf("endpoint %s: no input or output port", e.Name))
			}
		case port.TypeSerial:
			if e.InPort == "" {
				errs = append(errs, fmt.Errorf("endpoint %s: no serial device", e.Name))
			}
		case port.TypeLoopback:
		default:
			errs = append(errs, fmt.Errorf("endpoint %s: unknown type %q", e.Name, e.Type))
		}
	}

	for _, r := range c.Routes {
		if c.FindEndpoint(r.From) == nil {
			errs = append(errs, fmt.Errorf("route %s: unknown source %q", r.Name, r.From))
		}
		if c.FindEndpoint(r.To) == nil {
			errs = append(errs, fmt.Errorf("route %s: unknown destination %q", r.Name, r.To))
		}
		if r.Channel != nil && (*r.Channel < 0 || *r.Channel > 15) {
			errs = append(errs, fmt.Errorf("route %s: channel %d out of range", r.Name, *r.Channel))
		}
		if _, err := r.ParseKinds(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
