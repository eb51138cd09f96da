// Package bridge forwards MIDI messages between ports. Each endpoint pairs a
// port with a Receiver and a Sender; routes pick which messages travel from
// one endpoint to another.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/PixPMusic/midiwire/internal/config"
	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/PixPMusic/midiwire/internal/port"
	"github.com/sirupsen/logrus"
)

// Endpoint is an open port with its codec state
type Endpoint struct {
	ID       string
	Name     string
	Receiver *midi.Receiver
	Sender   *midi.Sender
	Closer   io.Closer
}

// NewEndpoint wraps an open port
func NewEndpoint(id, name string, p port.Port, opts ...midi.ReceiverOption) *Endpoint {
	return &Endpoint{
		ID:       id,
		Name:     name,
		Receiver: midi.NewReceiver(p, opts...),
		Sender:   midi.NewSender(p),
		Closer:   p,
	}
}

// Route forwards messages from one endpoint to another
type Route struct {
	ID      string
	Name    string
	From    string
	To      string
	Channel *uint8      // rewrite channel messages to this channel
	Kinds   []midi.Kind // empty accepts every kind
}

// Accepts reports whether the route forwards m
func (r *Route) Accepts(m midi.Message) bool {
	return len(r.Kinds) == 0 || slices.Contains(r.Kinds, m.Kind)
}

// Bridge polls source endpoints and forwards what they receive
type Bridge struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
	order     []string
	routes    []*Route
	log       logrus.FieldLogger
	forwarded uint64
}

// New creates an empty bridge
func New(logger logrus.FieldLogger) *Bridge {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bridge{
		endpoints: make(map[string]*Endpoint),
		log:       logger,
	}
}

// AddEndpoint registers an endpoint. IDs and names must be unique.
func (b *Bridge) AddEndpoint(e *Endpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e == nil {
		return fmt.Errorf("endpoint is nil")
	}
	if _, ok := b.endpoints[e.ID]; ok {
		return fmt.Errorf("duplicate endpoint: %s", e.ID)
	}
	for _, other := range b.endpoints {
		if other.Name == e.Name {
			return fmt.Errorf("duplicate endpoint name: %s", e.Name)
		}
	}
	b.endpoints[e.ID] = e
	b.order = append(b.order, e.ID)
	return nil
}

// AddRoute registers a route. Both ends must already be registered.
func (b *Bridge) AddRoute(r *Route) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r == nil {
		return fmt.Errorf("route is nil")
	}
	if _, ok := b.endpoints[r.From]; !ok {
		return fmt.Errorf("route %s: unknown source endpoint: %s", r.Name, r.From)
	}
	if _, ok := b.endpoints[r.To]; !ok {
		return fmt.Errorf("route %s: unknown destination endpoint: %s", r.Name, r.To)
	}
	if r.Channel != nil && *r.Channel > 15 {
		return fmt.Errorf("route %s: channel %d out of range", r.Name, *r.Channel)
	}
	b.routes = append(b.routes, r)
	return nil
}

// Forwarded returns the number of messages delivered so far
func (b *Bridge) Forwarded() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forwarded
}

// Step receives at most one message from every endpoint that is the source of
// a route and forwards it along each route accepting it. It returns the number
// of messages received. Send failures are logged and do not stop the step;
// receive failures are joined into the returned error.
func (b *Bridge) Step() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		received int
		errs     []error
	)
	for _, id := range b.order {
		routes := b.routesFrom(id)
		if len(routes) == 0 {
			continue
		}
		src := b.endpoints[id]

		msg, ok, err := src.Receiver.Receive()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to receive from %s: %w", src.Name, err))
			continue
		}
		if !ok {
			continue
		}
		received++

		for _, r := range routes {
			if !r.Accepts(msg) {
				continue
			}
			b.forward(src, r, msg)
		}
	}
	return received, errors.Join(errs...)
}

func (b *Bridge) routesFrom(id string) []*Route {
	var out []*Route
	for _, r := range b.routes {
		if r.From == id {
			out = append(out, r)
		}
	}
	return out
}

func (b *Bridge) forward(src *Endpoint, r *Route, msg midi.Message) {
	dst := b.endpoints[r.To]

	var opts []midi.SendOption
	if r.Channel != nil {
		opts = append(opts, midi.WithChannel(*r.Channel))
	}
	if err := dst.Sender.Send(&msg, opts...); err != nil {
		b.log.WithFields(logrus.Fields{
			"route":   r.Name,
			"from":    src.Name,
			"to":      dst.Name,
			"message": msg.String(),
		}).WithError(err).Warn("failed to forward message")
		return
	}
	b.forwarded++
	b.log.WithFields(logrus.Fields{
		"route":   r.Name,
		"message": msg.String(),
	}).Debug("forwarded")
}

// Run calls Step until ctx is done, sleeping idle whenever a step receives
// nothing. Receive errors are logged.
func (b *Bridge) Run(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		idle = time.Millisecond
	}
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := b.Step()
		if err != nil {
			b.log.WithError(err).Warn("receive failed")
		}
		if n > 0 {
			continue
		}

		timer.Reset(idle)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ErrorCounts returns the receiver error count of every endpoint by name
func (b *Bridge) ErrorCounts() map[string]uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[string]uint64, len(b.endpoints))
	for _, e := range b.endpoints {
		counts[e.Name] = e.Receiver.ErrorCount()
	}
	return counts
}

// Close closes every endpoint
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, id := range b.order {
		e := b.endpoints[id]
		if e.Closer == nil {
			continue
		}
		if err := e.Closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Opener opens the port described by an endpoint config
type Opener func(config.EndpointConfig) (port.Port, error)

// ManagerOpener opens endpoints through port.Open with the given manager
func ManagerOpener(m *port.Manager) Opener {
	return func(e config.EndpointConfig) (port.Port, error) {
		return port.Open(m, e.PortOptions())
	}
}

// FromConfig opens every endpoint used by a route in cfg and builds a bridge.
// Endpoints already opened are closed if a later one fails.
func FromConfig(cfg *config.Config, open Opener, logger logrus.FieldLogger) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := New(logger)
	opened := func(ec *config.EndpointConfig) error {
		if _, ok := b.endpoints[ec.ID]; ok {
			return nil
		}
		p, err := open(*ec)
		if err != nil {
			return fmt.Errorf("failed to open endpoint %s: %w", ec.Name, err)
		}
		opts := append(ec.ReceiverOptions(), midi.WithLogger(b.log.WithField("endpoint", ec.Name)))
		return b.AddEndpoint(NewEndpoint(ec.ID, ec.Name, p, opts...))
	}

	for _, rc := range cfg.Routes {
		from := cfg.FindEndpoint(rc.From)
		to := cfg.FindEndpoint(rc.To)
		if err := opened(from); err != nil {
			_ = b.Close()
			return nil, err
		}
		if err := opened(to); err != nil {
			_ = b.Close()
			return nil, err
		}

		kinds, err := rc.ParseKinds()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		r := &Route{ID: rc.ID, Name: rc.Name, From: from.ID, To: to.ID, Kinds: kinds}
		if rc.Channel != nil {
			ch := uint8(*rc.Channel)
			r.Channel = &ch
		}
		if err := b.AddRoute(r); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}
