package port

import "sync"

// Loopback is an in-memory Port. Bytes written to it, or fed with Feed, are
// returned by Read in order. It is safe for concurrent use.
type Loopback struct {
	name string

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewLoopback creates an empty loopback port
func NewLoopback(name string) *Loopback {
	return &Loopback{name: name}
}

func (l *Loopback) Name() string {
	return l.name
}

// Read copies pending bytes into p. It returns (0, nil) when nothing is pending.
func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	if len(l.buf) == 0 {
		l.buf = nil
	}
	return n, nil
}

func (l *Loopback) Write(p []byte) (int, error) {
	if err := l.Feed(p...); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Feed queues bytes for reading
func (l *Loopback) Feed(b ...byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.buf = append(l.buf, b...)
	return nil
}

// Pending returns the number of unread bytes
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.buf = nil
	return nil
}
