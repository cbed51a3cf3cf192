// Package backend multiplexes many client requests onto one long-lived
// socket per backend endpoint, with a FIFO of reply handles so responses
// are matched to requests in send order.
package backend

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	uatomic "go.uber.org/atomic"

	"umproxy/internal/metrics"
	"umproxy/internal/resp"
)

// ReplyHandle is returned by Send and becomes ready when the matched
// reply for that request is parsed off the backend socket, or when the
// connection is lost or closed before that happens.
type ReplyHandle struct {
	done  chan struct{}
	value resp.Value
	err   error
}

func newHandle() *ReplyHandle {
	return &ReplyHandle{done: make(chan struct{})}
}

func (h *ReplyHandle) complete(v resp.Value, err error) {
	h.value = v
	h.err = err
	close(h.done)
}

// Done returns a channel closed once the handle is ready.
func (h *ReplyHandle) Done() <-chan struct{} { return h.done }

// Value returns the parsed reply, or an error if the request failed
// before a reply was matched. Must only be called after Done() fires.
func (h *ReplyHandle) Value() (resp.Value, error) { return h.value, h.err }

// Config carries the per-endpoint connection knobs.
type Config struct {
	ConnectTimeout time.Duration
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	MaxOutstanding int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 2 * time.Second,
		BackoffMin:     50 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		MaxOutstanding: 1000,
	}
}

// Conn is the single multiplexed connection to one backend endpoint. All
// writes go through Send under writeMu; exactly one reader goroutine per
// live socket generation owns reply delivery, so the decode path takes no
// locks.
type Conn struct {
	endpoint string
	cfg      Config
	logger   *logrus.Logger

	writeMu sync.Mutex
	nc      net.Conn
	w       *resp.Writer

	fifoMu sync.Mutex
	fifo   []*ReplyHandle

	backoff    time.Duration
	lastDialAt time.Time

	closed uatomic.Bool
}

// NewConn constructs a Conn; the socket is dialed lazily on first Send.
func NewConn(endpoint string, cfg Config, logger *logrus.Logger) *Conn {
	return &Conn{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logger,
		backoff:  cfg.BackoffMin,
	}
}

// Outstanding reports the current FIFO depth, for metrics/overload checks.
func (c *Conn) Outstanding() int {
	c.fifoMu.Lock()
	defer c.fifoMu.Unlock()
	return len(c.fifo)
}

// Send encodes cmd, writes it to the backend, and returns a handle that
// becomes ready when the matching reply is parsed. Dials lazily,
// respecting the exponential backoff window since the last dial attempt.
func (c *Conn) Send(ctx context.Context, cmd resp.Value) (*ReplyHandle, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.fifoMu.Lock()
	depth := len(c.fifo)
	c.fifoMu.Unlock()
	if c.cfg.MaxOutstanding > 0 && depth >= c.cfg.MaxOutstanding {
		return nil, ErrOverloaded
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.nc == nil {
		if err := c.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	handle := newHandle()
	c.fifoMu.Lock()
	c.fifo = append(c.fifo, handle)
	depth = len(c.fifo)
	c.fifoMu.Unlock()
	metrics.SetBackendOutstanding(c.endpoint, depth)

	if err := c.w.WriteValue(cmd); err != nil {
		c.failConnLocked(err)
		return nil, ErrUnavailable
	}
	if err := c.w.Flush(); err != nil {
		c.failConnLocked(err)
		return nil, ErrUnavailable
	}

	return handle, nil
}

// dialLocked must be called with writeMu held. It enforces the backoff
// window before attempting a fresh TCP connect.
func (c *Conn) dialLocked(ctx context.Context) error {
	if wait := c.backoff - time.Since(c.lastDialAt); !c.lastDialAt.IsZero() && wait > 0 {
		return ErrUnavailable
	}

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", c.endpoint)
	c.lastDialAt = time.Now()
	if err != nil {
		c.backoff *= 2
		if c.backoff > c.cfg.BackoffMax {
			c.backoff = c.cfg.BackoffMax
		}
		c.logger.WithFields(logrus.Fields{
			"backend": c.endpoint,
			"backoff": c.backoff,
		}).WithError(err).Warn("backend dial failed")
		return ErrUnavailable
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	c.backoff = c.cfg.BackoffMin
	c.nc = nc
	c.w = resp.NewWriter(bufio.NewWriter(nc))
	go c.readLoop(nc)
	return nil
}

// readLoop owns reply delivery for one socket generation: it parses
// frames and completes the FIFO head in order. Backend replies arrive in
// send order, so the head always matches the next frame.
func (c *Conn) readLoop(nc net.Conn) {
	r := resp.NewReader(bufio.NewReader(nc))
	for {
		v, err := r.ReadValue()
		if err != nil {
			c.onReadError(nc, err)
			return
		}
		c.completeHead(v, nil)
	}
}

func (c *Conn) completeHead(v resp.Value, err error) {
	c.fifoMu.Lock()
	if len(c.fifo) == 0 {
		c.fifoMu.Unlock()
		return
	}
	h := c.fifo[0]
	c.fifo = c.fifo[1:]
	depth := len(c.fifo)
	c.fifoMu.Unlock()
	metrics.SetBackendOutstanding(c.endpoint, depth)
	h.complete(v, err)
}

func (c *Conn) onReadError(nc net.Conn, err error) {
	c.logger.WithFields(logrus.Fields{"backend": c.endpoint}).WithError(err).Warn("backend read failed, reconnecting")
	c.writeMu.Lock()
	if c.nc == nc {
		c.failConnLocked(err)
	}
	c.writeMu.Unlock()
}

// failConnLocked must be called with writeMu held. It closes the current
// socket, if any, and fails every outstanding handle so clients see an
// error reply rather than hang.
func (c *Conn) failConnLocked(_ error) {
	if c.nc != nil {
		_ = c.nc.Close()
		c.nc = nil
		c.w = nil
	}

	c.fifoMu.Lock()
	pending := c.fifo
	c.fifo = nil
	c.fifoMu.Unlock()
	metrics.SetBackendOutstanding(c.endpoint, 0)

	for _, h := range pending {
		h.complete(resp.Value{}, ErrUnavailable)
	}
}

// Close drains and closes the connection, failing all outstanding
// handles with ErrClosed. Further Sends return ErrClosed.
func (c *Conn) Close() {
	c.closed.Store(true)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.nc != nil {
		_ = c.nc.Close()
		c.nc = nil
		c.w = nil
	}

	c.fifoMu.Lock()
	pending := c.fifo
	c.fifo = nil
	c.fifoMu.Unlock()
	metrics.SetBackendOutstanding(c.endpoint, 0)

	for _, h := range pending {
		h.complete(resp.Value{}, ErrClosed)
	}
}
