// Package listener accepts client sockets and binds each to an
// internal/session.Session sharing the process-wide meta store and
// backend pool.
package listener

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"umproxy/internal/auth"
	"umproxy/internal/backend"
	"umproxy/internal/control"
	"umproxy/internal/meta"
	"umproxy/internal/metrics"
	"umproxy/internal/security"
	"umproxy/internal/session"
)

// Config carries the listener's own resource caps plus the Session
// config every accepted connection is built with.
type Config struct {
	Addr        string
	MaxSessions int64
	Session     session.Config
}

// Listener owns the accept loop for one TCP address.
type Listener struct {
	cfg        Config
	store      *meta.Store
	backends   *backend.Pool
	controller *control.Controller
	admission  *auth.Manager
	checker    *security.Checker
	logger     *logrus.Logger

	active int64
	ln     net.Listener
}

// New constructs a Listener bound to the shared proxy state. Listen must
// be called to actually bind the socket.
func New(cfg Config, store *meta.Store, backends *backend.Pool, controller *control.Controller,
	admission *auth.Manager, checker *security.Checker, logger *logrus.Logger) *Listener {

	return &Listener{
		cfg:        cfg,
		store:      store,
		backends:   backends,
		controller: controller,
		admission:  admission,
		checker:    checker,
		logger:     logger,
	}
}

// Listen binds the configured address. Serve must be called afterward to
// run the accept loop.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listener: listen on %s: %w", l.cfg.Addr, err)
	}
	l.ln = ln
	l.logger.WithField("addr", l.cfg.Addr).Info("listener bound")
	return nil
}

// Serve runs the accept loop until the listener is closed, binding each
// accepted connection to its own Session goroutine pair. It returns the
// error that stopped the loop — nil after a clean Close.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if l.cfg.MaxSessions > 0 && atomic.LoadInt64(&l.active) >= l.cfg.MaxSessions {
			l.logger.Warn("session limit reached, rejecting connection")
			conn.Close()
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		metrics.SetActiveSessions(atomic.AddInt64(&l.active, 1))
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn net.Conn) {
	defer func() {
		metrics.SetActiveSessions(atomic.AddInt64(&l.active, -1))
	}()

	sess := session.New(conn, l.store, l.backends, l.controller, l.admission, l.checker, l.cfg.Session, l.logger)
	sess.Serve()
}

// Close stops the accept loop by closing the underlying socket.
func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// ActiveSessions reports the current number of live sessions, for the
// ops/metrics surface.
func (l *Listener) ActiveSessions() int64 {
	return atomic.LoadInt64(&l.active)
}
