package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"umproxy/internal/auth"
	"umproxy/internal/backend"
	"umproxy/internal/clusterview"
	"umproxy/internal/control"
	"umproxy/internal/meta"
	"umproxy/internal/metrics"
	"umproxy/internal/resp"
	"umproxy/internal/router"
	"umproxy/internal/security"
)

// Config carries the per-session resource caps and tenant defaults:
// pipeline depth, buffered-read size (the unread-bytes cap), and the
// tenant a fresh connection starts as before any AUTH.
type Config struct {
	PipelineCap    int
	MaxUnreadBytes int
	DefaultTenant  string
	AdminTenant    string
}

// DefaultConfig returns conservative per-session caps.
func DefaultConfig() Config {
	return Config{
		PipelineCap:    1024,
		MaxUnreadBytes: 1 << 20,
		DefaultTenant:  "admin",
		AdminTenant:    "admin",
	}
}

// Session runs one goroutine pair (reader/router and writer/flusher) per
// client connection. Only one request at a time is ever in the routing
// phase for a given session, since a single goroutine owns that phase.
type Session struct {
	conn   net.Conn
	reader *resp.Reader
	writer *resp.Writer

	store      *meta.Store
	backends   *backend.Pool
	controller *control.Controller
	admission  *auth.Manager
	checker    *security.Checker

	cfg    Config
	logger *logrus.Entry

	tenantName string
	asking     bool
	quitting   bool

	pipeline chan *PendingReply
}

// New constructs a Session bound to the shared meta store, backend pool,
// and control plane.
func New(conn net.Conn, store *meta.Store, backends *backend.Pool, controller *control.Controller,
	admission *auth.Manager, checker *security.Checker, cfg Config, logger *logrus.Logger) *Session {

	br := bufio.NewReaderSize(conn, cfg.MaxUnreadBytes)
	bw := bufio.NewWriter(conn)

	return &Session{
		conn:       conn,
		reader:     resp.NewReader(br),
		writer:     resp.NewWriter(bw),
		store:      store,
		backends:   backends,
		controller: controller,
		admission:  admission,
		checker:    checker,
		cfg:        cfg,
		logger:     logger.WithField("remote", conn.RemoteAddr().String()),
		tenantName: cfg.DefaultTenant,
		// One extra slot beyond PipelineCap is reserved for the
		// overload rejection itself, so the first rejection at the cap
		// does not block the single-producer reader loop; a further
		// rejection waits until the flush loop frees a slot.
		pipeline: make(chan *PendingReply, cfg.PipelineCap+1),
	}
}

// Serve runs the session until the client disconnects or a protocol
// error terminates the connection. It starts the flush loop and then
// becomes the read/route loop itself, so Serve blocks for the
// connection's lifetime — callers run it in its own goroutine
// (internal/listener does this per accepted socket).
func (s *Session) Serve() {
	defer s.conn.Close()
	s.logger.Debug("session started")

	flushDone := make(chan struct{})
	go func() {
		s.flushLoop()
		close(flushDone)
	}()

	s.readLoop()
	close(s.pipeline)
	<-flushDone
	s.logger.Debug("session closed")
}

// readLoop parses frames and drives routing. It is the pipeline's sole
// producer, so the overload check in enqueue is race-free without a
// mutex.
func (s *Session) readLoop() {
	for {
		v, err := s.reader.ReadValue()
		if err != nil {
			if err != io.EOF {
				s.logger.WithError(err).Debug("read failed, closing session")
			}
			return
		}

		argv, err := v.StringArgs()
		if err != nil {
			s.logger.WithError(err).Warn("protocol error, closing session")
			s.enqueueReady(resp.NewError("ERR Protocol error: expected command array"))
			return
		}
		if len(argv) == 0 {
			continue
		}

		s.dispatch(argv)
		if s.quitting {
			return
		}
	}
}

// dispatch resolves one command to a PendingReply and enqueues it,
// honoring the per-session pipeline-depth cap. The ASKING one-shot flag
// is consumed by whatever command follows it, meta or not, so it is
// cleared up front and only ASKING itself sets it again.
func (s *Session) dispatch(argv []string) {
	if len(s.pipeline) >= s.cfg.PipelineCap {
		s.enqueueReady(resp.NewError("ERR overloaded"))
		return
	}

	name := strings.ToUpper(argv[0])
	asking := s.asking
	s.asking = false

	switch name {
	case "AUTH":
		s.enqueueReady(s.handleAuth(argv))
		return
	case "PING":
		s.enqueueReady(s.handlePing(argv))
		return
	case "QUIT":
		// The OK still flushes in pipeline order before the reader
		// stops and the connection closes.
		s.quitting = true
		s.enqueueReady(resp.NewSimpleString("OK"))
		return
	case "SELECT":
		s.enqueueReady(s.handleSelect(argv))
		return
	case "ASKING":
		s.asking = true
		s.enqueueReady(resp.NewSimpleString("OK"))
		return
	case "CLUSTER":
		s.enqueueReady(s.handleCluster(argv))
		return
	case "UMCTL":
		s.enqueueReady(s.handleUMCTL(argv))
		return
	}

	if s.checker != nil && s.tenantName != s.cfg.AdminTenant && s.checker.IsDangerous(name) {
		metrics.IncDangerousDenied(name)
		s.enqueueReady(resp.NewError("ERR dangerous command not permitted for this tenant"))
		return
	}

	s.routeAndEnqueue(argv, asking)
}

// enqueueReady pushes an already-computed reply.
func (s *Session) enqueueReady(v resp.Value) {
	pr := newPendingReply()
	pr.complete(v)
	s.pipeline <- pr
}

func (s *Session) handleAuth(argv []string) resp.Value {
	if len(argv) != 2 {
		return resp.NewError("ERR wrong number of arguments for 'auth' command")
	}
	name := argv[1]
	if _, ok := s.store.Load().Tenant(name); !ok {
		return resp.NewError("ERR no such database")
	}
	if s.admission != nil && !s.admission.Allow(name) {
		metrics.IncAdmissionDenied(name)
		return resp.NewError("ERR overloaded")
	}
	s.tenantName = name
	return resp.NewSimpleString("OK")
}

func (s *Session) handlePing(argv []string) resp.Value {
	if len(argv) > 2 {
		return resp.NewError("ERR wrong number of arguments for 'ping' command")
	}
	if len(argv) == 2 {
		return resp.NewBulkString([]byte(argv[1]))
	}
	return resp.NewSimpleString("PONG")
}

func (s *Session) handleSelect(argv []string) resp.Value {
	if len(argv) != 2 {
		return resp.NewError("ERR wrong number of arguments for 'select' command")
	}
	if argv[1] != "0" {
		return resp.NewError("ERR SELECT is not supported: only index 0 exists on a proxied tenant keyspace")
	}
	return resp.NewSimpleString("OK")
}

func (s *Session) currentTenant() (*meta.Tenant, bool) {
	return s.store.Load().Tenant(s.tenantName)
}

func (s *Session) handleCluster(argv []string) resp.Value {
	tenant, ok := s.currentTenant()
	if !ok {
		return resp.NewError(fmt.Sprintf("ERR db not found: %s", s.tenantName))
	}
	if len(argv) < 2 {
		return resp.NewError("ERR wrong number of arguments for 'cluster' command")
	}
	switch strings.ToUpper(argv[1]) {
	case "NODES":
		return resp.NewBulkString([]byte(clusterview.Nodes(tenant)))
	case "SLOTS":
		return clusterview.Slots(tenant)
	case "INFO":
		return resp.NewBulkString([]byte(clusterview.Info(tenant)))
	default:
		return resp.NewError(fmt.Sprintf("ERR unknown CLUSTER subcommand '%s'", argv[1]))
	}
}

func (s *Session) handleUMCTL(argv []string) resp.Value {
	if !s.controller.IsAdmin(s.tenantName) {
		return resp.NewError("ERR UMCTL requires the admin tenant")
	}
	if len(argv) < 2 {
		return resp.NewError("ERR wrong number of arguments for 'umctl' command")
	}

	switch strings.ToUpper(argv[1]) {
	case "SETDB":
		if err := s.controller.ApplySetDB(argv[2:]); err != nil {
			return resp.NewError(errString(err))
		}
		return resp.NewSimpleString("OK")
	case "SETPEER":
		if err := s.controller.ApplySetPeer(argv[2:]); err != nil {
			return resp.NewError(errString(err))
		}
		return resp.NewSimpleString("OK")
	case "INFO":
		epoch, lines := s.controller.Info()
		body := fmt.Sprintf("epoch:%d\r\n%s\r\n", epoch, strings.Join(lines, "\r\n"))
		return resp.NewBulkString([]byte(body))
	default:
		return resp.NewError(fmt.Sprintf("ERR unknown UMCTL subcommand '%s'", argv[1]))
	}
}

// routeAndEnqueue consults the router for a data command and enqueues
// either an immediate reply (local error/redirect) or a PendingReply that
// completes when the matched backend.ReplyHandle fires.
func (s *Session) routeAndEnqueue(argv []string, asking bool) {
	tenant, ok := s.currentTenant()
	if !ok {
		s.enqueueReady(resp.NewError(fmt.Sprintf("ERR db not found: %s", s.tenantName)))
		return
	}

	d := router.Route(tenant, argv, asking)
	switch d.Kind {
	case router.KindError:
		metrics.IncCommand("error")
		s.enqueueReady(resp.NewError(errString(d.Err)))
		return
	case router.KindMoved:
		metrics.IncRedirect("moved")
		s.enqueueReady(resp.NewError(fmt.Sprintf("MOVED %d %s", d.Slot, d.Addr)))
		return
	case router.KindLocal:
		// Meta-commands never reach Route (dispatch handles them
		// directly), so this branch is unreachable for well-formed
		// input; treat it as an internal routing error rather than
		// silently dropping the reply.
		s.enqueueReady(resp.NewError("ERR internal routing error"))
		return
	}

	s.forward(argv, d)
}

// forward sends argv to the backend endpoint d names and installs a
// PendingReply that completes when the matching reply arrives, preserving
// this session's pipeline order regardless of backend completion order.
func (s *Session) forward(argv []string, d router.Decision) {
	cmd := argvToCommand(argv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	handle, err := s.backends.Conn(d.Endpoint).Send(ctx, cmd)
	cancel()
	if err != nil {
		metrics.IncBackendError(d.Endpoint)
		s.enqueueReady(resp.NewError(backendErrString(err)))
		return
	}

	pr := newPendingReply()
	s.pipeline <- pr

	go func() {
		<-handle.Done()
		v, err := handle.Value()
		if err != nil {
			metrics.IncBackendError(d.Endpoint)
			pr.complete(resp.NewError(backendErrString(err)))
			return
		}
		if d.AskFallbackAddr != "" && isAbsent(v) {
			metrics.IncRedirect("ask")
			pr.complete(resp.NewError(fmt.Sprintf("ASK %d %s", d.Slot, d.AskFallbackAddr)))
			return
		}
		metrics.IncCommand("ok")
		pr.complete(v)
	}()
}

// isAbsent reports whether a backend reply represents "key not found"
// for the subset of replies this proxy can recognize generically (nil
// bulk, nil array). Integer-sentinel absence (EXISTS/DEL returning 0) is
// not distinguishable from a legitimate zero-count reply without
// per-command semantics the router doesn't track, so the migrating-ASK
// fallback only fires for nil-shaped replies.
func isAbsent(v resp.Value) bool {
	return (v.Type == resp.BulkString || v.Type == resp.Array) && v.IsNil
}

// flushLoop is the pipeline's sole consumer: it writes each PendingReply
// to the client strictly in enqueue order, blocking on a not-yet-ready
// entry without ever reordering around it.
func (s *Session) flushLoop() {
	for pr := range s.pipeline {
		<-pr.Done()
		v := pr.Result()
		if err := s.writer.WriteValue(v); err != nil {
			return
		}
		if len(s.pipeline) == 0 {
			if err := s.writer.Flush(); err != nil {
				return
			}
		}
	}
	_ = s.writer.Flush()
}

func argvToCommand(argv []string) resp.Value {
	elems := make([]resp.Value, len(argv))
	for i, a := range argv {
		elems[i] = resp.NewBulkString([]byte(a))
	}
	return resp.NewArray(elems)
}

// errString unwraps an internal error into its RESP error line. Router
// and control-plane errors are always constructed with their RESP error
// code already as the first word (ERR/CROSSSLOT), so no rewriting is
// needed here.
func errString(err error) string {
	return err.Error()
}

func backendErrString(err error) string {
	switch err {
	case backend.ErrOverloaded:
		return "ERR overloaded"
	default:
		return "ERR backend unavailable"
	}
}
