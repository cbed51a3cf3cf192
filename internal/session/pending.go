// Package session implements the per-client state machine: it binds a
// connection to a tenant, routes each command, and preserves pipeline
// ordering end-to-end even though backend replies complete out of order.
package session

import "umproxy/internal/resp"

// PendingReply is one slot in a Session's output pipeline: either
// immediately ready (local replies, redirects, errors) or awaiting a
// backend ReplyHandle. Ready closes exactly once, when Value becomes the
// frame to write — this is the same single-writer-many-reader signal
// shape as backend.ReplyHandle, reused here for the client-facing side of
// the pipe. Failures are folded into Value as a RESP error frame rather
// than carried separately, so the flush loop never has to special-case
// them.
type PendingReply struct {
	ready chan struct{}
	value resp.Value
}

func newPendingReply() *PendingReply {
	return &PendingReply{ready: make(chan struct{})}
}

func (p *PendingReply) complete(v resp.Value) {
	p.value = v
	close(p.ready)
}

// Done returns a channel closed once the reply is ready.
func (p *PendingReply) Done() <-chan struct{} { return p.ready }

// Result returns the reply frame. Only valid after Done() fires.
func (p *PendingReply) Result() resp.Value { return p.value }
