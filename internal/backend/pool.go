package backend

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool owns one Conn per backend endpoint, created lazily on first use.
type Pool struct {
	cfg    Config
	logger *logrus.Logger

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewPool constructs an empty Pool. cfg is applied to every Conn it
// creates.
func NewPool(cfg Config, logger *logrus.Logger) *Pool {
	return &Pool{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*Conn),
	}
}

// Conn returns the Conn for endpoint, creating it on first use.
func (p *Pool) Conn(endpoint string) *Conn {
	p.mu.RLock()
	c, ok := p.conns[endpoint]
	p.mu.RUnlock()
	if ok {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.conns[endpoint]; ok {
		return c
	}
	c = NewConn(endpoint, p.cfg, p.logger)
	p.conns[endpoint] = c
	return c
}

// GetStats reports each known endpoint's outstanding-request depth for
// the ops/metrics surface.
func (p *Pool) GetStats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	outstanding := make(map[string]interface{}, len(p.conns))
	for endpoint, c := range p.conns {
		outstanding[endpoint] = c.Outstanding()
	}
	return map[string]interface{}{
		"endpoints":   len(p.conns),
		"outstanding": outstanding,
	}
}

// Close closes endpoint's connection, if one was ever created, and
// forgets it so a later Conn(endpoint) starts fresh.
func (p *Pool) Close(endpoint string) {
	p.mu.Lock()
	c, ok := p.conns[endpoint]
	delete(p.conns, endpoint)
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

// CloseAll closes every connection the pool has ever created, for
// process shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
