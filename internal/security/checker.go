// Package security gates which RESP commands a non-admin tenant may
// issue: a denylist over command names. The proxy never inspects
// key/value payloads, but it does keep server-administration commands
// confined to the admin tenant.
package security

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// defaultDenylist names RESP commands that affect the whole backend
// process (not just the issuing tenant's keyspace) and so must never reach
// a backend on behalf of an ordinary tenant.
var defaultDenylist = []string{
	"FLUSHALL", "FLUSHDB", "SHUTDOWN", "DEBUG", "CONFIG",
	"MONITOR", "SAVE", "BGSAVE", "BGREWRITEAOF", "SLAVEOF", "REPLICAOF",
	"MODULE", "FAILOVER", "RESET", "SCRIPT", "FUNCTION",
}

// Checker decides whether a command name is dangerous for a non-admin
// tenant to issue.
type Checker struct {
	mu             sync.RWMutex
	denylist       map[string]struct{}
	blockedCount   int64
	inspectedCount int64
	logger         *logrus.Logger
}

// NewChecker constructs a Checker seeded with defaultDenylist.
func NewChecker(logger *logrus.Logger) *Checker {
	c := &Checker{
		denylist: make(map[string]struct{}, len(defaultDenylist)),
		logger:   logger,
	}
	for _, name := range defaultDenylist {
		c.denylist[name] = struct{}{}
	}
	return c
}

// IsDangerous reports whether cmdName (matched case-insensitively) is
// restricted to the admin tenant.
func (c *Checker) IsDangerous(cmdName string) bool {
	c.mu.Lock()
	c.inspectedCount++
	_, dangerous := c.denylist[strings.ToUpper(cmdName)]
	if dangerous {
		c.blockedCount++
	}
	c.mu.Unlock()

	if dangerous {
		c.logger.WithField("command", cmdName).Warn("denied dangerous command for non-admin tenant")
	}
	return dangerous
}

// AddCommand extends the denylist with an additional command name.
func (c *Checker) AddCommand(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denylist[strings.ToUpper(name)] = struct{}{}
}

// RemoveCommand drops a command name from the denylist, permitting
// deployments that want e.g. CONFIG GET available to every tenant.
func (c *Checker) RemoveCommand(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.denylist, strings.ToUpper(name))
}

// GetStats returns checker statistics for the ops/metrics surface.
func (c *Checker) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"inspected_count":  c.inspectedCount,
		"blocked_count":    c.blockedCount,
		"denylist_entries": len(c.denylist),
	}
}

// Reset clears the checker's counters.
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockedCount = 0
	c.inspectedCount = 0
	c.logger.Info("security checker counters reset")
}
