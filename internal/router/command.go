// Package router decides, for one (tenant, command) pair, whether to
// answer locally, forward to a backend, or redirect the client. A static
// command table covers arity, key position, and write/meta
// classification; there is no per-command handler hierarchy.
package router

import "strings"

// CommandSpec describes one supported command's shape.
type CommandSpec struct {
	// Arity is the minimum argument count including the command name
	// itself; a negative value -N marks a variadic command taking at
	// least N.
	Arity int
	// KeyIndex is the argv position of the first key, or -1 if the
	// command carries no routable key (meta-commands).
	KeyIndex int
	// IsMeta commands are answered or dispatched locally by the router
	// itself rather than forwarded to a backend.
	IsMeta bool
	// IsWrite commands mutate backend state; the routing decision does
	// not consult it.
	IsWrite bool
	// MultiKey commands take more than one key argument (spaced by a
	// fixed stride starting at KeyIndex); accepted only when every key
	// hashes to the same slot.
	MultiKey bool
	// KeyStride is the argv distance between successive keys for
	// MultiKey commands (MSET: key, value, key, value -> stride 2).
	KeyStride int
}

// commandTable is the static command → shape mapping consulted once per
// request.
var commandTable = map[string]CommandSpec{
	"GET":      {Arity: 2, KeyIndex: 1},
	"SET":      {Arity: 3, KeyIndex: 1, IsWrite: true},
	"DEL":      {Arity: 2, KeyIndex: 1, IsWrite: true},
	"EXISTS":   {Arity: 2, KeyIndex: 1},
	"EXPIRE":   {Arity: 3, KeyIndex: 1, IsWrite: true},
	"TTL":      {Arity: 2, KeyIndex: 1},
	"INCR":     {Arity: 2, KeyIndex: 1, IsWrite: true},
	"APPEND":   {Arity: 3, KeyIndex: 1, IsWrite: true},
	"MGET":     {Arity: -2, KeyIndex: 1, MultiKey: true, KeyStride: 1},
	"MSET":     {Arity: -3, KeyIndex: 1, IsWrite: true, MultiKey: true, KeyStride: 2},
	"HGET":     {Arity: 3, KeyIndex: 1},
	"HSET":     {Arity: 4, KeyIndex: 1, IsWrite: true},
	"HDEL":     {Arity: 3, KeyIndex: 1, IsWrite: true},
	"HGETALL":  {Arity: 2, KeyIndex: 1},
	"LPUSH":    {Arity: 3, KeyIndex: 1, IsWrite: true},
	"RPUSH":    {Arity: 3, KeyIndex: 1, IsWrite: true},
	"LRANGE":   {Arity: 4, KeyIndex: 1},
	"LLEN":     {Arity: 2, KeyIndex: 1},
	"SADD":     {Arity: 3, KeyIndex: 1, IsWrite: true},
	"SMEMBERS": {Arity: 2, KeyIndex: 1},
	"SCARD":    {Arity: 2, KeyIndex: 1},
	"ZADD":     {Arity: 4, KeyIndex: 1, IsWrite: true},
	"ZRANGE":   {Arity: 4, KeyIndex: 1},
	"ZCARD":    {Arity: 2, KeyIndex: 1},

	"AUTH":    {Arity: 2, KeyIndex: -1, IsMeta: true},
	"PING":    {Arity: -1, KeyIndex: -1, IsMeta: true},
	"QUIT":    {Arity: 1, KeyIndex: -1, IsMeta: true},
	"SELECT":  {Arity: 2, KeyIndex: -1, IsMeta: true},
	"ASKING":  {Arity: 1, KeyIndex: -1, IsMeta: true},
	"CLUSTER": {Arity: -2, KeyIndex: -1, IsMeta: true},
	"UMCTL":   {Arity: -2, KeyIndex: -1, IsMeta: true},
}

// Lookup returns the CommandSpec for name (case-insensitive), and whether
// it is known at all.
func Lookup(name string) (CommandSpec, bool) {
	spec, ok := commandTable[strings.ToUpper(name)]
	return spec, ok
}
