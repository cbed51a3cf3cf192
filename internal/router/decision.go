package router

// Kind tags which branch of the routing algorithm a Decision took.
type Kind int

const (
	// KindLocal is answered by the session itself (meta-commands)
	// without touching a backend.
	KindLocal Kind = iota
	// KindForward is sent to a backend endpoint; the caller awaits a
	// ReplyHandle from the backend pool.
	KindForward
	// KindMoved is a permanent Redis Cluster redirect. ASK redirects
	// never appear as their own Kind: the migrating case forwards with
	// AskFallbackAddr set and the session renders the ASK reply itself.
	KindMoved
	// KindError is a local -ERR reply.
	KindError
)

// Decision is the router's answer for one command: exactly one of the
// Kind-tagged fields below is meaningful.
type Decision struct {
	Kind Kind

	// KindForward
	Endpoint string

	// KindMoved
	Slot int
	Addr string

	// AskFallbackAddr is set (with Slot) alongside KindForward when the
	// slot is tagged migrating: if the backend reports the key
	// absent, the session should reply ASK at this slot/addr instead of
	// the backend's literal nil.
	AskFallbackAddr string

	// KindError
	Err error
}

func forward(endpoint string) Decision { return Decision{Kind: KindForward, Endpoint: endpoint} }

func forwardMigrating(endpoint string, slotNum int, askAddr string) Decision {
	return Decision{Kind: KindForward, Endpoint: endpoint, Slot: slotNum, AskFallbackAddr: askAddr}
}
func moved(slot int, addr string) Decision {
	return Decision{Kind: KindMoved, Slot: slot, Addr: addr}
}
func errDecision(err error) Decision { return Decision{Kind: KindError, Err: err} }
func localMeta() Decision            { return Decision{Kind: KindLocal} }
