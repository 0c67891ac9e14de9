package netconn

// Peer is the NetworkClient facade of spec §2 item 4: a thin wrapper over a
// Connection that relays its lifecycle events and exposes the asynchronous
// send path, for callers that only ever want to push application objects
// and call controllers rather than drive the connection's lifecycle
// directly.
type Peer struct {
	*Connection
}

// NewPeer wraps c.
func NewPeer(c *Connection) *Peer {
	return &Peer{Connection: c}
}

// SendAsync writes v without blocking the caller, delivering the write's
// outcome on the returned channel.
func (p *Peer) SendAsync(v any) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- p.WriteObject(v) }()
	return ch
}
