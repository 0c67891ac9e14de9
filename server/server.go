// Package server implements the listening-side collaborator of spec §2
// item 2: it accepts TCP (optionally TLS) connections, runs the
// credential-exchange handshake, and hands each survivor to netconn as a
// live Connection, tracked in a peer registry.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coregx/netconn"
	"github.com/coregx/netconn/auth"
	"github.com/coregx/netconn/wire"
)

// Config is the Server's configuration surface (spec §6.4).
type Config struct {
	// TLSConfig, when non-nil, wraps every accepted connection in a TLS
	// server handshake before the credential exchange runs.
	TLSConfig *tls.Config

	// Authenticator validates each client's credentials. Defaults to
	// auth.Allow (accept everyone) when nil.
	Authenticator auth.Authenticator

	// Controllers is shared by every accepted Connection. Defaults to an
	// empty registry when nil.
	Controllers *netconn.Controllers

	// Connection configures each accepted netconn.Connection (serializer,
	// codepage, logger).
	Connection netconn.Config

	// Logger receives accept/handshake diagnostics. Defaults to a no-op
	// logger via Connection.Logger if unset.
	Logger *zap.Logger
}

// Server accepts connections on a net.Listener, authenticates each one, and
// maintains a registry of live peers, each keyed by a generated uuid.UUID,
// through a single channel-driven event loop that owns the peers map.
type Server struct {
	ln     net.Listener
	cfg    Config
	logger *zap.Logger

	register   chan *peerEntry
	unregister chan uuid.UUID
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup

	mu    sync.RWMutex
	peers map[uuid.UUID]*netconn.Connection

	observerMu  sync.Mutex
	onConnected []func(uuid.UUID, *netconn.Connection)
}

type peerEntry struct {
	id   uuid.UUID
	conn *netconn.Connection
}

// Listen opens a TCP listener on addr and returns a Server ready to Serve.
func Listen(addr string, cfg Config) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
	}
	if cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, cfg.TLSConfig)
	}
	return New(ln, cfg), nil
}

// New builds a Server around an already-open net.Listener, letting callers
// supply their own listener (e.g. one already wrapped in TLS, or backed by
// a test net.Pipe-style dialer).
func New(ln net.Listener, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Connection.Logger
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Controllers == nil {
		cfg.Controllers = netconn.NewControllers()
	}

	s := &Server{
		ln:         ln,
		cfg:        cfg,
		logger:     logger,
		register:   make(chan *peerEntry),
		unregister: make(chan uuid.UUID),
		done:       make(chan struct{}),
		peers:      make(map[uuid.UUID]*netconn.Connection),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// run is the peer registry's event loop: a single goroutine owns the
// peers map so register/unregister never race against Peers()/Broadcast()
// snapshot reads.
func (s *Server) run() {
	defer s.wg.Done()
	for {
		select {
		case entry := <-s.register:
			s.mu.Lock()
			s.peers[entry.id] = entry.conn
			s.mu.Unlock()
			s.fireConnected(entry.id, entry.conn)
		case id := <-s.unregister:
			s.mu.Lock()
			delete(s.peers, id)
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Serve blocks, accepting connections until Close is called. It returns nil
// on an orderly shutdown.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
			}
		}
		s.wg.Add(1)
		go s.handleAccept(conn)
	}
}

func (s *Server) handleAccept(conn net.Conn) {
	defer s.wg.Done()

	cp := s.cfg.Connection.Codepage
	if cp == 0 {
		cp = wire.DefaultCodepage
	}
	if err := auth.ServerHandshake(context.Background(), conn, cp, s.cfg.Authenticator); err != nil {
		s.logger.Warn("server: rejected handshake", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		_ = conn.Close()
		return
	}

	nc := netconn.New(conn, s.cfg.Controllers, s.cfg.Connection)
	id := uuid.New()

	nc.OnClosed(func(error) {
		select {
		case s.unregister <- id:
		case <-s.done:
		}
	})
	nc.SetListening(true)

	select {
	case s.register <- &peerEntry{id: id, conn: nc}:
	case <-s.done:
		_ = nc.Close()
	}
}

// Addr returns the listener's network address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Peer returns the live connection registered under id.
func (s *Server) Peer(id uuid.UUID) (*netconn.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.peers[id]
	return c, ok
}

// Peers returns a snapshot of every currently connected peer.
func (s *Server) Peers() []*netconn.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*netconn.Connection, 0, len(s.peers))
	for _, c := range s.peers {
		out = append(out, c)
	}
	return out
}

// Broadcast writes v to every currently connected peer, each on its own
// goroutine so one slow peer never delays the others.
func (s *Server) Broadcast(v any) {
	for _, c := range s.Peers() {
		go func(c *netconn.Connection) {
			if err := c.WriteObject(v); err != nil {
				s.logger.Warn("server: broadcast write failed", zap.Error(err))
			}
		}(c)
	}
}

// OnConnected registers fn to run whenever a new peer finishes its
// handshake and joins the registry.
func (s *Server) OnConnected(fn func(uuid.UUID, *netconn.Connection)) {
	s.observerMu.Lock()
	defer s.observerMu.Unlock()
	s.onConnected = append(s.onConnected, fn)
}

func (s *Server) fireConnected(id uuid.UUID, c *netconn.Connection) {
	s.observerMu.Lock()
	handlers := append([]func(uuid.UUID, *netconn.Connection){}, s.onConnected...)
	s.observerMu.Unlock()
	for _, h := range handlers {
		h(id, c)
	}
}

// Close stops accepting new connections, optionally disconnects every live
// peer (Config.Connection.DisconnectClientsOnDispose), and waits for
// in-flight accepts to finish.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ln.Close()
		if s.cfg.Connection.DisconnectClientsOnDispose {
			for _, c := range s.Peers() {
				_ = c.Close()
			}
		}
	})
	s.wg.Wait()
	return err
}
