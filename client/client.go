// Package client implements the dialing-side collaborator of spec §2 item
// 3: it opens a TCP (optionally TLS) connection, runs the client side of
// the credential exchange, and hands the result to netconn as a live
// Connection with background Listening already enabled.
package client

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/coregx/netconn"
	"github.com/coregx/netconn/auth"
	"github.com/coregx/netconn/wire"
)

// Config is the Client's configuration surface (spec §6.4).
type Config struct {
	// TLSConfig, when non-nil, wraps the dialed connection in a TLS client
	// handshake before the credential exchange runs.
	TLSConfig *tls.Config

	// Credentials are presented during the handshake. nil means anonymous
	// (an Empty/DBNull frame).
	Credentials *auth.Credentials

	// Controllers lets this connection serve RMI requests from its peer.
	// Defaults to an empty registry when nil.
	Controllers *netconn.Controllers

	// Connection configures the resulting netconn.Connection (serializer,
	// codepage, logger).
	Connection netconn.Config
}

// Dial opens addr, runs TLS (if configured) and the credential handshake,
// and returns a Connection with Listening already enabled.
func Dial(addr string, cfg Config) (*netconn.Connection, error) {
	return DialContext(context.Background(), addr, cfg)
}

// DialContext is Dial with a caller-supplied context governing the TCP
// dial and, if configured, the TLS handshake.
func DialContext(ctx context.Context, addr string, cfg Config) (*netconn.Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
	}
	return handshakeAndWrap(ctx, conn, cfg)
}

func handshakeAndWrap(ctx context.Context, conn net.Conn, cfg Config) (*netconn.Connection, error) {
	actual := conn

	if cfg.TLSConfig != nil {
		tlsConn := tls.Client(conn, cfg.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
		}
		actual = tlsConn
	}

	cp := cfg.Connection.Codepage
	if cp == 0 {
		cp = wire.DefaultCodepage
	}
	if err := auth.ClientHandshake(actual, cp, cfg.Credentials); err != nil {
		_ = actual.Close()
		return nil, err
	}

	nc := netconn.New(actual, cfg.Controllers, cfg.Connection)
	nc.SetListening(true)
	return nc, nil
}
