package auth

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/coregx/netconn/serialize"
	"github.com/coregx/netconn/wire"
)

const credentialsTypeName = "netconn.auth.Credentials"

var (
	codecOnce sync.Once
	codecVal  *wire.ValueCodec
)

// codec returns the handshake's own private Serializer/Registry pair. The
// handshake never touches the application Serializer a Connection is
// configured with: credentials cross the wire before either peer has
// agreed on one (spec §6.2 runs before the RMI layer exists at all).
func codec() *wire.ValueCodec {
	codecOnce.Do(func() {
		reg := serialize.NewRegistry()
		reg.Register(credentialsTypeName, Credentials{})
		codecVal = wire.NewValueCodec(serialize.NewJSON(), reg)
	})
	return codecVal
}

// Authenticator validates credentials presented by a connecting client.
// Returning an error rejects the connection: the server sends a false
// acknowledgement and the handshake fails on both ends (spec §6.2).
type Authenticator func(ctx context.Context, creds Credentials) error

// Allow accepts every connection unconditionally, the default for a Server
// configured without an Authenticator.
func Allow(context.Context, Credentials) error { return nil }

// ClientHandshake runs the client side: send creds (or an empty frame when
// creds is nil), then read the server's boolean acknowledgement. A false
// acknowledgement surfaces as ErrRejected.
func ClientHandshake(conn net.Conn, cp wire.Codepage, creds *Credentials) error {
	var payload any
	if creds != nil && !creds.IsZero() {
		payload = *creds
	}

	if err := wire.WriteFrame(conn, cp, 0, 0, payload, codec()); err != nil {
		return wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
	}

	env, err := wire.ReadFrame(conn, codec())
	if err != nil {
		return wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
	}
	ok, _ := env.Value.(bool)
	if !ok {
		return wire.NewError(wire.KindClientAuthentication, 0, 0, "", ErrRejected)
	}
	return nil
}

// ServerHandshake runs the server side: read the client's credentials (or
// none), authenticate via authFn, then write a boolean acknowledgement.
// authFn defaults to Allow when nil.
func ServerHandshake(ctx context.Context, conn net.Conn, cp wire.Codepage, authFn Authenticator) error {
	if authFn == nil {
		authFn = Allow
	}

	env, err := wire.ReadFrame(conn, codec())
	if err != nil {
		return wire.NewError(wire.KindConnectionOpen, 0, 0, "", err)
	}

	var creds Credentials
	switch v := env.Value.(type) {
	case nil:
		// Empty frame: anonymous.
	case Credentials:
		creds = v
	default:
		if !wire.IsDBNull(v) {
			return wire.NewError(wire.KindClientAuthentication, 0, 0, "",
				fmt.Errorf("%w: got %T", ErrMalformedCredentials, v))
		}
	}

	authErr := authFn(ctx, creds)
	if werr := wire.WriteFrame(conn, cp, 0, 0, authErr == nil, codec()); werr != nil {
		return wire.NewError(wire.KindConnectionOpen, 0, 0, "", werr)
	}
	if authErr != nil {
		return wire.NewError(wire.KindClientAuthentication, 0, 0, "", authErr)
	}
	return nil
}
