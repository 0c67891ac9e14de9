package client_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/netconn/auth"
	"github.com/coregx/netconn/client"
	"github.com/coregx/netconn/wire"
)

func TestDialFailsWhenNobodyIsListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close()) // free the port, nothing listens on it now

	_, err = client.Dial(addr, client.Config{})
	require.Error(t, err)
}

// TestDialRunsTheClientHandshake drives the client side against a bare
// net.Listener that performs the server side of the credential exchange by
// hand, confirming Dial presents credentials and waits for the
// acknowledgement rather than assuming success.
func TestDialRunsTheClientHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	seen := make(chan auth.Credentials, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = auth.ServerHandshake(context.Background(), conn, wire.DefaultCodepage, func(_ context.Context, creds auth.Credentials) error {
			seen <- creds
			return nil
		})
	}()

	c, err := client.Dial(ln.Addr().String(), client.Config{Credentials: &auth.Credentials{Token: "abc123"}})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "abc123", (<-seen).Token)
}
