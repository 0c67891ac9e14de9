package auth_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/netconn/auth"
	"github.com/coregx/netconn/serialize"
	"github.com/coregx/netconn/wire"
)

func TestHandshakeSucceedsWithMatchingCredentials(t *testing.T) {
	a, b := net.Pipe()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- auth.ServerHandshake(context.Background(), b, wire.DefaultCodepage, func(_ context.Context, creds auth.Credentials) error {
			if creds.Token != "secret" {
				return assert.AnError
			}
			return nil
		})
	}()

	clientErr := auth.ClientHandshake(a, wire.DefaultCodepage, &auth.Credentials{Token: "secret"})
	require.NoError(t, clientErr)
	require.NoError(t, <-serverErr)
}

func TestHandshakeRejectsInvalidCredentials(t *testing.T) {
	a, b := net.Pipe()

	go func() {
		_ = auth.ServerHandshake(context.Background(), b, wire.DefaultCodepage, func(_ context.Context, creds auth.Credentials) error {
			if creds.Token != "secret" {
				return assert.AnError
			}
			return nil
		})
	}()

	err := auth.ClientHandshake(a, wire.DefaultCodepage, &auth.Credentials{Token: "wrong"})
	require.Error(t, err)

	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wire.KindClientAuthentication, werr.Kind)
}

// TestHandshakeRejectsNonCredentialsFrame covers spec §6.2 step 2: a
// non-empty frame that does not carry a Credentials object must be
// rejected outright, never silently treated as anonymous.
func TestHandshakeRejectsNonCredentialsFrame(t *testing.T) {
	a, b := net.Pipe()

	authCalled := make(chan struct{}, 1)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- auth.ServerHandshake(context.Background(), b, wire.DefaultCodepage, func(context.Context, auth.Credentials) error {
			authCalled <- struct{}{}
			return nil
		})
	}()

	codec := wire.NewValueCodec(serialize.NewJSON(), serialize.NewRegistry())
	require.NoError(t, wire.WriteFrame(a, wire.DefaultCodepage, 0, 0, "not credentials", codec))

	err := <-serverErr
	require.Error(t, err)
	var werr *wire.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wire.KindClientAuthentication, werr.Kind)

	select {
	case <-authCalled:
		t.Fatal("the authenticator must not run for a malformed handshake frame")
	default:
	}
}

func TestHandshakeAllowsAnonymousClient(t *testing.T) {
	a, b := net.Pipe()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- auth.ServerHandshake(context.Background(), b, wire.DefaultCodepage, nil)
	}()

	require.NoError(t, auth.ClientHandshake(a, wire.DefaultCodepage, nil))
	require.NoError(t, <-serverErr)
}
