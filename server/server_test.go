package server_test

import (
	"context"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/netconn"
	"github.com/coregx/netconn/auth"
	"github.com/coregx/netconn/client"
	"github.com/coregx/netconn/server"
)

func listen(t *testing.T, cfg server.Config) (*server.Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := server.New(ln, cfg)
	t.Cleanup(func() { _ = s.Close() })
	go func() { _ = s.Serve() }()
	return s, ln.Addr().String()
}

func TestClientServerHandshakeAndExchange(t *testing.T) {
	s, addr := listen(t, server.Config{})

	c, err := client.Dial(addr, client.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	received := make(chan any, 1)
	require.Eventually(t, func() bool {
		return len(s.Peers()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Peers()[0].OnReceived(func(v any) { received <- v })
	require.NoError(t, c.WriteObject("ping"))

	select {
	case v := <-received:
		assert.Equal(t, "ping", v)
	case <-time.After(time.Second):
		t.Fatal("server never received the application frame")
	}
}

func TestServerRejectsBadCredentials(t *testing.T) {
	_, addr := listen(t, server.Config{
		Authenticator: func(_ context.Context, creds auth.Credentials) error {
			if creds.Token != "letmein" {
				return assert.AnError
			}
			return nil
		},
	})

	_, err := client.Dial(addr, client.Config{Credentials: &auth.Credentials{Token: "wrong"}})
	require.Error(t, err)
}

func TestServerBroadcastReachesAllPeers(t *testing.T) {
	s, addr := listen(t, server.Config{})

	c1, err := client.Dial(addr, client.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c1.Close() })
	c2, err := client.Dial(addr, client.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Close() })

	require.Eventually(t, func() bool { return len(s.Peers()) == 2 }, time.Second, 5*time.Millisecond)

	got1, got2 := make(chan any, 1), make(chan any, 1)
	c1.OnReceived(func(v any) { got1 <- v })
	c2.OnReceived(func(v any) { got2 <- v })

	s.Broadcast("hi everyone")

	for _, ch := range []chan any{got1, got2} {
		select {
		case v := <-ch:
			assert.Equal(t, "hi everyone", v)
		case <-time.After(time.Second):
			t.Fatal("broadcast did not reach a peer")
		}
	}
}

var reflectStringType = reflect.TypeOf("")

const greeterID netconn.ControllerID = "Greeter"

type greeter interface {
	Greet(name string) (string, error)
}

type greeterImpl struct{}

func (greeterImpl) Greet(name string) (string, error) { return "hello, " + name, nil }

type greeterClient struct{ c *netconn.Connection }

func (g *greeterClient) Greet(name string) (string, error) {
	res, err := g.c.Call(context.Background(), greeterID, "Greet", []string{"string"}, []any{name}, reflectStringType)
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func TestServerServesRegisteredController(t *testing.T) {
	controllers := netconn.NewControllers()
	controllers.Use(greeterID, netconn.Instance(greeterImpl{}))
	_, addr := listen(t, server.Config{Controllers: controllers})

	c, err := client.Dial(addr, client.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	proxy := netconn.GetController[greeter](c, greeterID, func(conn *netconn.Connection) greeter {
		return &greeterClient{c: conn}
	})

	greeting, err := proxy.Greet("world")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", greeting)
}
