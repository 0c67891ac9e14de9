package netconn_test

import (
	"context"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/netconn"
	"github.com/coregx/netconn/wire"
)

const adderID netconn.ControllerID = "Adder"

type adder interface {
	Add(a, b int) (int, error)
}

type adderImpl struct{ calls atomic.Int32 }

func (a *adderImpl) Add(x, y int) (int, error) {
	a.calls.Add(1)
	return x + y, nil
}

type faultyAdder struct{}

func (faultyAdder) Add(int, int) (int, error) { panic("boom") }

var adderStub netconn.Stub[adder] = func(c *netconn.Connection) adder {
	return &adderClient{c: c}
}

type adderClient struct{ c *netconn.Connection }

func (p *adderClient) Add(a, b int) (int, error) {
	res, err := p.c.Call(context.Background(), adderID, "Add", []string{"int", "int"}, []any{a, b}, reflect.TypeOf(0))
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// rmiPair wires a client connection to a server connection whose
// controllers registry is `controllers`, both actively listening so RMI
// requests and responses are pumped without an explicit ReadObject call.
func rmiPair(t *testing.T, controllers *netconn.Controllers) (client, server *netconn.Connection) {
	t.Helper()
	a, b := net.Pipe()
	client = netconn.New(a, nil, netconn.Config{})
	server = netconn.New(b, controllers, netconn.Config{})
	client.SetListening(true)
	server.SetListening(true)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestRMICallSucceeds(t *testing.T) {
	controllers := netconn.NewControllers()
	impl := &adderImpl{}
	controllers.Use(adderID, netconn.Instance(impl))

	client, _ := rmiPair(t, controllers)
	proxy := netconn.GetController[adder](client, adderID, adderStub)

	sum, err := proxy.Add(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, sum)
	assert.Equal(t, int32(1), impl.calls.Load())
}

func TestGetControllerMemoizesTheProxy(t *testing.T) {
	controllers := netconn.NewControllers()
	controllers.Use(adderID, netconn.Instance(&adderImpl{}))

	client, _ := rmiPair(t, controllers)
	p1 := netconn.GetController[adder](client, adderID, adderStub)
	p2 := netconn.GetController[adder](client, adderID, adderStub)
	assert.Same(t, p1.(*adderClient), p2.(*adderClient))
}

func TestRMIControllerNotFound(t *testing.T) {
	controllers := netconn.NewControllers() // nothing registered
	client, _ := rmiPair(t, controllers)
	proxy := netconn.GetController[adder](client, adderID, adderStub)

	_, err := proxy.Add(1, 1)
	require.Error(t, err)
	assert.Equal(t, wire.KindControllerNotFound, wireKind(t, err))
}

func TestRMIMethodInvokeExceptionOnPanic(t *testing.T) {
	controllers := netconn.NewControllers()
	controllers.Use(adderID, netconn.Instance(faultyAdder{}))
	client, _ := rmiPair(t, controllers)
	proxy := netconn.GetController[adder](client, adderID, adderStub)

	_, err := proxy.Add(1, 1)
	require.Error(t, err)
	assert.Equal(t, wire.KindMethodInvokeException, wireKind(t, err))
}

func TestConcurrentRMICallsCorrelateIndependently(t *testing.T) {
	controllers := netconn.NewControllers()
	controllers.Use(adderID, netconn.Instance(&adderImpl{}))
	client, _ := rmiPair(t, controllers)
	proxy := netconn.GetController[adder](client, adderID, adderStub)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			sum, err := proxy.Add(i, i)
			assert.NoError(t, err)
			assert.Equal(t, i+i, sum)
		}()
	}
	wg.Wait()
}

type stallingAdder struct{}

func (stallingAdder) Add(int, int) (int, error) {
	<-make(chan struct{}) // never returns; the request is received but never answered
	return 0, nil
}

func TestPendingCallCancelledOnClose(t *testing.T) {
	controllers := netconn.NewControllers()
	controllers.Use(adderID, netconn.Instance(stallingAdder{}))
	client, _ := rmiPair(t, controllers)
	proxy := netconn.GetController[adder](client, adderID, adderStub)

	errCh := make(chan error, 1)
	go func() {
		_, err := proxy.Add(1, 1)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond) // let the request reach the stalling handler
	require.NoError(t, client.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Equal(t, wire.KindOperationCancelled, wireKind(t, err))
	case <-time.After(time.Second):
		t.Fatal("call never returned after Close")
	}
}
