package netconn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coregx/netconn"
)

type echoController struct{}

func (echoController) Echo(s string) (string, error) { return s, nil }

func TestConstructorResolverIsLazy(t *testing.T) {
	controllers := netconn.NewControllers()
	built := 0
	controllers.Use("counter", netconn.Constructor(func() any {
		built++
		return &echoController{}
	}))
	assert.Equal(t, 0, built, "a resolver must not run until a request asks for the controller")
}

func TestFactoryResolverIsLazy(t *testing.T) {
	controllers := netconn.NewControllers()
	var seen *netconn.Connection
	controllers.Use("factory", netconn.Factory(func(c *netconn.Connection) (any, error) {
		seen = c
		return &echoController{}, nil
	}))
	assert.Nil(t, seen, "a resolver must not run until a request asks for the controller")
}

func TestIdentifyDerivesStableControllerID(t *testing.T) {
	type Adder interface {
		Add(a, b int) (int, error)
	}
	id1 := netconn.Identify((*Adder)(nil), "example.com/adder")
	id2 := netconn.Identify((*Adder)(nil), "example.com/adder")
	assert.Equal(t, id1, id2)
	assert.Contains(t, string(id1), "Adder")
}
