package netconn

// Controllers is the exported handle onto a controller registry: build one
// with NewControllers, register resolvers with Use, and hand the same
// *Controllers to every Connection a Server or Client constructs so they
// all share one resolution table (spec §4.3).
type Controllers struct {
	*controllerRegistry
}

// NewControllers builds an empty registry.
func NewControllers() *Controllers {
	return &Controllers{controllerRegistry: newControllerRegistry()}
}
