// Package auth implements the credential-exchange handshake that a Server
// and Client run immediately after TCP/TLS setup and before any RMI or
// application traffic, per spec §6.2.
package auth

import "errors"

// ErrRejected is the Cause of a KindClientAuthentication error produced
// when the server's acknowledgement frame carries false.
var ErrRejected = errors.New("auth: server rejected the presented credentials")

// ErrMalformedCredentials is the Cause of a KindClientAuthentication error
// produced when the handshake frame is non-empty but does not carry a
// Credentials object (spec §6.2 step 2).
var ErrMalformedCredentials = errors.New("auth: handshake frame did not carry a Credentials object")

// Credentials carries the client's identity across the handshake. The zero
// value is "no credentials": a client configured without any carries the
// Empty/DBNull frame instead of an Object frame (spec §6.2).
type Credentials struct {
	UserName string
	Password string
	Token    string
}

// IsZero reports whether c carries no identity at all.
func (c Credentials) IsZero() bool {
	return c.UserName == "" && c.Password == "" && c.Token == ""
}
