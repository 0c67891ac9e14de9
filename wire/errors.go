package wire

import "fmt"

// Kind enumerates the error taxonomy of spec §7. It is not a Go error
// itself — it is carried inside Error so callers can switch on it without
// string-matching.
type Kind int

const (
	// KindConnectionOpen: TCP/TLS failed before the handshake completed.
	KindConnectionOpen Kind = iota + 1
	// KindClientAuthentication: the credential exchange was rejected.
	KindClientAuthentication
	// KindConnectionBroken: remote closed or mid-frame I/O error. Fatal.
	KindConnectionBroken
	// KindProtocolViolation: a framing invariant was violated. Fatal.
	KindProtocolViolation
	// KindSerializationError: a frame's payload could not be encoded or
	// decoded. Non-fatal; correlated to an RMI exchange when possible.
	KindSerializationError
	// KindSerializationTypeNotFound: an Object frame named a type unknown
	// to this peer's Registry.
	KindSerializationTypeNotFound
	// KindOperationCancelled: an RMI call or a pending read/write was
	// released because the connection shut down.
	KindOperationCancelled
	// KindDataReceivingError: a read error arrived correlated to a
	// specific outstanding RMI call.
	KindDataReceivingError
	// KindControllerNotFound: no controller resolved for the requested
	// identifier.
	KindControllerNotFound
	// KindMethodNotFound: no method matched name/arity/parameter types.
	KindMethodNotFound
	// KindMethodInvokeException: the resolved method itself returned or
	// panicked with an error.
	KindMethodInvokeException
	// KindObjectDisposed: the operation was attempted after Close/Broken.
	KindObjectDisposed
)

func (k Kind) String() string {
	switch k {
	case KindConnectionOpen:
		return "ConnectionOpen"
	case KindClientAuthentication:
		return "ClientAuthentication"
	case KindConnectionBroken:
		return "ConnectionBroken"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindSerializationError:
		return "SerializationError"
	case KindSerializationTypeNotFound:
		return "SerializationTypeNotFound"
	case KindOperationCancelled:
		return "OperationCancelled"
	case KindDataReceivingError:
		return "DataReceivingError"
	case KindControllerNotFound:
		return "ControllerNotFound"
	case KindMethodNotFound:
		return "MethodNotFound"
	case KindMethodInvokeException:
		return "MethodInvokeException"
	case KindObjectDisposed:
		return "ObjectDisposed"
	default:
		return "Unknown"
	}
}

// Error is the protocol-level error type shared across wire, netconn,
// server, and client. MessageID/InResponseToID are preserved whenever the
// failure happened while encoding or decoding a specific frame, so a
// caller can route the failure to the right waiter or reply to the right
// remote caller (spec §4.2.3).
type Error struct {
	Kind           Kind
	MessageID      int32
	InResponseToID int32
	TypeName       string
	Message        string
	Cause          error
}

func (e *Error) Error() string {
	if e.TypeName != "" {
		return fmt.Sprintf("wire: %s: %s (type %q)", e.Kind, e.Message, e.TypeName)
	}
	return fmt.Sprintf("wire: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error of the given Kind, optionally wrapping cause.
func NewError(kind Kind, msgID, inResponseTo int32, typeName string, cause error) *Error {
	e := &Error{Kind: kind, MessageID: msgID, InResponseToID: inResponseTo, TypeName: typeName, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}
