// Package asterr defines the single error-kind model shared by every layer
// of the device SDK, from the BSON codec up to the connection FSM.
package asterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the result categories the SDK
// surfaces to callers. Callers should switch on Kind rather than comparing
// error strings.
type Kind int

const (
	// KindOK is never attached to a returned error; it exists so Kind's
	// zero value is distinguishable from a real failure.
	KindOK Kind = iota
	KindInvalidParam
	KindOutOfMemory
	KindInternal
	KindNotFound
	KindTimeout
	KindSocket
	KindTLS
	KindMQTT
	KindMQTTAlreadyConnecting
	KindMQTTAlreadyConnected
	KindDeviceNotReady
	KindHTTPRequest
	KindHTTPBody
	KindClientCertInvalid
	KindBSONTypeMismatch
	KindBSONInvalid
	KindQueueEmpty
	KindQueueFull
	KindOutdatedIntrospection
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindInvalidParam:
		return "invalid_param"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindInternal:
		return "internal"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindSocket:
		return "socket"
	case KindTLS:
		return "tls"
	case KindMQTT:
		return "mqtt"
	case KindMQTTAlreadyConnecting:
		return "mqtt_already_connecting"
	case KindMQTTAlreadyConnected:
		return "mqtt_already_connected"
	case KindDeviceNotReady:
		return "device_not_ready"
	case KindHTTPRequest:
		return "http_request"
	case KindHTTPBody:
		return "http_body"
	case KindClientCertInvalid:
		return "client_cert_invalid"
	case KindBSONTypeMismatch:
		return "bson_type_mismatch"
	case KindBSONInvalid:
		return "bson_invalid"
	case KindQueueEmpty:
		return "queue_empty"
	case KindQueueFull:
		return "queue_full"
	case KindOutdatedIntrospection:
		return "outdated_introspection"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every exported SDK
// operation. Op names the failing operation (e.g. "device.Connect");
// Kind stays machine-inspectable instead of being baked into a string.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error. err may be nil when the kind alone is
// sufficient context (e.g. QueueFull).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether target carries the same Kind, so callers can write
// errors.Is(err, asterr.New(asterr.KindNotFound, "", nil)).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err, returns KindOK for a nil err, or
// KindInternal if a non-nil err does not carry one (a bug in the caller,
// since every SDK-originated error carries a Kind).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return KindOK
	}
	return KindInternal
}
