package sensorbridge

import (
	"errors"
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// Sentinel errors for the failure modes callers branch on. Native failures
// are always returned as *NativeError; errors.Is matches these sentinels
// through it.
var (
	// ErrTimeout reports that OpenWait exceeded its deadline without the
	// device attaching.
	ErrTimeout = errors.New("sensor-bridge: timeout waiting for attach")

	// ErrNotAttached reports a data read on a channel that is not in the
	// attached (open) state.
	ErrNotAttached = errors.New("sensor-bridge: channel not attached")

	// ErrUnsupported reports an operation the underlying library or
	// device generation does not implement.
	ErrUnsupported = errors.New("sensor-bridge: not supported by this channel")
)

// NativeError wraps a non-success status from a native call. It carries
// the operation name for context and the original numeric code so logs
// can be matched against the vendor documentation.
type NativeError struct {
	Op   string
	Code phidget22.Status
}

// Error implements the error interface.
func (e *NativeError) Error() string {
	return fmt.Sprintf("sensor-bridge: %s failed: %s (code %#x)", e.Op, e.Code, int32(e.Code))
}

// Unwrap maps well-known native codes onto the package sentinels so
// callers can use errors.Is without inspecting numeric codes.
func (e *NativeError) Unwrap() error {
	switch e.Code {
	case phidget22.StatusTimeout:
		return ErrTimeout
	case phidget22.StatusNotAttached:
		return ErrNotAttached
	case phidget22.StatusUnsupported:
		return ErrUnsupported
	default:
		return nil
	}
}

// PayloadShapeError reports a native-supplied bounded array that did not
// match its declared fixed length. The vendor contract fixes these
// lengths, so a mismatch is a corrupted delivery; trampolines panic with
// it rather than hand truncated data to a handler.
type PayloadShapeError struct {
	Event string
	Want  int
	Got   int
}

// Error implements the error interface.
func (e *PayloadShapeError) Error() string {
	return fmt.Sprintf("sensor-bridge: %s payload has %d elements, want %d", e.Event, e.Got, e.Want)
}

// statusError translates a native status into an error, or nil on success.
func statusError(op string, st phidget22.Status) error {
	if st.OK() {
		return nil
	}
	return &NativeError{Op: op, Code: st}
}
