package phidget22

// Status is a phidget22 native return code. Zero means success; every
// other value is a failure the caller must surface.
//
// The numbering mirrors the PhidgetReturnCode values from phidget22.h so
// that a logged code can be looked up directly in the vendor docs.
type Status int32

const (
	StatusOK            Status = 0x00
	StatusPerm          Status = 0x01
	StatusNoAccess      Status = 0x02
	StatusTimeout       Status = 0x03
	StatusOutOfBounds   Status = 0x04
	StatusInterrupted   Status = 0x05
	StatusIO            Status = 0x06
	StatusNoMemory      Status = 0x07
	StatusFault         Status = 0x09
	StatusBusy          Status = 0x0A
	StatusDuplicate     Status = 0x15
	StatusUnsupported   Status = 0x20
	StatusWrongDevice   Status = 0x32
	StatusUnknownVal    Status = 0x33
	StatusNotAttached   Status = 0x34
	StatusInvalidPacket Status = 0x35
	StatusBadVersion    Status = 0x36
	StatusClosed        Status = 0x38
)

// OK reports whether the status is a success.
func (s Status) OK() bool {
	return s == StatusOK
}

// String returns the symbolic name of the status for logs and errors.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPerm:
		return "not permitted"
	case StatusNoAccess:
		return "no access"
	case StatusTimeout:
		return "timeout"
	case StatusOutOfBounds:
		return "out of bounds"
	case StatusInterrupted:
		return "interrupted"
	case StatusIO:
		return "i/o error"
	case StatusNoMemory:
		return "out of memory"
	case StatusFault:
		return "fault"
	case StatusBusy:
		return "busy"
	case StatusDuplicate:
		return "duplicate"
	case StatusUnsupported:
		return "unsupported"
	case StatusWrongDevice:
		return "wrong device"
	case StatusUnknownVal:
		return "value unknown"
	case StatusNotAttached:
		return "not attached"
	case StatusInvalidPacket:
		return "invalid packet"
	case StatusBadVersion:
		return "bad version"
	case StatusClosed:
		return "closed"
	default:
		return "unknown status"
	}
}
