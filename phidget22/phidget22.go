package phidget22

import "time"

// Handle is an opaque token identifying one native channel resource.
// A zero Handle is invalid. Handles are exclusively owned: exactly one
// channel object holds a given Handle between Create and Delete.
type Handle uintptr

// InvalidHandle is the zero, never-valid handle value.
const InvalidHandle Handle = 0

// ChannelKind identifies which phidget22 channel class a handle belongs to.
type ChannelKind int

const (
	// ChannelTemperatureSensor is a temperature sensor channel.
	ChannelTemperatureSensor ChannelKind = iota + 1
	// ChannelHumiditySensor is a relative-humidity sensor channel.
	ChannelHumiditySensor
	// ChannelSoundSensor is a sound pressure (SPL) sensor channel.
	ChannelSoundSensor
	// ChannelVoltageInput is an analog voltage input channel.
	ChannelVoltageInput
)

// String returns a short identifier used in logs, topics, and config files.
func (k ChannelKind) String() string {
	switch k {
	case ChannelTemperatureSensor:
		return "temperature"
	case ChannelHumiditySensor:
		return "humidity"
	case ChannelSoundSensor:
		return "sound"
	case ChannelVoltageInput:
		return "voltage"
	default:
		return "unknown"
	}
}

// FloatProp selects a float-valued native property.
type FloatProp int

const (
	// FloatPropTemperature is the most recent temperature in °C.
	FloatPropTemperature FloatProp = iota + 1
	// FloatPropHumidity is the most recent relative humidity in %RH.
	FloatPropHumidity
	// FloatPropDB is the most recent dB SPL value.
	FloatPropDB
	// FloatPropDBA is the A-weighted dB SPL value.
	FloatPropDBA
	// FloatPropDBC is the C-weighted dB SPL value.
	FloatPropDBC
	// FloatPropVoltage is the most recent voltage in V.
	FloatPropVoltage
)

// IntProp selects an integer-valued native property.
type IntProp int

const (
	// IntPropSerialNumber is the device serial number selector.
	IntPropSerialNumber IntProp = iota + 1
	// IntPropHubPort is the VINT hub port selector.
	IntPropHubPort
	// IntPropChannel is the channel index selector.
	IntPropChannel
	// IntPropDataInterval is the event data interval in milliseconds.
	IntPropDataInterval
)

// BoolProp selects a boolean-valued native property.
type BoolProp int

const (
	// BoolPropAttached reports whether the channel is attached to hardware.
	BoolPropAttached BoolProp = iota + 1
	// BoolPropIsHubPortDevice selects opening a hub port directly as the device.
	BoolPropIsHubPortDevice
	// BoolPropIsOpen reports whether the channel has been opened and not
	// yet closed, independent of attachment.
	BoolPropIsOpen
)

// Callback function shapes. These mirror the C callback signatures exactly:
// the native handle, the registered context token, then the event payload by
// value. Registration with a nil function and zero context deregisters.
//
// The functions installed here are invoked from the native library's own
// delivery threads, concurrently with the owner goroutine.
type (
	// AttachFunc receives device attach events.
	AttachFunc func(h Handle, ctx uintptr)

	// DetachFunc receives device detach events.
	DetachFunc func(h Handle, ctx uintptr)

	// FloatChangeFunc receives scalar data-change events (temperature,
	// humidity, voltage).
	FloatChangeFunc func(h Handle, ctx uintptr, value float64)

	// SPLChangeFunc receives sound pressure change events. The octaves
	// slice is the native octave-band array; the library contract fixes
	// its length at 10 elements.
	SPLChangeFunc func(h Handle, ctx uintptr, db, dba, dbc float64, octaves []float64)
)

// Layer is the native call surface one channel kind at a time. Every
// method translates to exactly one native call and returns its status.
//
// Implementations must be safe for concurrent use: property reads and
// callback delivery happen on native threads while the owner goroutine
// issues lifecycle calls.
type Layer interface {
	// Create allocates a native channel of the given kind.
	Create(kind ChannelKind) (Handle, Status)

	// Delete releases the native channel and zeroes the handle.
	// The library guarantees no callback fires after Delete returns.
	Delete(h *Handle) Status

	// Open requests an asynchronous attach and returns immediately.
	Open(h Handle) Status

	// OpenWait requests an attach and blocks until the device attaches
	// or the timeout elapses (StatusTimeout).
	OpenWait(h Handle, timeout time.Duration) Status

	// Close detaches the channel. Closing a never-opened or already
	// closed channel is a native-level no-op returning StatusOK.
	Close(h Handle) Status

	// Property accessors. A read before attach returns StatusNotAttached
	// (or StatusUnknownVal when no data has arrived yet).
	GetFloat(h Handle, prop FloatProp) (float64, Status)
	SetFloat(h Handle, prop FloatProp, v float64) Status
	GetInt(h Handle, prop IntProp) (int32, Status)
	SetInt(h Handle, prop IntProp, v int32) Status
	GetBool(h Handle, prop BoolProp) (bool, Status)
	SetBool(h Handle, prop BoolProp, v bool) Status

	// Event registration. fn may only be a top-level trampoline function;
	// ctx is an address-sized token the layer passes back verbatim on
	// every delivery. nil fn with zero ctx deregisters.
	SetAttachHandler(h Handle, fn AttachFunc, ctx uintptr) Status
	SetDetachHandler(h Handle, fn DetachFunc, ctx uintptr) Status
	SetFloatChangeHandler(h Handle, fn FloatChangeFunc, ctx uintptr) Status
	SetSPLChangeHandler(h Handle, fn SPLChangeFunc, ctx uintptr) Status
}
