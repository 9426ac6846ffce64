package sensorbridge

import (
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// VoltageChangeHandler receives voltage change events. The input argument
// is a non-owning view, valid only for the duration of the call. Handlers
// run on the native delivery thread; a panic aborts the process.
type VoltageChangeHandler func(in *VoltageInput, voltage float64)

// VoltageInput is a phidget22 analog voltage input channel.
type VoltageInput struct {
	channel
}

// NewVoltageInput creates a voltage input channel.
func NewVoltageInput(opts ...ChannelOption) (*VoltageInput, error) {
	ch, err := newChannel(phidget22.ChannelVoltageInput, opts)
	if err != nil {
		return nil, err
	}
	return &VoltageInput{channel: ch}, nil
}

// Voltage reads the most recent voltage in volts. Fails with
// ErrNotAttached while the channel is not open.
func (in *VoltageInput) Voltage() (float64, error) {
	return in.getFloat("voltage", phidget22.FloatPropVoltage)
}

// SetOnVoltageChangeHandler registers fn for voltage change events,
// replacing any previous registration. A nil fn removes the handler.
func (in *VoltageInput) SetOnVoltageChangeHandler(fn VoltageChangeHandler) error {
	if fn == nil {
		return in.RemoveOnVoltageChangeHandler()
	}
	lay, kind, log := in.lay, in.kind, in.log
	return in.installFloatChange(&floatChangeCtx{invoke: func(h phidget22.Handle, value float64) {
		fn(&VoltageInput{channel: view(lay, kind, h, log)}, value)
	}})
}

// RemoveOnVoltageChangeHandler removes the voltage change handler. Safe to
// call when none is registered.
func (in *VoltageInput) RemoveOnVoltageChangeHandler() error {
	return in.removeFloatChange()
}

// SetOnAttachHandler registers fn for device attach events. A nil fn
// removes the handler.
func (in *VoltageInput) SetOnAttachHandler(fn func(in *VoltageInput)) error {
	if fn == nil {
		return in.removeAttach()
	}
	lay, kind, log := in.lay, in.kind, in.log
	return in.installAttach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&VoltageInput{channel: view(lay, kind, h, log)})
	}})
}

// SetOnDetachHandler registers fn for device detach events. A nil fn
// removes the handler.
func (in *VoltageInput) SetOnDetachHandler(fn func(in *VoltageInput)) error {
	if fn == nil {
		return in.removeDetach()
	}
	lay, kind, log := in.lay, in.kind, in.log
	return in.installDetach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&VoltageInput{channel: view(lay, kind, h, log)})
	}})
}
