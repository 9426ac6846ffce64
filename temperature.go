package sensorbridge

import (
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// TemperatureChangeHandler receives temperature change events. The sensor
// argument is a non-owning view of the channel, valid only for the
// duration of the call; it may be read from but never released.
//
// Handlers run on the native library's delivery thread, concurrently with
// the owner goroutine. Captured state must be safe for that. A panic in
// the handler aborts the process.
type TemperatureChangeHandler func(s *TemperatureSensor, temperature float64)

// TemperatureSensor is a phidget22 temperature sensor channel.
type TemperatureSensor struct {
	channel
}

// NewTemperatureSensor creates a temperature sensor channel.
func NewTemperatureSensor(opts ...ChannelOption) (*TemperatureSensor, error) {
	ch, err := newChannel(phidget22.ChannelTemperatureSensor, opts)
	if err != nil {
		return nil, err
	}
	return &TemperatureSensor{channel: ch}, nil
}

// Temperature reads the most recent temperature in °C. Fails with
// ErrNotAttached while the channel is not open.
func (s *TemperatureSensor) Temperature() (float64, error) {
	return s.getFloat("temperature", phidget22.FloatPropTemperature)
}

// SetOnTemperatureChangeHandler registers fn for temperature change
// events, replacing any previous registration. A nil fn removes the
// handler.
func (s *TemperatureSensor) SetOnTemperatureChangeHandler(fn TemperatureChangeHandler) error {
	if fn == nil {
		return s.RemoveOnTemperatureChangeHandler()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installFloatChange(&floatChangeCtx{invoke: func(h phidget22.Handle, value float64) {
		v := &TemperatureSensor{channel: view(lay, kind, h, log)}
		fn(v, value)
	}})
}

// RemoveOnTemperatureChangeHandler removes the temperature change handler.
// Safe to call when none is registered.
func (s *TemperatureSensor) RemoveOnTemperatureChangeHandler() error {
	return s.removeFloatChange()
}

// SetOnAttachHandler registers fn for device attach events, replacing any
// previous registration. A nil fn removes the handler. Registration is
// legal in any state; the handler fires on the next attach.
func (s *TemperatureSensor) SetOnAttachHandler(fn func(s *TemperatureSensor)) error {
	if fn == nil {
		return s.removeAttach()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installAttach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&TemperatureSensor{channel: view(lay, kind, h, log)})
	}})
}

// SetOnDetachHandler registers fn for device detach events, replacing any
// previous registration. A nil fn removes the handler.
func (s *TemperatureSensor) SetOnDetachHandler(fn func(s *TemperatureSensor)) error {
	if fn == nil {
		return s.removeDetach()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installDetach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&TemperatureSensor{channel: view(lay, kind, h, log)})
	}})
}
