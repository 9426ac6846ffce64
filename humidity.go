package sensorbridge

import (
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// HumidityChangeHandler receives relative-humidity change events. The
// sensor argument is a non-owning view, valid only for the duration of
// the call. Handlers run on the native delivery thread; a panic aborts
// the process.
type HumidityChangeHandler func(s *HumiditySensor, humidity float64)

// HumiditySensor is a phidget22 relative-humidity sensor channel.
type HumiditySensor struct {
	channel
}

// NewHumiditySensor creates a humidity sensor channel.
func NewHumiditySensor(opts ...ChannelOption) (*HumiditySensor, error) {
	ch, err := newChannel(phidget22.ChannelHumiditySensor, opts)
	if err != nil {
		return nil, err
	}
	return &HumiditySensor{channel: ch}, nil
}

// Humidity reads the most recent relative humidity in %RH. Fails with
// ErrNotAttached while the channel is not open.
func (s *HumiditySensor) Humidity() (float64, error) {
	return s.getFloat("humidity", phidget22.FloatPropHumidity)
}

// SetOnHumidityChangeHandler registers fn for humidity change events,
// replacing any previous registration. A nil fn removes the handler.
func (s *HumiditySensor) SetOnHumidityChangeHandler(fn HumidityChangeHandler) error {
	if fn == nil {
		return s.RemoveOnHumidityChangeHandler()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installFloatChange(&floatChangeCtx{invoke: func(h phidget22.Handle, value float64) {
		fn(&HumiditySensor{channel: view(lay, kind, h, log)}, value)
	}})
}

// RemoveOnHumidityChangeHandler removes the humidity change handler. Safe
// to call when none is registered.
func (s *HumiditySensor) RemoveOnHumidityChangeHandler() error {
	return s.removeFloatChange()
}

// SetOnAttachHandler registers fn for device attach events. A nil fn
// removes the handler.
func (s *HumiditySensor) SetOnAttachHandler(fn func(s *HumiditySensor)) error {
	if fn == nil {
		return s.removeAttach()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installAttach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&HumiditySensor{channel: view(lay, kind, h, log)})
	}})
}

// SetOnDetachHandler registers fn for device detach events. A nil fn
// removes the handler.
func (s *HumiditySensor) SetOnDetachHandler(fn func(s *HumiditySensor)) error {
	if fn == nil {
		return s.removeDetach()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installDetach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&HumiditySensor{channel: view(lay, kind, h, log)})
	}})
}
