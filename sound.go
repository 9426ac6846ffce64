package sensorbridge

import (
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// SPLChangeHandler receives sound pressure change events: the unweighted
// dB value, the A- and C-weighted values, and the ten octave-band levels.
// The sensor argument is a non-owning view, valid only for the duration
// of the call. Handlers run on the native delivery thread; a panic aborts
// the process.
type SPLChangeHandler func(s *SoundSensor, db, dba, dbc float64, octaves *[10]float64)

// SoundSensor is a phidget22 sound pressure (SPL) sensor channel.
type SoundSensor struct {
	channel
}

// NewSoundSensor creates a sound sensor channel.
func NewSoundSensor(opts ...ChannelOption) (*SoundSensor, error) {
	ch, err := newChannel(phidget22.ChannelSoundSensor, opts)
	if err != nil {
		return nil, err
	}
	return &SoundSensor{channel: ch}, nil
}

// DB reads the most recent dB SPL value. Fails with ErrNotAttached while
// the channel is not open.
func (s *SoundSensor) DB() (float64, error) {
	return s.getFloat("dB", phidget22.FloatPropDB)
}

// DBA reads the most recent A-weighted dB SPL value.
//
// The current vendor library generation does not expose this read; it
// fails with ErrUnsupported. The value is still delivered through SPL
// change events.
func (s *SoundSensor) DBA() (float64, error) {
	return s.getFloat("dBA", phidget22.FloatPropDBA)
}

// DBC reads the most recent C-weighted dB SPL value.
//
// Like DBA, this read fails with ErrUnsupported on the current vendor
// library generation; use SPL change events instead.
func (s *SoundSensor) DBC() (float64, error) {
	return s.getFloat("dBC", phidget22.FloatPropDBC)
}

// SetOnSPLChangeHandler registers fn for SPL change events, replacing any
// previous registration. A nil fn removes the handler.
func (s *SoundSensor) SetOnSPLChangeHandler(fn SPLChangeHandler) error {
	if fn == nil {
		return s.RemoveOnSPLChangeHandler()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installSPLChange(&splChangeCtx{invoke: func(h phidget22.Handle, db, dba, dbc float64, octaves *[10]float64) {
		fn(&SoundSensor{channel: view(lay, kind, h, log)}, db, dba, dbc, octaves)
	}})
}

// RemoveOnSPLChangeHandler removes the SPL change handler. Safe to call
// when none is registered.
func (s *SoundSensor) RemoveOnSPLChangeHandler() error {
	return s.removeSPLChange()
}

// SetOnAttachHandler registers fn for device attach events. A nil fn
// removes the handler.
func (s *SoundSensor) SetOnAttachHandler(fn func(s *SoundSensor)) error {
	if fn == nil {
		return s.removeAttach()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installAttach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&SoundSensor{channel: view(lay, kind, h, log)})
	}})
}

// SetOnDetachHandler registers fn for device detach events. A nil fn
// removes the handler.
func (s *SoundSensor) SetOnDetachHandler(fn func(s *SoundSensor)) error {
	if fn == nil {
		return s.removeDetach()
	}
	lay, kind, log := s.lay, s.kind, s.log
	return s.installDetach(&eventCtx{invoke: func(h phidget22.Handle) {
		fn(&SoundSensor{channel: view(lay, kind, h, log)})
	}})
}
