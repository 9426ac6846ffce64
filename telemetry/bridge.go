package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	sensorbridge "github.com/e7canasta/orion-care-sensor/modules/sensor-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// Option configures a Bridge at construction.
type Option func(*Bridge)

// WithLayer selects the native layer the bridge opens its channels on.
// The daemon's --sim mode passes a simulated layer here.
func WithLayer(lay phidget22.Layer) Option {
	return func(b *Bridge) { b.lay = lay }
}

// WithLogger sets the bridge logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithPublisher sets the event publisher sink. Without one, events are
// only logged.
func WithPublisher(p Publisher) Option {
	return func(b *Bridge) { b.pub = p }
}

// WithRecorder sets the time-series recorder sink.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) { b.rec = r }
}

// Bridge owns the configured sensor channels and forwards their events to
// the sinks. Start and Stop belong to a single owner goroutine; event
// forwarding runs on the device library's delivery threads.
type Bridge struct {
	cfg *Config
	lay phidget22.Layer
	log *slog.Logger
	pub Publisher
	rec Recorder

	chans []sensorbridge.Channel

	stopOnce sync.Once
	stopErr  error
}

// New creates a bridge for the given configuration.
func New(cfg *Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bridge{
		cfg: cfg,
		lay: phidget22.DefaultLayer(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("component", "sensor-bridge")
	return b, nil
}

// Start creates and opens every configured channel. On any failure the
// channels created so far are released before the error is returned.
func (b *Bridge) Start() error {
	for _, sc := range b.cfg.Sensors {
		ch, err := b.buildSensor(sc)
		if err != nil {
			sensorbridge.ReleaseAll(b.chans...)
			b.chans = nil
			return err
		}
		b.chans = append(b.chans, ch)
	}

	if err := sensorbridge.OpenWaitAll(b.cfg.OpenTimeout.Std(), b.chans...); err != nil {
		sensorbridge.ReleaseAll(b.chans...)
		b.chans = nil
		return err
	}

	// Data intervals can only be applied once the device is attached.
	for i, sc := range b.cfg.Sensors {
		if sc.DataInterval <= 0 {
			continue
		}
		if err := b.chans[i].SetDataInterval(sc.DataInterval.Std()); err != nil {
			b.log.Warn("setting data interval failed", "sensor", sc.ID, "error", err)
		}
	}

	b.log.Info("bridge started", "sensors", len(b.chans))
	return nil
}

// Stop releases every channel and closes the sinks. Idempotent; the first
// call's release error, if any, is returned.
func (b *Bridge) Stop() error {
	b.stopOnce.Do(func() {
		b.stopErr = sensorbridge.ReleaseAll(b.chans...)
		b.chans = nil
		if b.pub != nil {
			b.pub.Close()
		}
		if b.rec != nil {
			b.rec.Close()
		}
		b.log.Info("bridge stopped")
	})
	return b.stopErr
}

// buildSensor creates one channel of the configured kind, applies its
// selectors, and wires its handlers to the sinks.
func (b *Bridge) buildSensor(sc SensorConfig) (sensorbridge.Channel, error) {
	opts := []sensorbridge.ChannelOption{
		sensorbridge.WithLayer(b.lay),
		sensorbridge.WithLogger(b.log),
	}

	var (
		ch  sensorbridge.Channel
		err error
	)
	switch sc.Kind {
	case "temperature":
		var s *sensorbridge.TemperatureSensor
		if s, err = sensorbridge.NewTemperatureSensor(opts...); err == nil {
			err = errFirst(
				s.SetOnAttachHandler(func(*sensorbridge.TemperatureSensor) { b.status(sc, "attached") }),
				s.SetOnDetachHandler(func(*sensorbridge.TemperatureSensor) { b.status(sc, "detached") }),
				s.SetOnTemperatureChangeHandler(func(_ *sensorbridge.TemperatureSensor, v float64) {
					b.reading(sc, v, "°C")
				}),
			)
			ch = s
		}
	case "humidity":
		var s *sensorbridge.HumiditySensor
		if s, err = sensorbridge.NewHumiditySensor(opts...); err == nil {
			err = errFirst(
				s.SetOnAttachHandler(func(*sensorbridge.HumiditySensor) { b.status(sc, "attached") }),
				s.SetOnDetachHandler(func(*sensorbridge.HumiditySensor) { b.status(sc, "detached") }),
				s.SetOnHumidityChangeHandler(func(_ *sensorbridge.HumiditySensor, v float64) {
					b.reading(sc, v, "%RH")
				}),
			)
			ch = s
		}
	case "sound":
		var s *sensorbridge.SoundSensor
		if s, err = sensorbridge.NewSoundSensor(opts...); err == nil {
			err = errFirst(
				s.SetOnAttachHandler(func(*sensorbridge.SoundSensor) { b.status(sc, "attached") }),
				s.SetOnDetachHandler(func(*sensorbridge.SoundSensor) { b.status(sc, "detached") }),
				s.SetOnSPLChangeHandler(func(_ *sensorbridge.SoundSensor, db, _, _ float64, _ *[10]float64) {
					b.reading(sc, db, "dB")
				}),
			)
			ch = s
		}
	case "voltage":
		var s *sensorbridge.VoltageInput
		if s, err = sensorbridge.NewVoltageInput(opts...); err == nil {
			err = errFirst(
				s.SetOnAttachHandler(func(*sensorbridge.VoltageInput) { b.status(sc, "attached") }),
				s.SetOnDetachHandler(func(*sensorbridge.VoltageInput) { b.status(sc, "detached") }),
				s.SetOnVoltageChangeHandler(func(_ *sensorbridge.VoltageInput, v float64) {
					b.reading(sc, v, "V")
				}),
			)
			ch = s
		}
	default:
		return nil, fmt.Errorf("sensor-bridge: sensor %q has unknown kind %q", sc.ID, sc.Kind)
	}
	if err != nil {
		if ch != nil {
			ch.Release()
		}
		return nil, fmt.Errorf("sensor-bridge: wiring sensor %q: %w", sc.ID, err)
	}

	if err := applySelectors(ch, sc); err != nil {
		ch.Release()
		return nil, fmt.Errorf("sensor-bridge: configuring sensor %q: %w", sc.ID, err)
	}
	return ch, nil
}

// applySelectors targets the channel at the configured device before it
// is opened. -1 selectors keep the library's "match any" default.
func applySelectors(ch sensorbridge.Channel, sc SensorConfig) error {
	if sc.Serial >= 0 {
		if err := ch.SetSerialNumber(sc.Serial); err != nil {
			return err
		}
	}
	if sc.HubPort >= 0 {
		if err := ch.SetHubPort(sc.HubPort); err != nil {
			return err
		}
	}
	if sc.Channel >= 0 {
		if err := ch.SetChannelIndex(sc.Channel); err != nil {
			return err
		}
	}
	if sc.HubPortDevice {
		if err := ch.SetIsHubPortDevice(true); err != nil {
			return err
		}
	}
	return nil
}

// reading forwards one measurement to the sinks. Runs on a delivery
// thread.
func (b *Bridge) reading(sc SensorConfig, value float64, unit string) {
	r := Reading{
		SensorID: sc.ID,
		Kind:     sc.Kind,
		Value:    value,
		Unit:     unit,
		TraceID:  uuid.NewString(),
		Time:     time.Now().UTC(),
	}
	b.log.Debug("reading", "sensor", r.SensorID, "kind", r.Kind, "value", r.Value, "unit", r.Unit, "trace_id", r.TraceID)
	if b.pub != nil {
		if err := b.pub.PublishReading(r); err != nil {
			b.log.Warn("publishing reading failed", "sensor", r.SensorID, "error", err)
		}
	}
	if b.rec != nil {
		b.rec.Record(r)
	}
}

// status forwards a lifecycle transition to the publisher. Runs on a
// delivery thread.
func (b *Bridge) status(sc SensorConfig, state string) {
	s := StatusEvent{
		SensorID: sc.ID,
		Kind:     sc.Kind,
		State:    state,
		TraceID:  uuid.NewString(),
		Time:     time.Now().UTC(),
	}
	b.log.Info("sensor "+state, "sensor", s.SensorID, "kind", s.Kind, "trace_id", s.TraceID)
	if b.pub != nil {
		if err := b.pub.PublishStatus(s); err != nil {
			b.log.Warn("publishing status failed", "sensor", s.SensorID, "error", err)
		}
	}
}

// errFirst returns the first non-nil error.
func errFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
