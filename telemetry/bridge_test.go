package telemetry_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22/sim"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/telemetry"
)

// fakeSink implements Publisher and Recorder, recording everything it
// receives. Safe for delivery-thread calls like the real sinks.
type fakeSink struct {
	mu       sync.Mutex
	readings []telemetry.Reading
	statuses []telemetry.StatusEvent
	recorded []telemetry.Reading
	closed   int
	pubErr   error
}

func (f *fakeSink) PublishReading(r telemetry.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeSink) PublishStatus(s telemetry.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, s)
	return nil
}

func (f *fakeSink) Record(r telemetry.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, r)
}

func (f *fakeSink) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.OpenTimeout = telemetry.Duration(time.Second)
	cfg.Sensors = []telemetry.SensorConfig{
		{ID: "room-temp", Kind: "temperature", Serial: -1, HubPort: -1, Channel: -1},
		{ID: "room-sound", Kind: "sound", Serial: -1, HubPort: -1, Channel: -1},
	}
	return cfg
}

func startBridge(t *testing.T, cfg *telemetry.Config, lay *sim.Layer, sink *fakeSink) *telemetry.Bridge {
	t.Helper()
	b, err := telemetry.New(cfg,
		telemetry.WithLayer(lay),
		telemetry.WithLogger(quietLogger()),
		telemetry.WithPublisher(sink),
		telemetry.WithRecorder(sink),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return b
}

func TestBridge_ForwardsReadings(t *testing.T) {
	lay := sim.New(sim.Config{AttachOnOpen: true})
	sink := &fakeSink{}
	b := startBridge(t, testConfig(), lay, sink)
	defer b.Stop()

	hs := lay.Handles()
	if len(hs) != 2 {
		t.Fatalf("bridge opened %d channels, want 2", len(hs))
	}

	lay.DeliverFloatChange(hs[0], 21.4)
	lay.DeliverSPLChange(hs[1], 48.2, 0, 0, make([]float64, 10))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.readings) != 2 {
		t.Fatalf("published %d readings, want 2: %+v", len(sink.readings), sink.readings)
	}

	tests := []struct {
		idx   int
		id    string
		kind  string
		value float64
		unit  string
	}{
		{0, "room-temp", "temperature", 21.4, "°C"},
		{1, "room-sound", "sound", 48.2, "dB"},
	}
	for _, tc := range tests {
		r := sink.readings[tc.idx]
		if r.SensorID != tc.id || r.Kind != tc.kind || r.Value != tc.value || r.Unit != tc.unit {
			t.Errorf("reading %d = %+v, want id=%s kind=%s value=%v unit=%s",
				tc.idx, r, tc.id, tc.kind, tc.value, tc.unit)
		}
		if r.TraceID == "" {
			t.Errorf("reading %d has no trace id", tc.idx)
		}
		if r.Time.IsZero() {
			t.Errorf("reading %d has no timestamp", tc.idx)
		}
	}

	// Every published reading was also recorded.
	if len(sink.recorded) != len(sink.readings) {
		t.Fatalf("recorded %d readings, want %d", len(sink.recorded), len(sink.readings))
	}
}

func TestBridge_PublishesStatusOnAttach(t *testing.T) {
	lay := sim.New(sim.Config{AttachOnOpen: true})
	sink := &fakeSink{}
	b := startBridge(t, testConfig(), lay, sink)
	defer b.Stop()

	sink.mu.Lock()
	attached := 0
	for _, s := range sink.statuses {
		if s.State == "attached" {
			attached++
		}
	}
	sink.mu.Unlock()
	if attached != 2 {
		t.Fatalf("published %d attach events, want 2", attached)
	}

	lay.DeliverDetach(lay.Handles()[0])
	sink.mu.Lock()
	last := sink.statuses[len(sink.statuses)-1]
	sink.mu.Unlock()
	if last.State != "detached" || last.SensorID != "room-temp" {
		t.Fatalf("last status = %+v, want detached room-temp", last)
	}
}

func TestBridge_StopReleasesChannelsAndSinks(t *testing.T) {
	lay := sim.New(sim.Config{AttachOnOpen: true})
	sink := &fakeSink{}
	b := startBridge(t, testConfig(), lay, sink)

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := len(lay.Handles()); n != 0 {
		t.Fatalf("layer still holds %d handles after Stop", n)
	}
	// Publisher and recorder are the same fake, so one Close each.
	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if closed != 2 {
		t.Fatalf("sink closed %d times, want 2", closed)
	}

	// Stop is idempotent.
	if err := b.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	sink.mu.Lock()
	closed = sink.closed
	sink.mu.Unlock()
	if closed != 2 {
		t.Fatalf("second Stop closed the sinks again (%d closes)", closed)
	}
}

func TestBridge_StartFailureReleasesPartialChannels(t *testing.T) {
	// Never attaches: OpenWaitAll must time out and clean up.
	lay := sim.New(sim.Config{})
	cfg := testConfig()
	cfg.OpenTimeout = telemetry.Duration(time.Millisecond)

	b, err := telemetry.New(cfg, telemetry.WithLayer(lay), telemetry.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(); err == nil {
		t.Fatal("Start succeeded against a never-attaching layer")
	}
	if n := len(lay.Handles()); n != 0 {
		t.Fatalf("failed Start leaked %d handles", n)
	}
}

func TestBridge_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Sensors[1].ID = "room-temp" // duplicate

	if _, err := telemetry.New(cfg, telemetry.WithLogger(quietLogger())); err == nil {
		t.Fatal("New accepted a config with duplicate sensor ids")
	}
}

func TestBridge_PublishErrorDoesNotStopRecording(t *testing.T) {
	lay := sim.New(sim.Config{AttachOnOpen: true})
	sink := &fakeSink{pubErr: errors.New("broker gone")}
	cfg := testConfig()
	cfg.Sensors = cfg.Sensors[:1]
	b := startBridge(t, cfg, lay, sink)
	defer b.Stop()

	lay.DeliverFloatChange(lay.Handles()[0], 19.9)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.readings) != 0 {
		t.Fatalf("publish succeeded despite forced error: %+v", sink.readings)
	}
	if len(sink.recorded) != 1 {
		t.Fatalf("recorded %d readings, want 1", len(sink.recorded))
	}
}
