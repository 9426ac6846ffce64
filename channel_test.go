package sensorbridge_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	sensorbridge "github.com/e7canasta/orion-care-sensor/modules/sensor-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/internal/callctx"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22/sim"
)

// newSim creates a simulated layer, optionally attaching on open.
func newSim(t *testing.T, attachOnOpen bool) *sim.Layer {
	t.Helper()
	return sim.New(sim.Config{AttachOnOpen: attachOnOpen})
}

// handleOf returns the single live handle on the layer.
func handleOf(t *testing.T, lay *sim.Layer) phidget22.Handle {
	t.Helper()
	hs := lay.Handles()
	if len(hs) != 1 {
		t.Fatalf("layer holds %d handles, want exactly 1", len(hs))
	}
	return hs[0]
}

// newTempOn creates a temperature sensor on the given simulated layer,
// failing the test on error.
func newTempOn(t *testing.T, lay phidget22.Layer) *sensorbridge.TemperatureSensor {
	t.Helper()
	s, err := sensorbridge.NewTemperatureSensor(sensorbridge.WithLayer(lay))
	if err != nil {
		t.Fatalf("NewTemperatureSensor: %v", err)
	}
	return s
}

func TestCallbackSlot_SingleLiveContext(t *testing.T) {
	lay := newSim(t, true)
	s := newTempOn(t, lay)
	base := callctx.Count()

	handler := func(*sensorbridge.TemperatureSensor, float64) {}

	// register -> one live context
	if err := s.SetOnTemperatureChangeHandler(handler); err != nil {
		t.Fatalf("set handler: %v", err)
	}
	if got := callctx.Count(); got != base+1 {
		t.Fatalf("after register: %d live contexts, want %d", got, base+1)
	}

	// re-register -> still exactly one
	if err := s.SetOnTemperatureChangeHandler(handler); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if got := callctx.Count(); got != base+1 {
		t.Fatalf("after re-register: %d live contexts, want %d", got, base+1)
	}

	// unregister -> zero
	if err := s.RemoveOnTemperatureChangeHandler(); err != nil {
		t.Fatalf("remove handler: %v", err)
	}
	if got := callctx.Count(); got != base {
		t.Fatalf("after remove: %d live contexts, want %d", got, base)
	}

	// removing again is a no-op, not a double free
	if err := s.RemoveOnTemperatureChangeHandler(); err != nil {
		t.Fatalf("second remove: %v", err)
	}

	// register once more, then teardown releases it
	if err := s.SetOnTemperatureChangeHandler(handler); err != nil {
		t.Fatalf("third register: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := callctx.Count(); got != base {
		t.Fatalf("after release: %d live contexts, want %d", got, base)
	}
}

func TestCallbackSlot_ReplaceSwitchesHandler(t *testing.T) {
	lay := newSim(t, true)
	s := newTempOn(t, lay)
	defer s.Release()

	var got []string
	if err := s.SetOnTemperatureChangeHandler(func(*sensorbridge.TemperatureSensor, float64) {
		got = append(got, "old")
	}); err != nil {
		t.Fatalf("set old handler: %v", err)
	}
	if err := s.SetOnTemperatureChangeHandler(func(*sensorbridge.TemperatureSensor, float64) {
		got = append(got, "new")
	}); err != nil {
		t.Fatalf("set new handler: %v", err)
	}

	h := handleOf(t, lay)
	lay.DeliverFloatChange(h, 21.0)

	if len(got) != 1 || got[0] != "new" {
		t.Fatalf("deliveries = %v, want [new]", got)
	}

	// The replacement deregistered natively before installing.
	calls := lay.Calls()
	clearIdx, setCount := -1, 0
	for i, c := range calls {
		if strings.HasPrefix(c, "clear_change_handler") {
			clearIdx = i
		}
		if strings.HasPrefix(c, "set_change_handler") {
			setCount++
		}
	}
	if setCount != 2 || clearIdx == -1 {
		t.Fatalf("calls = %v, want two installs with a clear between", calls)
	}
}

func TestRelease_OrderAfterOpen(t *testing.T) {
	lay := newSim(t, true)
	s := newTempOn(t, lay)

	if err := s.SetOnTemperatureChangeHandler(func(*sensorbridge.TemperatureSensor, float64) {}); err != nil {
		t.Fatalf("set handler: %v", err)
	}
	if err := s.OpenWait(time.Second); err != nil {
		t.Fatalf("open wait: %v", err)
	}

	lay.ResetCalls()
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	var seq []string
	for _, c := range lay.Calls() {
		switch {
		case strings.HasPrefix(c, "close"):
			seq = append(seq, "close")
		case strings.HasPrefix(c, "delete"):
			seq = append(seq, "delete")
		}
	}
	if len(seq) != 2 || seq[0] != "close" || seq[1] != "delete" {
		t.Fatalf("teardown sequence = %v, want [close delete]", seq)
	}
}

func TestRelease_NeverOpened(t *testing.T) {
	lay := newSim(t, false)
	s := newTempOn(t, lay)
	base := callctx.Count()

	if err := s.SetOnTemperatureChangeHandler(func(*sensorbridge.TemperatureSensor, float64) {}); err != nil {
		t.Fatalf("set handler: %v", err)
	}

	lay.ResetCalls()
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	deletes := 0
	for _, c := range lay.Calls() {
		if strings.HasPrefix(c, "close") {
			t.Fatalf("release of a never-opened channel issued close: %v", lay.Calls())
		}
		if strings.HasPrefix(c, "delete") {
			deletes++
		}
	}
	if deletes != 1 {
		t.Fatalf("release issued %d deletes, want 1", deletes)
	}
	if got := callctx.Count(); got != base {
		t.Fatalf("after release: %d live contexts, want %d", got, base)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	lay := newSim(t, true)
	s := newTempOn(t, lay)

	if err := s.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}

	deletes := 0
	for _, c := range lay.Calls() {
		if strings.HasPrefix(c, "delete") {
			deletes++
		}
	}
	if deletes != 1 {
		t.Fatalf("two releases issued %d deletes, want 1", deletes)
	}
}

func TestClose_IdempotentAndSafeUnopened(t *testing.T) {
	lay := newSim(t, false)
	s := newTempOn(t, lay)
	defer s.Release()

	if err := s.Close(); err != nil {
		t.Fatalf("close without open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := s.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	open, err := s.IsOpen()
	if err != nil || !open {
		t.Fatalf("IsOpen after open = (%v, %v), want (true, nil)", open, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close after open: %v", err)
	}
	open, err = s.IsOpen()
	if err != nil || open {
		t.Fatalf("IsOpen after close = (%v, %v), want (false, nil)", open, err)
	}
}

func TestOpenWait_ZeroTimeoutNeverAttaches(t *testing.T) {
	lay := newSim(t, false)
	s := newTempOn(t, lay)
	defer s.Release()

	start := time.Now()
	err := s.OpenWait(0)
	elapsed := time.Since(start)

	if !errors.Is(err, sensorbridge.ErrTimeout) {
		t.Fatalf("OpenWait error = %v, want ErrTimeout", err)
	}
	if elapsed > 100*time.Millisecond {
		t.Fatalf("OpenWait(0) blocked for %v, want immediate return", elapsed)
	}
}

func TestRead_RequiresAttachedState(t *testing.T) {
	lay := newSim(t, false)
	s := newTempOn(t, lay)
	defer s.Release()

	if _, err := s.Temperature(); !errors.Is(err, sensorbridge.ErrNotAttached) {
		t.Fatalf("read before attach: err = %v, want ErrNotAttached", err)
	}

	h := handleOf(t, lay)
	lay.DeliverAttach(h)
	lay.DeliverFloatChange(h, 22.5)

	v, err := s.Temperature()
	if err != nil {
		t.Fatalf("read after attach: %v", err)
	}
	if v != 22.5 {
		t.Fatalf("temperature = %v, want 22.5", v)
	}

	// Detach flips it back.
	lay.DeliverDetach(h)
	if _, err := s.Temperature(); !errors.Is(err, sensorbridge.ErrNotAttached) {
		t.Fatalf("read after detach: err = %v, want ErrNotAttached", err)
	}
}

func TestAttachDetachHandlers(t *testing.T) {
	lay := newSim(t, false)
	s := newTempOn(t, lay)
	defer s.Release()

	var events []string
	if err := s.SetOnAttachHandler(func(v *sensorbridge.TemperatureSensor) {
		attached, err := v.Attached()
		if err != nil || !attached {
			t.Errorf("view inside attach handler: attached=%v err=%v", attached, err)
		}
		events = append(events, "attach")
	}); err != nil {
		t.Fatalf("set attach handler: %v", err)
	}
	if err := s.SetOnDetachHandler(func(*sensorbridge.TemperatureSensor) {
		events = append(events, "detach")
	}); err != nil {
		t.Fatalf("set detach handler: %v", err)
	}

	h := handleOf(t, lay)
	lay.DeliverAttach(h)
	lay.DeliverDetach(h)
	lay.DeliverAttach(h)

	want := []string{"attach", "detach", "attach"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestView_CannotReleaseChannel(t *testing.T) {
	lay := newSim(t, true)
	s := newTempOn(t, lay)
	defer s.Release()

	if err := s.SetOnTemperatureChangeHandler(func(v *sensorbridge.TemperatureSensor, _ float64) {
		// The view shares the handle but does not own it.
		if err := v.Release(); err != nil {
			t.Errorf("view release: %v", err)
		}
	}); err != nil {
		t.Fatalf("set handler: %v", err)
	}
	if err := s.OpenWait(time.Second); err != nil {
		t.Fatalf("open wait: %v", err)
	}

	h := handleOf(t, lay)
	lay.DeliverFloatChange(h, 19.0)

	// The owning channel must still be fully functional.
	v, err := s.Temperature()
	if err != nil {
		t.Fatalf("read after view release attempt: %v", err)
	}
	if v != 19.0 {
		t.Fatalf("temperature = %v, want 19.0", v)
	}
	for _, c := range lay.Calls() {
		if strings.HasPrefix(c, "delete") {
			t.Fatalf("view release deleted the native handle: %v", lay.Calls())
		}
	}
}

func TestSelectors(t *testing.T) {
	lay := newSim(t, false)
	s := newTempOn(t, lay)
	defer s.Release()

	if err := s.SetSerialNumber(372201); err != nil {
		t.Fatalf("set serial: %v", err)
	}
	if err := s.SetHubPort(3); err != nil {
		t.Fatalf("set hub port: %v", err)
	}
	if err := s.SetChannelIndex(1); err != nil {
		t.Fatalf("set channel index: %v", err)
	}
	if err := s.SetIsHubPortDevice(true); err != nil {
		t.Fatalf("set hub port device: %v", err)
	}
	if err := s.SetDataInterval(500 * time.Millisecond); err != nil {
		t.Fatalf("set data interval: %v", err)
	}

	tests := []struct {
		name string
		got  func() (int32, error)
		want int32
	}{
		{"serial", s.SerialNumber, 372201},
		{"hub port", s.HubPort, 3},
		{"channel index", s.ChannelIndex, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := tc.got()
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if v != tc.want {
				t.Fatalf("got %d, want %d", v, tc.want)
			}
		})
	}

	iv, err := s.DataInterval()
	if err != nil {
		t.Fatalf("data interval: %v", err)
	}
	if iv != 500*time.Millisecond {
		t.Fatalf("data interval = %v, want 500ms", iv)
	}
}

func TestOpenWaitAllAndReleaseAll(t *testing.T) {
	lay := newSim(t, true)

	temp := newTempOn(t, lay)
	hum, err := sensorbridge.NewHumiditySensor(sensorbridge.WithLayer(lay))
	if err != nil {
		t.Fatalf("NewHumiditySensor: %v", err)
	}
	snd, err := sensorbridge.NewSoundSensor(sensorbridge.WithLayer(lay))
	if err != nil {
		t.Fatalf("NewSoundSensor: %v", err)
	}

	chans := []sensorbridge.Channel{temp, hum, snd}
	if err := sensorbridge.OpenWaitAll(time.Second, chans...); err != nil {
		t.Fatalf("OpenWaitAll: %v", err)
	}
	for _, ch := range chans {
		attached, err := ch.Attached()
		if err != nil || !attached {
			t.Fatalf("%s not attached after OpenWaitAll (err=%v)", ch.Kind(), err)
		}
	}

	if err := sensorbridge.ReleaseAll(chans...); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	deletes := 0
	for _, c := range lay.Calls() {
		if strings.HasPrefix(c, "delete") {
			deletes++
		}
	}
	if deletes != len(chans) {
		t.Fatalf("ReleaseAll issued %d deletes, want %d", deletes, len(chans))
	}
}
