package sensorbridge_test

import (
	"errors"
	"testing"
	"time"

	sensorbridge "github.com/e7canasta/orion-care-sensor/modules/sensor-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22/sim"
)

func newSoundOn(t *testing.T, attachOnOpen bool) (*sensorbridge.SoundSensor, *sim.Layer) {
	t.Helper()
	lay := newSim(t, attachOnOpen)
	s, err := sensorbridge.NewSoundSensor(sensorbridge.WithLayer(lay))
	if err != nil {
		t.Fatalf("NewSoundSensor: %v", err)
	}
	return s, lay
}

func TestSound_SPLPayloadRoundTrip(t *testing.T) {
	s, lay := newSoundOn(t, true)
	defer s.Release()

	var (
		gotDB, gotDBA, gotDBC float64
		gotOctaves            [10]float64
		fired                 int
	)
	if err := s.SetOnSPLChangeHandler(func(_ *sensorbridge.SoundSensor, db, dba, dbc float64, octaves *[10]float64) {
		gotDB, gotDBA, gotDBC = db, dba, dbc
		gotOctaves = *octaves
		fired++
	}); err != nil {
		t.Fatalf("set SPL handler: %v", err)
	}
	if err := s.OpenWait(time.Second); err != nil {
		t.Fatalf("open wait: %v", err)
	}

	octaves := []float64{31.5, 40, 42.5, 50, 55, 48, 44, 39, 36, 30}
	lay.DeliverSPLChange(handleOf(t, lay), 62.1, 60.4, 61.8, octaves)

	if fired != 1 {
		t.Fatalf("handler fired %d times, want 1", fired)
	}
	if gotDB != 62.1 || gotDBA != 60.4 || gotDBC != 61.8 {
		t.Fatalf("scalars = (%v, %v, %v), want (62.1, 60.4, 61.8)", gotDB, gotDBA, gotDBC)
	}
	for i, v := range octaves {
		if gotOctaves[i] != v {
			t.Fatalf("octaves = %v, want %v", gotOctaves, octaves)
		}
	}

	// The latest unweighted SPL is readable after delivery.
	db, err := s.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	if db != 62.1 {
		t.Fatalf("DB = %v, want 62.1", db)
	}
}

func TestSound_MalformedOctavePayloadPanics(t *testing.T) {
	s, lay := newSoundOn(t, true)
	defer s.Release()

	if err := s.SetOnSPLChangeHandler(func(*sensorbridge.SoundSensor, float64, float64, float64, *[10]float64) {
		t.Error("handler invoked with malformed payload")
	}); err != nil {
		t.Fatalf("set SPL handler: %v", err)
	}
	if err := s.OpenWait(time.Second); err != nil {
		t.Fatalf("open wait: %v", err)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("truncated octave payload did not panic")
		}
		var shape *sensorbridge.PayloadShapeError
		err, ok := r.(error)
		if !ok || !errors.As(err, &shape) {
			t.Fatalf("panic value = %v, want *PayloadShapeError", r)
		}
		if shape.Want != 10 || shape.Got != 9 {
			t.Fatalf("shape error = %+v, want Want=10 Got=9", shape)
		}
	}()
	lay.DeliverSPLChange(handleOf(t, lay), 50, 0, 0, make([]float64, 9))
}

func TestSound_WeightedReadsUnsupported(t *testing.T) {
	s, _ := newSoundOn(t, true)
	defer s.Release()

	if err := s.OpenWait(time.Second); err != nil {
		t.Fatalf("open wait: %v", err)
	}

	if _, err := s.DBA(); !errors.Is(err, sensorbridge.ErrUnsupported) {
		t.Fatalf("DBA error = %v, want ErrUnsupported", err)
	}
	if _, err := s.DBC(); !errors.Is(err, sensorbridge.ErrUnsupported) {
		t.Fatalf("DBC error = %v, want ErrUnsupported", err)
	}
}
