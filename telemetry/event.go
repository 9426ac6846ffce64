package telemetry

import "time"

// Reading is one sensor measurement forwarded to the sinks.
type Reading struct {
	SensorID string    `json:"sensor_id"`
	Kind     string    `json:"kind"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	TraceID  string    `json:"trace_id"`
	Time     time.Time `json:"time"`
}

// StatusEvent reports a sensor lifecycle transition.
type StatusEvent struct {
	SensorID string    `json:"sensor_id"`
	Kind     string    `json:"kind"`
	State    string    `json:"state"` // "attached" or "detached"
	TraceID  string    `json:"trace_id"`
	Time     time.Time `json:"time"`
}

// Publisher delivers events to the messaging plane. Implementations must
// be safe for concurrent use; the bridge calls them from the device
// library's delivery threads.
type Publisher interface {
	PublishReading(r Reading) error
	PublishStatus(s StatusEvent) error
	Close()
}

// Recorder persists readings to time-series storage. Record must not
// block: the stock implementation batches writes in the background.
type Recorder interface {
	Record(r Reading)
	Close()
}
