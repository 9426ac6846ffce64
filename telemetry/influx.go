package telemetry

import (
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxRecorder writes readings to InfluxDB as points on the
// "sensor_reading" measurement, tagged by sensor id and kind. Writes are
// batched and flushed in the background, so Record never blocks a
// delivery thread.
type InfluxRecorder struct {
	client influxdb2.Client
	write  api.WriteAPI
	done   chan struct{}
}

// NewInfluxRecorder creates a recorder. The connection is lazy; a
// misconfigured endpoint surfaces through the async error channel.
func NewInfluxRecorder(cfg InfluxConfig, log *slog.Logger) *InfluxRecorder {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	write := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := &InfluxRecorder{
		client: client,
		write:  write,
		done:   make(chan struct{}),
	}

	log = log.With("component", "sensor-bridge", "sink", "influxdb")
	go func() {
		for {
			select {
			case err, ok := <-write.Errors():
				if !ok {
					return
				}
				log.Warn("influxdb write failed", "error", err)
			case <-r.done:
				return
			}
		}
	}()
	return r
}

// Record queues one reading for the next batch write.
func (r *InfluxRecorder) Record(rd Reading) {
	p := influxdb2.NewPoint(
		"sensor_reading",
		map[string]string{"sensor_id": rd.SensorID, "kind": rd.Kind},
		map[string]interface{}{"value": rd.Value, "unit": rd.Unit, "trace_id": rd.TraceID},
		rd.Time,
	)
	r.write.WritePoint(p)
}

// Close flushes pending points and shuts the client down.
func (r *InfluxRecorder) Close() {
	r.write.Flush()
	close(r.done)
	r.client.Close()
}
