// Package telemetry publishes sensor channel events to the Orion
// messaging plane.
//
// A Bridge owns a set of configured sensor channels and forwards their
// events to pluggable sinks: attach and detach become status events, data
// changes become reading events. The stock sinks are an MQTT publisher
// (JSON payloads on per-sensor topics) and an InfluxDB recorder
// (non-blocking batched point writes). Tests swap in fakes through the
// same Publisher and Recorder interfaces.
//
// Sink methods are invoked from the device library's delivery threads;
// both stock sinks are safe for that, and fakes must be too.
package telemetry
