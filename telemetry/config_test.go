package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/telemetry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://mqtt.local:1883
  username: bridge
  password: secret
influxdb:
  url: http://influx.local:8086
  token: tok
  org: orion
  bucket: sensors
open_timeout: 10s
sensors:
  - id: room-temp
    kind: temperature
    serial: 372201
    hub_port: 2
    data_interval: 500ms
  - id: room-sound
    kind: sound
`)

	cfg, err := telemetry.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.MQTT.Broker != "tcp://mqtt.local:1883" {
		t.Errorf("broker = %q", cfg.MQTT.Broker)
	}
	// Defaults survive a partial mqtt section.
	if cfg.MQTT.ClientID != "sensor-bridge" || cfg.MQTT.TopicPrefix != "orion/sensors" || cfg.MQTT.QoS != 1 {
		t.Errorf("mqtt defaults not applied: %+v", cfg.MQTT)
	}
	if cfg.OpenTimeout.Std() != 10*time.Second {
		t.Errorf("open_timeout = %v, want 10s", cfg.OpenTimeout.Std())
	}
	if len(cfg.Sensors) != 2 {
		t.Fatalf("sensors = %d, want 2", len(cfg.Sensors))
	}

	temp := cfg.Sensors[0]
	if temp.Serial != 372201 || temp.HubPort != 2 || temp.Channel != -1 {
		t.Errorf("explicit selectors lost defaults: %+v", temp)
	}
	if temp.DataInterval.Std() != 500*time.Millisecond {
		t.Errorf("data_interval = %v, want 500ms", temp.DataInterval.Std())
	}

	snd := cfg.Sensors[1]
	if snd.Serial != -1 || snd.HubPort != -1 || snd.Channel != -1 {
		t.Errorf("omitted selectors = %+v, want -1 (match any)", snd)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no sensors", "mqtt:\n  broker: tcp://x:1883\n"},
		{"missing id", "sensors:\n  - kind: temperature\n"},
		{"unknown kind", "sensors:\n  - id: a\n    kind: pressure\n"},
		{"duplicate id", "sensors:\n  - id: a\n    kind: temperature\n  - id: a\n    kind: humidity\n"},
		{"qos out of range", "mqtt:\n  qos: 3\nsensors:\n  - id: a\n    kind: temperature\n"},
		{"bad duration", "open_timeout: fast\nsensors:\n  - id: a\n    kind: temperature\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			if _, err := telemetry.LoadConfig(path); err == nil {
				t.Fatal("LoadConfig accepted invalid config")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := telemetry.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig succeeded on a missing file")
	}
}
