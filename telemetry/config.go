package telemetry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("sensor-bridge: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MQTTConfig configures the MQTT publisher. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// InfluxConfig configures the InfluxDB recorder. An empty URL disables it.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// SensorConfig describes one sensor channel the bridge should run.
// Selector values of -1 mean "match any", like the native library.
type SensorConfig struct {
	ID            string   `yaml:"id"`
	Kind          string   `yaml:"kind"`
	Serial        int32    `yaml:"serial"`
	HubPort       int32    `yaml:"hub_port"`
	Channel       int32    `yaml:"channel"`
	HubPortDevice bool     `yaml:"hub_port_device"`
	DataInterval  Duration `yaml:"data_interval"`
}

// UnmarshalYAML applies per-sensor defaults before decoding.
func (s *SensorConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw SensorConfig
	r := raw{Serial: -1, HubPort: -1, Channel: -1}
	if err := value.Decode(&r); err != nil {
		return err
	}
	*s = SensorConfig(r)
	return nil
}

// Config is the bridge daemon configuration.
type Config struct {
	MQTT        MQTTConfig     `yaml:"mqtt"`
	Influx      InfluxConfig   `yaml:"influxdb"`
	Sensors     []SensorConfig `yaml:"sensors"`
	OpenTimeout Duration       `yaml:"open_timeout"`
	Simulate    bool           `yaml:"simulate"`
}

// sensorKinds are the accepted values of SensorConfig.Kind.
var sensorKinds = map[string]bool{
	"temperature": true,
	"humidity":    true,
	"sound":       true,
	"voltage":     true,
}

// DefaultConfig returns a Config with the daemon defaults applied.
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			ClientID:    "sensor-bridge",
			TopicPrefix: "orion/sensors",
			QoS:         1,
		},
		OpenTimeout: Duration(5 * time.Second),
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sensor-bridge: reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("sensor-bridge: parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions before the bridge
// starts opening hardware.
func (c *Config) Validate() error {
	if len(c.Sensors) == 0 {
		return fmt.Errorf("sensor-bridge: config lists no sensors")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("sensor-bridge: mqtt qos %d out of range 0-2", c.MQTT.QoS)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("sensor-bridge: open_timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.ID == "" {
			return fmt.Errorf("sensor-bridge: sensor %d has no id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sensor-bridge: duplicate sensor id %q", s.ID)
		}
		seen[s.ID] = true
		if !sensorKinds[s.Kind] {
			return fmt.Errorf("sensor-bridge: sensor %q has unknown kind %q", s.ID, s.Kind)
		}
		if s.DataInterval < 0 {
			return fmt.Errorf("sensor-bridge: sensor %q has negative data_interval", s.ID)
		}
	}
	return nil
}
