package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22/sim"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/telemetry"
)

// Version information
const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration (required)")
	simulate := flag.Bool("sim", false, "Run against simulated hardware")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sensor-bridge %s\n", version)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --config flag is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  sensor-bridge --config /etc/orion/sensor-bridge.yaml\n")
		fmt.Fprintf(os.Stderr, "  sensor-bridge --config bridge.yaml --sim --debug\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := telemetry.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *simulate {
		cfg.Simulate = true
	}

	opts := []telemetry.Option{telemetry.WithLogger(logger)}

	var simLayer *sim.Layer
	if cfg.Simulate {
		simLayer = sim.New(sim.Config{AttachOnOpen: true})
		opts = append(opts, telemetry.WithLayer(simLayer))
		slog.Info("Running against simulated hardware")
	}

	if cfg.MQTT.Broker != "" {
		pub, err := telemetry.NewMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			log.Fatalf("Failed to connect MQTT publisher: %v", err)
		}
		opts = append(opts, telemetry.WithPublisher(pub))
	} else {
		slog.Warn("No MQTT broker configured, events will only be logged")
	}

	if cfg.Influx.URL != "" {
		opts = append(opts, telemetry.WithRecorder(telemetry.NewInfluxRecorder(cfg.Influx, logger)))
	}

	bridge, err := telemetry.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}

	slog.Info("Starting sensor bridge", "version", version, "sensors", len(cfg.Sensors))
	if err := bridge.Start(); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}

	stopDriver := make(chan struct{})
	if simLayer != nil {
		go driveSimulation(simLayer, cfg, stopDriver)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Shutting down", "signal", sig.String())

	close(stopDriver)
	if err := bridge.Stop(); err != nil {
		slog.Error("Error stopping bridge", "error", err)
		os.Exit(1)
	}
	slog.Info("Sensor bridge stopped")
}

// driveSimulation feeds the simulated layer with synthetic readings, one
// per sensor per second, until stop is closed. Handles are created in
// config order, so they pair up with the sensor list.
func driveSimulation(lay *sim.Layer, cfg *telemetry.Config, stop <-chan struct{}) {
	handles := lay.Handles()
	if len(handles) != len(cfg.Sensors) {
		slog.Warn("Simulation driver disabled: handle count does not match sensor count",
			"handles", len(handles), "sensors", len(cfg.Sensors))
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			phase := time.Since(start).Seconds() / 60 * 2 * math.Pi
			for i, sc := range cfg.Sensors {
				switch sc.Kind {
				case "temperature":
					lay.DeliverFloatChange(handles[i], 21.0+2.0*math.Sin(phase)+rand.Float64()*0.2)
				case "humidity":
					lay.DeliverFloatChange(handles[i], 45.0+5.0*math.Sin(phase)+rand.Float64())
				case "voltage":
					lay.DeliverFloatChange(handles[i], 3.3+0.1*math.Sin(phase))
				case "sound":
					octaves := make([]float64, 10)
					for j := range octaves {
						octaves[j] = 30 + rand.Float64()*20
					}
					db := 40 + 10*math.Sin(phase) + rand.Float64()*3
					lay.DeliverSPLChange(handles[i], db, db-2, db-1, octaves)
				}
			}
		}
	}
}
