package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sensorbridge "github.com/e7canasta/orion-care-sensor/modules/sensor-bridge"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22/sim"
)

// Version information
const version = "v0.1.0"

func main() {
	serial := flag.Int("serial", -1, "Device serial number (-1 = any)")
	hubPort := flag.Int("port", -1, "VINT hub port (-1 = any)")
	channelIdx := flag.Int("channel", -1, "Channel index (-1 = any)")
	hub := flag.Bool("hub", false, "Open the hub port itself as the device")
	timeout := flag.Duration("timeout", 5*time.Second, "Attach wait timeout")
	simulate := flag.Bool("sim", false, "Run against simulated hardware")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("read-temperature %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var opts []sensorbridge.ChannelOption
	var simLayer *sim.Layer
	if *simulate {
		simLayer = sim.New(sim.Config{AttachOnOpen: true})
		opts = append(opts, sensorbridge.WithLayer(simLayer))
	}

	sensor, err := sensorbridge.NewTemperatureSensor(opts...)
	if err != nil {
		log.Fatalf("Failed to create temperature channel: %v", err)
	}
	defer func() {
		if err := sensor.Release(); err != nil {
			slog.Error("Error releasing channel", "error", err)
		}
	}()

	if *serial >= 0 {
		if err := sensor.SetSerialNumber(int32(*serial)); err != nil {
			log.Fatalf("Failed to set serial number: %v", err)
		}
	}
	if *hubPort >= 0 {
		if err := sensor.SetHubPort(int32(*hubPort)); err != nil {
			log.Fatalf("Failed to set hub port: %v", err)
		}
	}
	if *channelIdx >= 0 {
		if err := sensor.SetChannelIndex(int32(*channelIdx)); err != nil {
			log.Fatalf("Failed to set channel index: %v", err)
		}
	}
	if *hub {
		if err := sensor.SetIsHubPortDevice(true); err != nil {
			log.Fatalf("Failed to set hub port device: %v", err)
		}
	}

	if err := sensor.SetOnAttachHandler(func(s *sensorbridge.TemperatureSensor) {
		serial, _ := s.SerialNumber()
		slog.Info("Device attached", "serial", serial)
	}); err != nil {
		log.Fatalf("Failed to set attach handler: %v", err)
	}
	if err := sensor.SetOnDetachHandler(func(*sensorbridge.TemperatureSensor) {
		slog.Warn("Device detached")
	}); err != nil {
		log.Fatalf("Failed to set detach handler: %v", err)
	}
	if err := sensor.SetOnTemperatureChangeHandler(func(_ *sensorbridge.TemperatureSensor, temp float64) {
		fmt.Printf("[%s] %.2f °C\n", time.Now().Format("15:04:05"), temp)
	}); err != nil {
		log.Fatalf("Failed to set change handler: %v", err)
	}

	slog.Info("Waiting for device attach", "timeout", *timeout)
	if err := sensor.OpenWait(*timeout); err != nil {
		log.Fatalf("Failed to open channel: %v", err)
	}

	stopDriver := make(chan struct{})
	if simLayer != nil {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			h := simLayer.Handles()[0]
			temp := 21.0
			for {
				select {
				case <-stopDriver:
					return
				case <-ticker.C:
					temp += 0.1
					simLayer.DeliverFloatChange(h, temp)
				}
			}
		}()
	}

	if temp, err := sensor.Temperature(); err != nil {
		slog.Warn("No reading available yet", "error", err)
	} else {
		fmt.Printf("Current temperature: %.2f °C\n", temp)
	}

	fmt.Printf("Streaming temperature changes, press Ctrl+C to stop\n")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	close(stopDriver)
	fmt.Printf("\nShutting down\n")
}
