// Package sensorbridge provides safe access to Phidget sensor channels
// over the callback-driven phidget22 native library.
//
// This module is part of Orion 2.0 and implements Bounded Context
// "Ambient Sensing". It lets application code register ordinary Go
// closures for device lifecycle and sensor-data events and guarantees
// those closures are invoked safely — no use-after-free, no double-free,
// no data races — even though the native library delivers events from its
// own threads at arbitrary times, including while a channel is being
// torn down.
//
// # Quick Start
//
// Reading ambient temperature with change events:
//
//	temp, err := sensorbridge.NewTemperatureSensor()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer temp.Release()
//
//	temp.SetOnTemperatureChangeHandler(func(s *sensorbridge.TemperatureSensor, t float64) {
//	    log.Printf("temperature: %.2f °C", t)
//	})
//
//	if err := temp.OpenWait(5 * time.Second); err != nil {
//	    log.Fatal(err)
//	}
//
//	t, err := temp.Temperature()
//
// # Lifecycle discipline
//
// Every channel type owns exactly one native handle and at most one
// callback context per event kind. Registering a handler boxes the
// closure behind an address-sized token and installs a fixed trampoline
// as the native callback; replacing or removing a handler deregisters
// natively first, then releases the old context exactly once. Release
// tears a channel down in a fixed order — close, delete the native
// handle, free the callback contexts — so no native callback can ever
// fire into freed memory.
//
// Handlers receive a non-owning view of their channel. The view shares
// the native handle but cannot release it; calling Release on a view is
// a no-op.
//
// # Threading
//
// The bridge runs no goroutines of its own; only OpenWait blocks.
// Handlers run on the native library's delivery threads, so their
// captures must be safe to touch off the owner goroutine. Registration,
// removal, and Release must stay on one owner goroutine — the channel
// does not lock structural mutation, only delivery.
//
// # Backends
//
// Channels default to the linked phidget22 library (build tag
// "phidget22"). Tests and the bridge daemon's --sim mode inject the
// simulated backend from phidget22/sim via WithLayer.
package sensorbridge
