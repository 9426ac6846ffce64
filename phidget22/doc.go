// Package phidget22 is the low-level boundary with the phidget22 native
// device-control library.
//
// This package is the Go analog of a *-sys crate: it defines the opaque
// handle type, the native status codes, and the Layer interface that
// mirrors the C calling convention one-to-one — including callback
// registration as a fixed-shape function plus an address-sized context
// token. Higher layers (the sensor-bridge root package) own all lifecycle
// and callback-context discipline; this package only moves calls across
// the boundary.
//
// # Backends
//
// Two implementations of Layer ship with the module:
//
//   - The cgo backend (build tag "phidget22") links the real phidget22
//     library. DefaultLayer returns it when the tag is set.
//   - The sim subpackage provides a scripted in-memory backend used by
//     tests and the --sim mode of the bridge daemon. It records the exact
//     native call sequence and lets tests deliver events by hand.
//
// Without the "phidget22" tag, DefaultLayer returns a stub whose calls all
// fail with StatusUnsupported, so code paths stay exercisable on machines
// without the vendor library installed.
//
// # Threading
//
// The native library runs its own delivery thread(s). Registered callback
// functions are invoked from those threads at arbitrary times; everything
// reachable from a callback must be safe to call off the owner goroutine.
// The library guarantees no callback is delivered after a successful
// deregistration call returns — the safety of the layers above rests on
// that contract.
package phidget22
