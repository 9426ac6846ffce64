// Package sim provides a scripted, in-memory implementation of the
// phidget22 native layer.
//
// It exists for two consumers:
//
//   - Tests: the layer records every native call in order, so lifecycle
//     tests can assert teardown sequencing, and it exposes Deliver*
//     methods that invoke registered callbacks exactly the way the real
//     library's delivery thread would.
//   - The bridge daemon's --sim mode: channels open against simulated
//     hardware, with the daemon driving periodic readings.
//
// The simulator honors the native contract the safety layer depends on:
// once Delete returns for a handle, no further callback is ever invoked
// for it.
package sim

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// Config controls simulated attach behavior.
type Config struct {
	// AttachOnOpen immediately attaches the channel during Open/OpenWait
	// and fires the attach handler, if one is registered.
	AttachOnOpen bool

	// AttachAfter delays the attach during OpenWait. If the delay exceeds
	// the caller's timeout, OpenWait fails with StatusTimeout (after
	// sleeping the full timeout, like the real library). Ignored when
	// AttachOnOpen is set.
	AttachAfter time.Duration
}

// Layer is a simulated phidget22.Layer.
//
// All methods are safe for concurrent use. Handler invocations triggered
// by Deliver* run on the caller's goroutine, synchronously, which keeps
// tests deterministic; production code must treat them as foreign-thread
// calls all the same.
type Layer struct {
	cfg Config

	mu    sync.Mutex
	next  phidget22.Handle
	chans map[phidget22.Handle]*simChannel
	calls []string
}

// registration is one installed (function, context) pair.
type registration struct {
	attach phidget22.AttachFunc
	detach phidget22.DetachFunc
	change phidget22.FloatChangeFunc
	spl    phidget22.SPLChangeFunc
	ctx    uintptr
}

type simChannel struct {
	kind     phidget22.ChannelKind
	opened   bool
	attached bool

	floats map[phidget22.FloatProp]float64
	ints   map[phidget22.IntProp]int32
	bools  map[phidget22.BoolProp]bool

	attachReg *registration
	detachReg *registration
	changeReg *registration
}

var _ phidget22.Layer = (*Layer)(nil)

// New creates a simulated layer.
func New(cfg Config) *Layer {
	return &Layer{
		cfg:   cfg,
		chans: make(map[phidget22.Handle]*simChannel),
	}
}

// Calls returns the native call sequence recorded so far, oldest first.
func (l *Layer) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Handles returns the live simulated handles, in creation order.
func (l *Layer) Handles() []phidget22.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]phidget22.Handle, 0, len(l.chans))
	for h := range l.chans {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// ResetCalls clears the recorded call sequence.
func (l *Layer) ResetCalls() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *Layer) record(format string, args ...any) {
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *Layer) get(h phidget22.Handle) *simChannel {
	return l.chans[h]
}

// Create allocates a simulated channel.
func (l *Layer) Create(kind phidget22.ChannelKind) (phidget22.Handle, phidget22.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	h := l.next
	l.chans[h] = &simChannel{
		kind:   kind,
		floats: make(map[phidget22.FloatProp]float64),
		ints: map[phidget22.IntProp]int32{
			phidget22.IntPropSerialNumber: -1,
			phidget22.IntPropHubPort:      -1,
			phidget22.IntPropChannel:      -1,
			phidget22.IntPropDataInterval: 250,
		},
		bools: make(map[phidget22.BoolProp]bool),
	}
	l.record("create %s", kind)
	return h, phidget22.StatusOK
}

// Delete releases the simulated channel and drops its registrations, so no
// later Deliver* call can reach a handler through this handle.
func (l *Layer) Delete(h *phidget22.Handle) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h == nil || l.get(*h) == nil {
		return phidget22.StatusUnknownVal
	}
	delete(l.chans, *h)
	l.record("delete %#x", uintptr(*h))
	*h = phidget22.InvalidHandle
	return phidget22.StatusOK
}

// Open attaches immediately when AttachOnOpen is configured; otherwise the
// channel stays detached until an explicit DeliverAttach.
func (l *Layer) Open(h phidget22.Handle) phidget22.Status {
	l.mu.Lock()
	ch := l.get(h)
	if ch == nil {
		l.mu.Unlock()
		return phidget22.StatusUnknownVal
	}
	l.record("open %#x", uintptr(h))
	ch.opened = true
	attach := l.cfg.AttachOnOpen && !ch.attached
	if attach {
		ch.attached = true
	}
	reg := ch.attachReg
	l.mu.Unlock()

	if attach && reg != nil {
		reg.attach(h, reg.ctx)
	}
	return phidget22.StatusOK
}

// OpenWait blocks until the scripted attach or the timeout, whichever
// comes first.
func (l *Layer) OpenWait(h phidget22.Handle, timeout time.Duration) phidget22.Status {
	l.mu.Lock()
	ch := l.get(h)
	if ch == nil {
		l.mu.Unlock()
		return phidget22.StatusUnknownVal
	}
	l.record("open_wait %#x timeout=%s", uintptr(h), timeout)
	ch.opened = true
	cfg := l.cfg
	l.mu.Unlock()

	switch {
	case cfg.AttachOnOpen:
		// Attach immediately.
	case cfg.AttachAfter > 0 && cfg.AttachAfter <= timeout:
		time.Sleep(cfg.AttachAfter)
	default:
		time.Sleep(timeout)
		return phidget22.StatusTimeout
	}

	l.mu.Lock()
	attach := !ch.attached
	ch.attached = true
	reg := ch.attachReg
	l.mu.Unlock()
	if attach && reg != nil {
		reg.attach(h, reg.ctx)
	}
	return phidget22.StatusOK
}

// Close detaches the channel. Closing a detached channel is a no-op.
func (l *Layer) Close(h phidget22.Handle) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	ch.opened = false
	ch.attached = false
	l.record("close %#x", uintptr(h))
	return phidget22.StatusOK
}

// GetFloat returns the last simulated reading for the property.
func (l *Layer) GetFloat(h phidget22.Handle, prop phidget22.FloatProp) (float64, phidget22.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return 0, phidget22.StatusUnknownVal
	}
	if prop == phidget22.FloatPropDBA || prop == phidget22.FloatPropDBC {
		// Mirrors the vendor library generation that does not expose
		// weighted SPL reads.
		return 0, phidget22.StatusUnsupported
	}
	if !ch.attached {
		return 0, phidget22.StatusNotAttached
	}
	v, ok := ch.floats[prop]
	if !ok {
		return 0, phidget22.StatusUnknownVal
	}
	return v, phidget22.StatusOK
}

// SetFloat stores a simulated reading without firing a change event.
func (l *Layer) SetFloat(h phidget22.Handle, prop phidget22.FloatProp, v float64) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	ch.floats[prop] = v
	return phidget22.StatusOK
}

// GetInt returns a selector or data-interval value.
func (l *Layer) GetInt(h phidget22.Handle, prop phidget22.IntProp) (int32, phidget22.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return 0, phidget22.StatusUnknownVal
	}
	return ch.ints[prop], phidget22.StatusOK
}

// SetInt stores a selector or data-interval value.
func (l *Layer) SetInt(h phidget22.Handle, prop phidget22.IntProp, v int32) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	ch.ints[prop] = v
	return phidget22.StatusOK
}

// GetBool returns attachment state or a boolean selector.
func (l *Layer) GetBool(h phidget22.Handle, prop phidget22.BoolProp) (bool, phidget22.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return false, phidget22.StatusUnknownVal
	}
	switch prop {
	case phidget22.BoolPropAttached:
		return ch.attached, phidget22.StatusOK
	case phidget22.BoolPropIsOpen:
		return ch.opened, phidget22.StatusOK
	}
	return ch.bools[prop], phidget22.StatusOK
}

// SetBool stores a boolean selector.
func (l *Layer) SetBool(h phidget22.Handle, prop phidget22.BoolProp, v bool) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	ch.bools[prop] = v
	return phidget22.StatusOK
}

// SetAttachHandler installs or clears the attach registration.
func (l *Layer) SetAttachHandler(h phidget22.Handle, fn phidget22.AttachFunc, ctx uintptr) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	if fn == nil {
		ch.attachReg = nil
		l.record("clear_attach_handler %#x", uintptr(h))
		return phidget22.StatusOK
	}
	ch.attachReg = &registration{attach: fn, ctx: ctx}
	l.record("set_attach_handler %#x ctx=%#x", uintptr(h), ctx)
	return phidget22.StatusOK
}

// SetDetachHandler installs or clears the detach registration.
func (l *Layer) SetDetachHandler(h phidget22.Handle, fn phidget22.DetachFunc, ctx uintptr) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	if fn == nil {
		ch.detachReg = nil
		l.record("clear_detach_handler %#x", uintptr(h))
		return phidget22.StatusOK
	}
	ch.detachReg = &registration{detach: fn, ctx: ctx}
	l.record("set_detach_handler %#x ctx=%#x", uintptr(h), ctx)
	return phidget22.StatusOK
}

// SetFloatChangeHandler installs or clears the data-change registration
// for scalar channels.
func (l *Layer) SetFloatChangeHandler(h phidget22.Handle, fn phidget22.FloatChangeFunc, ctx uintptr) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	if fn == nil {
		ch.changeReg = nil
		l.record("clear_change_handler %#x", uintptr(h))
		return phidget22.StatusOK
	}
	ch.changeReg = &registration{change: fn, ctx: ctx}
	l.record("set_change_handler %#x ctx=%#x", uintptr(h), ctx)
	return phidget22.StatusOK
}

// SetSPLChangeHandler installs or clears the SPL-change registration.
func (l *Layer) SetSPLChangeHandler(h phidget22.Handle, fn phidget22.SPLChangeFunc, ctx uintptr) phidget22.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := l.get(h)
	if ch == nil {
		return phidget22.StatusUnknownVal
	}
	if fn == nil {
		ch.changeReg = nil
		l.record("clear_spl_handler %#x", uintptr(h))
		return phidget22.StatusOK
	}
	ch.changeReg = &registration{spl: fn, ctx: ctx}
	l.record("set_spl_handler %#x ctx=%#x", uintptr(h), ctx)
	return phidget22.StatusOK
}

// DeliverAttach marks the channel attached and fires the attach handler,
// the way the real library's delivery thread would.
func (l *Layer) DeliverAttach(h phidget22.Handle) {
	l.mu.Lock()
	ch := l.get(h)
	if ch == nil {
		l.mu.Unlock()
		return
	}
	ch.attached = true
	reg := ch.attachReg
	l.mu.Unlock()
	if reg != nil {
		reg.attach(h, reg.ctx)
	}
}

// DeliverDetach marks the channel detached and fires the detach handler.
func (l *Layer) DeliverDetach(h phidget22.Handle) {
	l.mu.Lock()
	ch := l.get(h)
	if ch == nil {
		l.mu.Unlock()
		return
	}
	ch.attached = false
	reg := ch.detachReg
	l.mu.Unlock()
	if reg != nil {
		reg.detach(h, reg.ctx)
	}
}

// DeliverFloatChange stores the value as the channel's latest reading and
// fires the data-change handler, if registered.
func (l *Layer) DeliverFloatChange(h phidget22.Handle, v float64) {
	l.mu.Lock()
	ch := l.get(h)
	if ch == nil {
		l.mu.Unlock()
		return
	}
	ch.floats[readingProp(ch.kind)] = v
	reg := ch.changeReg
	l.mu.Unlock()
	if reg != nil && reg.change != nil {
		reg.change(h, reg.ctx, v)
	}
}

// DeliverSPLChange fires the SPL-change handler with the given payload.
// The octaves slice is forwarded as-is so tests can exercise the bounded
// array length check with a malformed payload.
func (l *Layer) DeliverSPLChange(h phidget22.Handle, db, dba, dbc float64, octaves []float64) {
	l.mu.Lock()
	ch := l.get(h)
	if ch == nil {
		l.mu.Unlock()
		return
	}
	ch.floats[phidget22.FloatPropDB] = db
	reg := ch.changeReg
	l.mu.Unlock()
	if reg != nil && reg.spl != nil {
		reg.spl(h, reg.ctx, db, dba, dbc, octaves)
	}
}

// readingProp maps a channel kind to the property its data-change events
// update.
func readingProp(kind phidget22.ChannelKind) phidget22.FloatProp {
	switch kind {
	case phidget22.ChannelHumiditySensor:
		return phidget22.FloatPropHumidity
	case phidget22.ChannelSoundSensor:
		return phidget22.FloatPropDB
	case phidget22.ChannelVoltageInput:
		return phidget22.FloatPropVoltage
	default:
		return phidget22.FloatPropTemperature
	}
}
