package sensorbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/internal/callctx"
	"github.com/e7canasta/orion-care-sensor/modules/sensor-bridge/phidget22"
)

// Channel is the capability contract every sensor channel type satisfies.
// It lets generic code — open helpers, the telemetry bridge — operate over
// any channel kind without knowing its readings.
//
// Structural mutation (handler registration and removal, Release) must
// stay on a single owner goroutine; the channel does not lock those paths.
// Delivery of already-installed callbacks from the native library's
// threads is safe concurrently with reads.
type Channel interface {
	// Kind identifies the native channel class.
	Kind() phidget22.ChannelKind

	// NativeHandle exposes the underlying native handle for use with the
	// low-level phidget22 layer. The channel keeps ownership; callers
	// must not delete it.
	NativeHandle() phidget22.Handle

	// Open requests an asynchronous attach and returns immediately.
	// Register an attach handler first to learn when the device arrives.
	Open() error

	// OpenWait blocks until the device attaches or the timeout elapses.
	// A timeout surfaces as an error matching ErrTimeout.
	OpenWait(timeout time.Duration) error

	// Close detaches the channel. Idempotent: closing a never-opened or
	// already closed channel returns nil.
	Close() error

	// Release tears the channel down: close if attached, delete the
	// native handle, then free every registered callback context — in
	// that order. Idempotent. After Release the channel is unusable.
	Release() error

	// Attached reports whether the channel is attached to hardware.
	Attached() (bool, error)

	// IsOpen reports whether the channel has been opened and not yet
	// closed, whether or not a device has attached.
	IsOpen() (bool, error)

	// Device selectors. Set before opening to target a specific device.
	SerialNumber() (int32, error)
	SetSerialNumber(n int32) error
	HubPort() (int32, error)
	SetHubPort(port int32) error
	ChannelIndex() (int32, error)
	SetChannelIndex(idx int32) error
	SetIsHubPortDevice(on bool) error

	// DataInterval controls how often data-change events fire.
	DataInterval() (time.Duration, error)
	SetDataInterval(iv time.Duration) error

	// base seals the interface to this package's channel types.
	base() *channel
}

// ChannelOption configures a channel at construction.
type ChannelOption func(*channelConfig)

type channelConfig struct {
	lay phidget22.Layer
	log *slog.Logger
}

// WithLayer selects the native layer backing the channel. The default is
// phidget22.DefaultLayer(); tests and the daemon's --sim mode pass a
// simulated layer instead.
func WithLayer(lay phidget22.Layer) ChannelOption {
	return func(cfg *channelConfig) {
		cfg.lay = lay
	}
}

// WithLogger sets the logger for lifecycle warnings. Defaults to
// slog.Default().
func WithLogger(log *slog.Logger) ChannelOption {
	return func(cfg *channelConfig) {
		cfg.log = log
	}
}

// slot owns at most one callback context token for a single event kind.
// Every release of a token funnels through take, so a context can never be
// freed twice and never leaks when a registration is replaced.
type slot struct {
	ctx uintptr
}

// put stores a fresh token. The previous token must already have been
// taken.
func (s *slot) put(ctx uintptr) {
	s.ctx = ctx
}

// take removes and returns the stored token, or zero if the slot is empty.
func (s *slot) take() uintptr {
	ctx := s.ctx
	s.ctx = 0
	return ctx
}

// channel owns exactly one native handle plus the callback contexts
// registered against it. Sensor types embed it; non-owning views built
// inside trampolines carry owned=false so they can never tear down the
// shared handle.
type channel struct {
	lay   phidget22.Layer
	h     phidget22.Handle
	kind  phidget22.ChannelKind
	owned bool
	log   *slog.Logger

	attachSlot slot
	detachSlot slot
	changeSlot slot
}

// newChannel creates the native resource for a channel of the given kind.
func newChannel(kind phidget22.ChannelKind, opts []ChannelOption) (channel, error) {
	cfg := channelConfig{
		lay: phidget22.DefaultLayer(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h, st := cfg.lay.Create(kind)
	if !st.OK() {
		return channel{}, statusError(fmt.Sprintf("create %s channel", kind), st)
	}
	return channel{
		lay:   cfg.lay,
		h:     h,
		kind:  kind,
		owned: true,
		log:   cfg.log.With("component", "sensor-bridge", "kind", kind.String()),
	}, nil
}

// view builds a non-owning channel over an existing handle for use inside
// a trampoline invocation. It shares the native resource but must never
// destroy it: Release on a view is a no-op.
func view(lay phidget22.Layer, kind phidget22.ChannelKind, h phidget22.Handle, log *slog.Logger) channel {
	return channel{lay: lay, h: h, kind: kind, owned: false, log: log}
}

func (c *channel) base() *channel { return c }

// Kind identifies the native channel class.
func (c *channel) Kind() phidget22.ChannelKind { return c.kind }

// NativeHandle exposes the underlying native handle. Zero after Release.
func (c *channel) NativeHandle() phidget22.Handle { return c.h }

// Open requests an asynchronous attach and returns immediately.
func (c *channel) Open() error {
	return statusError("open", c.lay.Open(c.h))
}

// OpenWait blocks until the device attaches or the timeout elapses.
func (c *channel) OpenWait(timeout time.Duration) error {
	return statusError("open with wait", c.lay.OpenWait(c.h, timeout))
}

// Close detaches the channel. Idempotent; closing a channel that was never
// opened, or closing twice, returns nil.
func (c *channel) Close() error {
	if c.h == phidget22.InvalidHandle {
		return nil
	}
	st := c.lay.Close(c.h)
	switch st {
	case phidget22.StatusOK, phidget22.StatusNotAttached, phidget22.StatusClosed:
		return nil
	default:
		return statusError("close", st)
	}
}

// Release tears the channel down in the mandatory order: close while still
// attached, delete the native handle, then free every outstanding callback
// context. Deleting first could leave the native library referencing freed
// selectors; freeing contexts before the delete returns could let an
// in-flight callback dereference a dead closure.
//
// A failed delete is logged and reported, but never prevents the context
// release: a stuck handle must not leak the closures it referenced.
func (c *channel) Release() error {
	if !c.owned || c.h == phidget22.InvalidHandle {
		return nil
	}

	if open, st := c.lay.GetBool(c.h, phidget22.BoolPropIsOpen); st.OK() && open {
		if err := c.Close(); err != nil {
			c.log.Warn("close during release failed", "error", err)
		}
	}

	err := statusError("delete", c.lay.Delete(&c.h))
	if err != nil {
		c.log.Error("native delete failed, releasing contexts anyway", "error", err)
	}
	c.h = phidget22.InvalidHandle

	callctx.Free(c.attachSlot.take())
	callctx.Free(c.detachSlot.take())
	callctx.Free(c.changeSlot.take())
	return err
}

// Attached reports whether the channel is attached to hardware.
func (c *channel) Attached() (bool, error) {
	v, st := c.lay.GetBool(c.h, phidget22.BoolPropAttached)
	return v, statusError("query attached", st)
}

// IsOpen reports whether the channel has been opened and not yet closed.
func (c *channel) IsOpen() (bool, error) {
	v, st := c.lay.GetBool(c.h, phidget22.BoolPropIsOpen)
	return v, statusError("query open state", st)
}

// getFloat reads a float property, translating the native status. Reads
// before attach surface as ErrNotAttached.
func (c *channel) getFloat(name string, prop phidget22.FloatProp) (float64, error) {
	v, st := c.lay.GetFloat(c.h, prop)
	return v, statusError("read "+name, st)
}

func (c *channel) getInt(name string, prop phidget22.IntProp) (int32, error) {
	v, st := c.lay.GetInt(c.h, prop)
	return v, statusError("read "+name, st)
}

func (c *channel) setInt(name string, prop phidget22.IntProp, v int32) error {
	return statusError("set "+name, c.lay.SetInt(c.h, prop, v))
}

// SerialNumber returns the device serial number selector.
func (c *channel) SerialNumber() (int32, error) {
	return c.getInt("serial number", phidget22.IntPropSerialNumber)
}

// SetSerialNumber targets a specific device serial number before opening.
func (c *channel) SetSerialNumber(n int32) error {
	return c.setInt("serial number", phidget22.IntPropSerialNumber, n)
}

// HubPort returns the VINT hub port selector.
func (c *channel) HubPort() (int32, error) {
	return c.getInt("hub port", phidget22.IntPropHubPort)
}

// SetHubPort targets a specific VINT hub port before opening.
func (c *channel) SetHubPort(port int32) error {
	return c.setInt("hub port", phidget22.IntPropHubPort, port)
}

// ChannelIndex returns the channel index selector.
func (c *channel) ChannelIndex() (int32, error) {
	return c.getInt("channel index", phidget22.IntPropChannel)
}

// SetChannelIndex targets a specific channel index before opening.
func (c *channel) SetChannelIndex(idx int32) error {
	return c.setInt("channel index", phidget22.IntPropChannel, idx)
}

// SetIsHubPortDevice selects opening a hub port directly as the device.
func (c *channel) SetIsHubPortDevice(on bool) error {
	return statusError("set hub port device", c.lay.SetBool(c.h, phidget22.BoolPropIsHubPortDevice, on))
}

// DataInterval returns the interval between data-change events.
func (c *channel) DataInterval() (time.Duration, error) {
	ms, err := c.getInt("data interval", phidget22.IntPropDataInterval)
	return time.Duration(ms) * time.Millisecond, err
}

// SetDataInterval sets the interval between data-change events.
func (c *channel) SetDataInterval(iv time.Duration) error {
	return c.setInt("data interval", phidget22.IntPropDataInterval, int32(iv/time.Millisecond))
}

// ---------------------------------------------------------------------------
// Callback slot discipline.
//
// Registration replaces any live registration: the native deregistration
// call is issued first, then the old context is freed, then the fresh
// context is installed. A rejected native install frees the fresh context
// immediately, so at most one context is ever outstanding per slot.

func (c *channel) installAttach(cc *eventCtx) error {
	if prev := c.attachSlot.take(); prev != 0 {
		if st := c.lay.SetAttachHandler(c.h, nil, 0); !st.OK() {
			c.log.Warn("deregistering previous attach handler failed", "status", st.String())
		}
		callctx.Free(prev)
	}
	ctx := callctx.Register(cc)
	if st := c.lay.SetAttachHandler(c.h, attachTrampoline, ctx); !st.OK() {
		callctx.Free(ctx)
		return statusError("set attach handler", st)
	}
	c.attachSlot.put(ctx)
	return nil
}

func (c *channel) removeAttach() error {
	st := c.lay.SetAttachHandler(c.h, nil, 0)
	callctx.Free(c.attachSlot.take())
	return statusError("remove attach handler", st)
}

func (c *channel) installDetach(cc *eventCtx) error {
	if prev := c.detachSlot.take(); prev != 0 {
		if st := c.lay.SetDetachHandler(c.h, nil, 0); !st.OK() {
			c.log.Warn("deregistering previous detach handler failed", "status", st.String())
		}
		callctx.Free(prev)
	}
	ctx := callctx.Register(cc)
	if st := c.lay.SetDetachHandler(c.h, detachTrampoline, ctx); !st.OK() {
		callctx.Free(ctx)
		return statusError("set detach handler", st)
	}
	c.detachSlot.put(ctx)
	return nil
}

func (c *channel) removeDetach() error {
	st := c.lay.SetDetachHandler(c.h, nil, 0)
	callctx.Free(c.detachSlot.take())
	return statusError("remove detach handler", st)
}

func (c *channel) installFloatChange(cc *floatChangeCtx) error {
	if prev := c.changeSlot.take(); prev != 0 {
		if st := c.lay.SetFloatChangeHandler(c.h, nil, 0); !st.OK() {
			c.log.Warn("deregistering previous change handler failed", "status", st.String())
		}
		callctx.Free(prev)
	}
	ctx := callctx.Register(cc)
	if st := c.lay.SetFloatChangeHandler(c.h, floatChangeTrampoline, ctx); !st.OK() {
		callctx.Free(ctx)
		return statusError("set change handler", st)
	}
	c.changeSlot.put(ctx)
	return nil
}

func (c *channel) removeFloatChange() error {
	st := c.lay.SetFloatChangeHandler(c.h, nil, 0)
	callctx.Free(c.changeSlot.take())
	return statusError("remove change handler", st)
}

func (c *channel) installSPLChange(cc *splChangeCtx) error {
	if prev := c.changeSlot.take(); prev != 0 {
		if st := c.lay.SetSPLChangeHandler(c.h, nil, 0); !st.OK() {
			c.log.Warn("deregistering previous SPL handler failed", "status", st.String())
		}
		callctx.Free(prev)
	}
	ctx := callctx.Register(cc)
	if st := c.lay.SetSPLChangeHandler(c.h, splChangeTrampoline, ctx); !st.OK() {
		callctx.Free(ctx)
		return statusError("set SPL handler", st)
	}
	c.changeSlot.put(ctx)
	return nil
}

func (c *channel) removeSPLChange() error {
	st := c.lay.SetSPLChangeHandler(c.h, nil, 0)
	callctx.Free(c.changeSlot.take())
	return statusError("remove SPL handler", st)
}

// ---------------------------------------------------------------------------
// Trampolines.
//
// One fixed-shape function per event kind, installed as the native
// callback. They run on the native library's delivery threads. A zero or
// stale context token means the delivery raced with removal and the event
// is dropped. A panic in the user handler is fatal to the process: the
// foreign stack below these frames cannot propagate an unwind, so no
// recovery is attempted here.

// eventCtx boxes an attach or detach callback pre-bound to its channel's
// view constructor. The closure is the CallbackContext: it owns its
// captures for as long as the registration lives.
type eventCtx struct {
	invoke func(h phidget22.Handle)
}

// floatChangeCtx boxes a scalar data-change callback.
type floatChangeCtx struct {
	invoke func(h phidget22.Handle, value float64)
}

// splChangeCtx boxes an SPL data-change callback.
type splChangeCtx struct {
	invoke func(h phidget22.Handle, db, dba, dbc float64, octaves *[10]float64)
}

func attachTrampoline(h phidget22.Handle, ctx uintptr) {
	cc, ok := callctx.Restore(ctx).(*eventCtx)
	if !ok {
		return
	}
	cc.invoke(h)
}

func detachTrampoline(h phidget22.Handle, ctx uintptr) {
	cc, ok := callctx.Restore(ctx).(*eventCtx)
	if !ok {
		return
	}
	cc.invoke(h)
}

func floatChangeTrampoline(h phidget22.Handle, ctx uintptr, value float64) {
	cc, ok := callctx.Restore(ctx).(*floatChangeCtx)
	if !ok {
		return
	}
	cc.invoke(h, value)
}

// splChangeTrampoline reconstructs the native octave-band payload into its
// fixed-size form. The vendor contract fixes the array at 10 bands; a
// violation is a corrupted delivery and panics with PayloadShapeError
// rather than handing truncated data to the user.
func splChangeTrampoline(h phidget22.Handle, ctx uintptr, db, dba, dbc float64, octaves []float64) {
	cc, ok := callctx.Restore(ctx).(*splChangeCtx)
	if !ok {
		return
	}
	if len(octaves) != splOctaveBands {
		panic(&PayloadShapeError{Event: "SPL change", Want: splOctaveBands, Got: len(octaves)})
	}
	var bands [splOctaveBands]float64
	copy(bands[:], octaves)
	cc.invoke(h, db, dba, dbc, &bands)
}

// splOctaveBands is the fixed number of octave bands in an SPL event.
const splOctaveBands = 10

// ---------------------------------------------------------------------------
// Generic helpers over the capability contract.

// OpenWaitAll opens every channel with the same attach timeout, in order.
// The first failure aborts and is returned with the channel kind attached.
func OpenWaitAll(timeout time.Duration, chans ...Channel) error {
	for _, ch := range chans {
		if err := ch.OpenWait(timeout); err != nil {
			return fmt.Errorf("sensor-bridge: opening %s channel: %w", ch.Kind(), err)
		}
	}
	return nil
}

// ReleaseAll releases every channel, continuing past failures, and returns
// the joined errors.
func ReleaseAll(chans ...Channel) error {
	var errs []error
	for _, ch := range chans {
		if err := ch.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
