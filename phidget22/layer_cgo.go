//go:build phidget22

package phidget22

/*
#cgo LDFLAGS: -lphidget22
#include <stdlib.h>
#include <phidget22.h>

extern void goPhidgetAttach(PhidgetHandle phid, void *ctx);
extern void goPhidgetDetach(PhidgetHandle phid, void *ctx);
extern void goPhidgetFloatChange(void *ch, void *ctx, double value);
extern void goPhidgetSPLChange(void *ch, void *ctx, double dB, double dBA, double dBC, double *octaves);

// Static shims adapt the per-class callback typedefs to the exported Go
// entry points. They exist because Go cannot express the const-qualified
// array parameter of the SPL callback and because the per-class handle
// types differ only by name.
static void cc_attach(PhidgetHandle phid, void *ctx) {
	goPhidgetAttach(phid, ctx);
}

static void cc_detach(PhidgetHandle phid, void *ctx) {
	goPhidgetDetach(phid, ctx);
}

static void cc_temperature_change(PhidgetTemperatureSensorHandle ch, void *ctx, double temperature) {
	goPhidgetFloatChange((void *)ch, ctx, temperature);
}

static void cc_humidity_change(PhidgetHumiditySensorHandle ch, void *ctx, double humidity) {
	goPhidgetFloatChange((void *)ch, ctx, humidity);
}

static void cc_voltage_change(PhidgetVoltageInputHandle ch, void *ctx, double voltage) {
	goPhidgetFloatChange((void *)ch, ctx, voltage);
}

static void cc_spl_change(PhidgetSoundSensorHandle ch, void *ctx, double dB, double dBA, double dBC, const double octaves[10]) {
	goPhidgetSPLChange((void *)ch, ctx, dB, dBA, dBC, (double *)octaves);
}

static PhidgetReturnCode set_attach_handler(PhidgetHandle h, void *ctx, int clear) {
	return Phidget_setOnAttachHandler(h, clear ? NULL : cc_attach, ctx);
}

static PhidgetReturnCode set_detach_handler(PhidgetHandle h, void *ctx, int clear) {
	return Phidget_setOnDetachHandler(h, clear ? NULL : cc_detach, ctx);
}

static PhidgetReturnCode set_temperature_change_handler(PhidgetTemperatureSensorHandle h, void *ctx, int clear) {
	return PhidgetTemperatureSensor_setOnTemperatureChangeHandler(h, clear ? NULL : cc_temperature_change, ctx);
}

static PhidgetReturnCode set_humidity_change_handler(PhidgetHumiditySensorHandle h, void *ctx, int clear) {
	return PhidgetHumiditySensor_setOnHumidityChangeHandler(h, clear ? NULL : cc_humidity_change, ctx);
}

static PhidgetReturnCode set_voltage_change_handler(PhidgetVoltageInputHandle h, void *ctx, int clear) {
	return PhidgetVoltageInput_setOnVoltageChangeHandler(h, clear ? NULL : cc_voltage_change, ctx);
}

static PhidgetReturnCode set_spl_change_handler(PhidgetSoundSensorHandle h, void *ctx, int clear) {
	return PhidgetSoundSensor_setOnSPLChangeHandler(h, clear ? NULL : cc_spl_change, ctx);
}
*/
import "C"

import (
	"sync"
	"time"
	"unsafe"

	gopointer "github.com/mattn/go-pointer"
)

// DefaultLayer returns the cgo-backed native layer linking libphidget22.
func DefaultLayer() Layer {
	return defaultCgoLayer
}

var defaultCgoLayer = &cgoLayer{
	kinds: make(map[Handle]ChannelKind),
	cells: make(map[cellKey]unsafe.Pointer),
}

// eventKey distinguishes the registration slots a handle can hold.
type eventKey int

const (
	eventAttach eventKey = iota
	eventDetach
	eventChange
)

type cellKey struct {
	h  Handle
	ev eventKey
}

// cgoCell carries a registered Go callback plus the caller's context token
// across the C boundary. The cell itself crosses as a go-pointer handle;
// the native library only ever sees that opaque address.
type cgoCell struct {
	attach AttachFunc
	detach DetachFunc
	change FloatChangeFunc
	spl    SPLChangeFunc
	ctx    uintptr
}

// cgoLayer implements Layer over libphidget22.
//
// It tracks the channel kind per handle (the C API is per-class) and the
// go-pointer cell per registration so deregistration can release it after
// the native call returns.
type cgoLayer struct {
	mu    sync.Mutex
	kinds map[Handle]ChannelKind
	cells map[cellKey]unsafe.Pointer
}

var _ Layer = (*cgoLayer)(nil)

func (l *cgoLayer) kindOf(h Handle) ChannelKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kinds[h]
}

// swapCell installs a new saved cell for a registration slot and releases
// the previous one, if any. Called after the native registration call has
// returned, so the old cell can no longer be delivered.
func (l *cgoLayer) swapCell(h Handle, ev eventKey, p unsafe.Pointer) {
	key := cellKey{h: h, ev: ev}
	l.mu.Lock()
	old := l.cells[key]
	if p == nil {
		delete(l.cells, key)
	} else {
		l.cells[key] = p
	}
	l.mu.Unlock()
	if old != nil {
		gopointer.Unref(old)
	}
}

func (l *cgoLayer) Create(kind ChannelKind) (Handle, Status) {
	var h Handle
	var rc C.PhidgetReturnCode
	switch kind {
	case ChannelTemperatureSensor:
		var ch C.PhidgetTemperatureSensorHandle
		rc = C.PhidgetTemperatureSensor_create(&ch)
		h = Handle(uintptr(unsafe.Pointer(ch)))
	case ChannelHumiditySensor:
		var ch C.PhidgetHumiditySensorHandle
		rc = C.PhidgetHumiditySensor_create(&ch)
		h = Handle(uintptr(unsafe.Pointer(ch)))
	case ChannelSoundSensor:
		var ch C.PhidgetSoundSensorHandle
		rc = C.PhidgetSoundSensor_create(&ch)
		h = Handle(uintptr(unsafe.Pointer(ch)))
	case ChannelVoltageInput:
		var ch C.PhidgetVoltageInputHandle
		rc = C.PhidgetVoltageInput_create(&ch)
		h = Handle(uintptr(unsafe.Pointer(ch)))
	default:
		return InvalidHandle, StatusWrongDevice
	}
	if Status(rc) != StatusOK {
		return InvalidHandle, Status(rc)
	}
	l.mu.Lock()
	l.kinds[h] = kind
	l.mu.Unlock()
	return h, StatusOK
}

func (l *cgoLayer) Delete(h *Handle) Status {
	if h == nil || *h == InvalidHandle {
		return StatusOK
	}
	kind := l.kindOf(*h)
	var rc C.PhidgetReturnCode
	switch kind {
	case ChannelTemperatureSensor:
		ch := C.PhidgetTemperatureSensorHandle(unsafe.Pointer(*h))
		rc = C.PhidgetTemperatureSensor_delete(&ch)
	case ChannelHumiditySensor:
		ch := C.PhidgetHumiditySensorHandle(unsafe.Pointer(*h))
		rc = C.PhidgetHumiditySensor_delete(&ch)
	case ChannelSoundSensor:
		ch := C.PhidgetSoundSensorHandle(unsafe.Pointer(*h))
		rc = C.PhidgetSoundSensor_delete(&ch)
	case ChannelVoltageInput:
		ch := C.PhidgetVoltageInputHandle(unsafe.Pointer(*h))
		rc = C.PhidgetVoltageInput_delete(&ch)
	default:
		return StatusWrongDevice
	}
	// Release every cell the handle still holds; no callback can be in
	// flight once the delete call has returned.
	l.mu.Lock()
	delete(l.kinds, *h)
	var orphans []unsafe.Pointer
	for key, p := range l.cells {
		if key.h == *h {
			orphans = append(orphans, p)
			delete(l.cells, key)
		}
	}
	l.mu.Unlock()
	for _, p := range orphans {
		gopointer.Unref(p)
	}
	*h = InvalidHandle
	return Status(rc)
}

func (l *cgoLayer) Open(h Handle) Status {
	return Status(C.Phidget_open(C.PhidgetHandle(unsafe.Pointer(h))))
}

func (l *cgoLayer) OpenWait(h Handle, timeout time.Duration) Status {
	ms := C.uint32_t(timeout / time.Millisecond)
	return Status(C.Phidget_openWaitForAttachment(C.PhidgetHandle(unsafe.Pointer(h)), ms))
}

func (l *cgoLayer) Close(h Handle) Status {
	return Status(C.Phidget_close(C.PhidgetHandle(unsafe.Pointer(h))))
}

func (l *cgoLayer) GetFloat(h Handle, prop FloatProp) (float64, Status) {
	var v C.double
	var rc C.PhidgetReturnCode
	switch prop {
	case FloatPropTemperature:
		rc = C.PhidgetTemperatureSensor_getTemperature(C.PhidgetTemperatureSensorHandle(unsafe.Pointer(h)), &v)
	case FloatPropHumidity:
		rc = C.PhidgetHumiditySensor_getHumidity(C.PhidgetHumiditySensorHandle(unsafe.Pointer(h)), &v)
	case FloatPropDB:
		rc = C.PhidgetSoundSensor_getdB(C.PhidgetSoundSensorHandle(unsafe.Pointer(h)), &v)
	case FloatPropDBA, FloatPropDBC:
		// Not exposed by the installed library generation.
		return 0, StatusUnsupported
	case FloatPropVoltage:
		rc = C.PhidgetVoltageInput_getVoltage(C.PhidgetVoltageInputHandle(unsafe.Pointer(h)), &v)
	default:
		return 0, StatusUnsupported
	}
	return float64(v), Status(rc)
}

func (l *cgoLayer) SetFloat(h Handle, prop FloatProp, v float64) Status {
	_ = h
	_ = v
	_ = prop
	return StatusUnsupported
}

func (l *cgoLayer) GetInt(h Handle, prop IntProp) (int32, Status) {
	ph := C.PhidgetHandle(unsafe.Pointer(h))
	switch prop {
	case IntPropSerialNumber:
		var v C.int32_t
		rc := C.Phidget_getDeviceSerialNumber(ph, &v)
		return int32(v), Status(rc)
	case IntPropHubPort:
		var v C.int
		rc := C.Phidget_getHubPort(ph, &v)
		return int32(v), Status(rc)
	case IntPropChannel:
		var v C.int
		rc := C.Phidget_getChannel(ph, &v)
		return int32(v), Status(rc)
	case IntPropDataInterval:
		return l.getDataInterval(h)
	default:
		return 0, StatusUnsupported
	}
}

func (l *cgoLayer) SetInt(h Handle, prop IntProp, v int32) Status {
	ph := C.PhidgetHandle(unsafe.Pointer(h))
	switch prop {
	case IntPropSerialNumber:
		return Status(C.Phidget_setDeviceSerialNumber(ph, C.int32_t(v)))
	case IntPropHubPort:
		return Status(C.Phidget_setHubPort(ph, C.int(v)))
	case IntPropChannel:
		return Status(C.Phidget_setChannel(ph, C.int(v)))
	case IntPropDataInterval:
		return l.setDataInterval(h, v)
	default:
		return StatusUnsupported
	}
}

func (l *cgoLayer) getDataInterval(h Handle) (int32, Status) {
	var v C.uint32_t
	var rc C.PhidgetReturnCode
	switch l.kindOf(h) {
	case ChannelTemperatureSensor:
		rc = C.PhidgetTemperatureSensor_getDataInterval(C.PhidgetTemperatureSensorHandle(unsafe.Pointer(h)), &v)
	case ChannelHumiditySensor:
		rc = C.PhidgetHumiditySensor_getDataInterval(C.PhidgetHumiditySensorHandle(unsafe.Pointer(h)), &v)
	case ChannelSoundSensor:
		rc = C.PhidgetSoundSensor_getDataInterval(C.PhidgetSoundSensorHandle(unsafe.Pointer(h)), &v)
	case ChannelVoltageInput:
		rc = C.PhidgetVoltageInput_getDataInterval(C.PhidgetVoltageInputHandle(unsafe.Pointer(h)), &v)
	default:
		return 0, StatusWrongDevice
	}
	return int32(v), Status(rc)
}

func (l *cgoLayer) setDataInterval(h Handle, v int32) Status {
	iv := C.uint32_t(v)
	switch l.kindOf(h) {
	case ChannelTemperatureSensor:
		return Status(C.PhidgetTemperatureSensor_setDataInterval(C.PhidgetTemperatureSensorHandle(unsafe.Pointer(h)), iv))
	case ChannelHumiditySensor:
		return Status(C.PhidgetHumiditySensor_setDataInterval(C.PhidgetHumiditySensorHandle(unsafe.Pointer(h)), iv))
	case ChannelSoundSensor:
		return Status(C.PhidgetSoundSensor_setDataInterval(C.PhidgetSoundSensorHandle(unsafe.Pointer(h)), iv))
	case ChannelVoltageInput:
		return Status(C.PhidgetVoltageInput_setDataInterval(C.PhidgetVoltageInputHandle(unsafe.Pointer(h)), iv))
	default:
		return StatusWrongDevice
	}
}

func (l *cgoLayer) GetBool(h Handle, prop BoolProp) (bool, Status) {
	ph := C.PhidgetHandle(unsafe.Pointer(h))
	var v C.int
	var rc C.PhidgetReturnCode
	switch prop {
	case BoolPropAttached:
		rc = C.Phidget_getAttached(ph, &v)
	case BoolPropIsHubPortDevice:
		rc = C.Phidget_getIsHubPortDevice(ph, &v)
	case BoolPropIsOpen:
		rc = C.Phidget_getIsOpen(ph, &v)
	default:
		return false, StatusUnsupported
	}
	return v != 0, Status(rc)
}

func (l *cgoLayer) SetBool(h Handle, prop BoolProp, v bool) Status {
	ph := C.PhidgetHandle(unsafe.Pointer(h))
	cv := C.int(0)
	if v {
		cv = 1
	}
	switch prop {
	case BoolPropIsHubPortDevice:
		return Status(C.Phidget_setIsHubPortDevice(ph, cv))
	default:
		return StatusUnsupported
	}
}

func (l *cgoLayer) SetAttachHandler(h Handle, fn AttachFunc, ctx uintptr) Status {
	ph := C.PhidgetHandle(unsafe.Pointer(h))
	if fn == nil {
		rc := C.set_attach_handler(ph, nil, 1)
		l.swapCell(h, eventAttach, nil)
		return Status(rc)
	}
	p := gopointer.Save(&cgoCell{attach: fn, ctx: ctx})
	rc := C.set_attach_handler(ph, p, 0)
	if Status(rc) != StatusOK {
		gopointer.Unref(p)
		return Status(rc)
	}
	l.swapCell(h, eventAttach, p)
	return StatusOK
}

func (l *cgoLayer) SetDetachHandler(h Handle, fn DetachFunc, ctx uintptr) Status {
	ph := C.PhidgetHandle(unsafe.Pointer(h))
	if fn == nil {
		rc := C.set_detach_handler(ph, nil, 1)
		l.swapCell(h, eventDetach, nil)
		return Status(rc)
	}
	p := gopointer.Save(&cgoCell{detach: fn, ctx: ctx})
	rc := C.set_detach_handler(ph, p, 0)
	if Status(rc) != StatusOK {
		gopointer.Unref(p)
		return Status(rc)
	}
	l.swapCell(h, eventDetach, p)
	return StatusOK
}

func (l *cgoLayer) SetFloatChangeHandler(h Handle, fn FloatChangeFunc, ctx uintptr) Status {
	clr := C.int(0)
	var p unsafe.Pointer
	if fn == nil {
		clr = 1
	} else {
		p = gopointer.Save(&cgoCell{change: fn, ctx: ctx})
	}
	var rc C.PhidgetReturnCode
	switch l.kindOf(h) {
	case ChannelTemperatureSensor:
		rc = C.set_temperature_change_handler(C.PhidgetTemperatureSensorHandle(unsafe.Pointer(h)), p, clr)
	case ChannelHumiditySensor:
		rc = C.set_humidity_change_handler(C.PhidgetHumiditySensorHandle(unsafe.Pointer(h)), p, clr)
	case ChannelVoltageInput:
		rc = C.set_voltage_change_handler(C.PhidgetVoltageInputHandle(unsafe.Pointer(h)), p, clr)
	default:
		if p != nil {
			gopointer.Unref(p)
		}
		return StatusWrongDevice
	}
	if fn == nil {
		l.swapCell(h, eventChange, nil)
		return Status(rc)
	}
	if Status(rc) != StatusOK {
		gopointer.Unref(p)
		return Status(rc)
	}
	l.swapCell(h, eventChange, p)
	return StatusOK
}

func (l *cgoLayer) SetSPLChangeHandler(h Handle, fn SPLChangeFunc, ctx uintptr) Status {
	ch := C.PhidgetSoundSensorHandle(unsafe.Pointer(h))
	if fn == nil {
		rc := C.set_spl_change_handler(ch, nil, 1)
		l.swapCell(h, eventChange, nil)
		return Status(rc)
	}
	p := gopointer.Save(&cgoCell{spl: fn, ctx: ctx})
	rc := C.set_spl_change_handler(ch, p, 0)
	if Status(rc) != StatusOK {
		gopointer.Unref(p)
		return Status(rc)
	}
	l.swapCell(h, eventChange, p)
	return StatusOK
}

//export goPhidgetAttach
func goPhidgetAttach(phid C.PhidgetHandle, ctx unsafe.Pointer) {
	if ctx == nil {
		return
	}
	cell := gopointer.Restore(ctx).(*cgoCell)
	cell.attach(Handle(uintptr(unsafe.Pointer(phid))), cell.ctx)
}

//export goPhidgetDetach
func goPhidgetDetach(phid C.PhidgetHandle, ctx unsafe.Pointer) {
	if ctx == nil {
		return
	}
	cell := gopointer.Restore(ctx).(*cgoCell)
	cell.detach(Handle(uintptr(unsafe.Pointer(phid))), cell.ctx)
}

//export goPhidgetFloatChange
func goPhidgetFloatChange(ch unsafe.Pointer, ctx unsafe.Pointer, value C.double) {
	if ctx == nil {
		return
	}
	cell := gopointer.Restore(ctx).(*cgoCell)
	cell.change(Handle(uintptr(ch)), cell.ctx, float64(value))
}

//export goPhidgetSPLChange
func goPhidgetSPLChange(ch unsafe.Pointer, ctx unsafe.Pointer, dB, dBA, dBC C.double, octaves *C.double) {
	if ctx == nil {
		return
	}
	cell := gopointer.Restore(ctx).(*cgoCell)
	bands := unsafe.Slice((*float64)(unsafe.Pointer(octaves)), 10)
	cell.spl(Handle(uintptr(ch)), cell.ctx, float64(dB), float64(dBA), float64(dBC), bands)
}
