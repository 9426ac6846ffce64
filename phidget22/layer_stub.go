//go:build !phidget22

package phidget22

import "time"

// DefaultLayer returns the native layer for new channels.
//
// This build does not link the vendor library (build without the
// "phidget22" tag), so every call fails with StatusUnsupported. Use the
// sim subpackage, or rebuild with -tags phidget22 on a machine with
// libphidget22 installed.
func DefaultLayer() Layer {
	return stubLayer{}
}

type stubLayer struct{}

var _ Layer = stubLayer{}

func (stubLayer) Create(ChannelKind) (Handle, Status) { return InvalidHandle, StatusUnsupported }
func (stubLayer) Delete(*Handle) Status               { return StatusUnsupported }
func (stubLayer) Open(Handle) Status                  { return StatusUnsupported }
func (stubLayer) OpenWait(Handle, time.Duration) Status {
	return StatusUnsupported
}
func (stubLayer) Close(Handle) Status { return StatusUnsupported }
func (stubLayer) GetFloat(Handle, FloatProp) (float64, Status) {
	return 0, StatusUnsupported
}
func (stubLayer) SetFloat(Handle, FloatProp, float64) Status { return StatusUnsupported }
func (stubLayer) GetInt(Handle, IntProp) (int32, Status)     { return 0, StatusUnsupported }
func (stubLayer) SetInt(Handle, IntProp, int32) Status       { return StatusUnsupported }
func (stubLayer) GetBool(Handle, BoolProp) (bool, Status)    { return false, StatusUnsupported }
func (stubLayer) SetBool(Handle, BoolProp, bool) Status      { return StatusUnsupported }
func (stubLayer) SetAttachHandler(Handle, AttachFunc, uintptr) Status {
	return StatusUnsupported
}
func (stubLayer) SetDetachHandler(Handle, DetachFunc, uintptr) Status {
	return StatusUnsupported
}
func (stubLayer) SetFloatChangeHandler(Handle, FloatChangeFunc, uintptr) Status {
	return StatusUnsupported
}
func (stubLayer) SetSPLChangeHandler(Handle, SPLChangeFunc, uintptr) Status {
	return StatusUnsupported
}
