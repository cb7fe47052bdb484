package backend

import (
	"github.com/gogpu/vbuffer/devctx"
	"github.com/gogpu/vbuffer/location"
)

// DeviceObject is the backend that, unlike Null, can also back BUFFER with
// a real device object, simulated here as owned bytes the same way a
// pure-Go software device backend stands in for its buffers. BUFFER
// preparation is refused outright when useBO is false, modeling the
// "buffer has been permanently abandoned to SYSMEM" state the
// profitability heuristics drive a buffer into.
type DeviceObject struct {
	size  int64
	useBO bool

	host   []byte
	device []byte

	// streamOutput* models the narrow case where a BO bound
	// for stream-output whose pipeline stage is still dirty must have
	// transform feedback ended before the BO is destroyed. Both hooks are
	// optional; nil means "not bound for stream-output".
	streamOutputBound    bool
	streamOutputDirty    func() bool
	endTransformFeedback func()
}

// NewDeviceObject creates a DeviceObject backend for a buffer of the given
// size. useBO mirrors the buffer's USE_BO flag: when
// false, BUFFER is never prepared, and device_bo must stay absent.
func NewDeviceObject(size int64, useBO bool) *DeviceObject {
	return &DeviceObject{size: size, useBO: useBO}
}

// SetUseBO updates whether BUFFER may be prepared, reflecting a runtime
// change to USE_BO (e.g. the profitability heuristics abandoning the BO).
func (d *DeviceObject) SetUseBO(v bool) { d.useBO = v }

// UseBO reports the current USE_BO setting.
func (d *DeviceObject) UseBO() bool { return d.useBO }

// BindStreamOutput records that the device BO is (or is no longer) bound
// for stream-output, and supplies the hooks Unload(BUFFER) consults.
func (d *DeviceObject) BindStreamOutput(bound bool, dirty func() bool, end func()) {
	d.streamOutputBound = bound
	d.streamOutputDirty = dirty
	d.endTransformFeedback = end
}

// Prepare ensures the requested storage site exists. The ctx parameter is
// accepted so a real backend could use
// it to reach the device thread; this simulation's storage is plain bytes
// with no thread affinity of its own, so it runs inline. Callers that need
// the work serialized on the device-context thread (e.g. the destroy path)
// are responsible for dispatching onto ctx themselves before calling in —
// calling devctx.Context.CallVoid from here would deadlock a caller that
// is already running inside a dispatched job on the same thread.
func (d *DeviceObject) Prepare(ctx *devctx.Context, loc location.Location) (bool, error) {
	switch loc {
	case location.SYSMEM:
		if d.host == nil {
			d.host = make([]byte, d.size)
		}
		return true, nil
	case location.BUFFER:
		if !d.useBO {
			return false, nil
		}
		if d.device == nil {
			d.device = make([]byte, d.size)
		}
		return true, nil
	default:
		return false, nil
	}
}

// Unload destroys the requested storage site, ending transform feedback
// first if the BO was bound for stream-output and that stage is dirty
//. See Prepare's doc comment regarding ctx and threading.
func (d *DeviceObject) Unload(ctx *devctx.Context, loc location.Location) {
	switch loc {
	case location.SYSMEM:
		d.host = nil
	case location.BUFFER:
		if d.device == nil {
			return
		}
		if d.streamOutputBound && d.streamOutputDirty != nil && d.streamOutputDirty() {
			if d.endTransformFeedback != nil {
				d.endTransformFeedback()
			}
		}
		d.device = nil
	}
}

// HostMem returns the SYSMEM bytes, or nil if not yet prepared.
func (d *DeviceObject) HostMem() []byte { return d.host }

// DeviceMem returns the BUFFER bytes, or nil if not yet prepared or not
// supported (useBO false).
func (d *DeviceObject) DeviceMem() []byte { return d.device }
