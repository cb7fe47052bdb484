package residency

import (
	"github.com/gogpu/vbuffer/convert"
	"github.com/gogpu/vbuffer/errs"
	"github.com/gogpu/vbuffer/location"
	"github.com/gogpu/vbuffer/types"
	"github.com/gogpu/vbuffer/vlog"
)

// Load implements the per-draw load orchestrator. state is the
// external stream-info view for this draw, or nil when the buffer is not
// currently bound to any fixed-function slot. fixups carries the two
// externally-derived fixup flags (D3DCOLOR, XYZRHW); callers compute these
// from device capability and active shader state, which this module does
// not know about.
func (b *Buffer) Load(state *types.StreamInfo, fixups types.FixupFlags) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapCount > 0 && !b.pinSysmem {
		return nil
	}
	if !b.useBO {
		return nil
	}

	ok, err := b.backend.Prepare(b.ctx, location.BUFFER)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrResidencyFailed
	}

	declChanged := false
	if state != nil {
		declChanged = convert.Inspect(&b.conversion, state, b, fixups,
			b.desc.Usage.Has(types.UsageStaticDecl), b.hasDesc)
		b.hasDesc = true
	}

	dirty := b.loc.Dirty().Dirty()
	if !declChanged && !(b.hasDesc && dirty) {
		b.drawCount++
		b.decayCounters()
		return nil
	}

	if declChanged {
		b.declChangeCount++
		b.drawCount = 0
		if !b.checkDeclThresholds() {
			b.loc.Invalidate(location.BUFFER)
		}
	} else if !b.conversion.Empty() && b.loc.Dirty().FullyDirty() {
		b.fullConversionCount++
		b.checkFullConversionThreshold()
	}

	if !b.useBO {
		// A threshold above abandoned the device BO: there is no BUFFER
		// location left to load.
		return nil
	}
	return b.loadLocation(location.BUFFER)
}

// decayCounters applies counter decay: decl_change_count resets after 1000
// clean draws, full_conversion_count after 20.
func (b *Buffer) decayCounters() {
	if b.drawCount >= ResetDeclChange {
		b.declChangeCount = 0
	}
	if b.drawCount >= ResetFullConvs {
		b.fullConversionCount = 0
	}
}

// checkDeclThresholds implements the declaration-change half of the
// profitability heuristics: more than MaxDeclChanges
// changes, or a conversion-active dynamic buffer, drops the device BO
// permanently. Returns whether the BO survived (false means the caller
// should skip the reconversion invalidation — there is no device location
// left to reconvert into).
func (b *Buffer) checkDeclThresholds() bool {
	if b.declChangeCount > MaxDeclChanges ||
		(!b.conversion.Empty() && b.desc.Usage.Has(types.UsageDynamic)) {
		b.abandonBO()
		return false
	}
	return true
}

// checkFullConversionThreshold implements the full-conversion half of the
// profitability heuristics: more than MaxFullConversions
// consecutive fully-dirty uploads of a conversion-active buffer drops the
// device BO permanently.
func (b *Buffer) checkFullConversionThreshold() {
	if b.fullConversionCount > MaxFullConversions {
		b.abandonBO()
	}
}

// abandonBO permanently disables device residency for this buffer: drops
// the device BO and falls back to host-memory-only operation. USE_BO
// never becomes true again once cleared.
func (b *Buffer) abandonBO() {
	if !b.useBO {
		return
	}
	vlog.Logger().Warn("abandoning device BO permanently",
		"handle", b.handle,
		"declChangeCount", b.declChangeCount,
		"fullConversionCount", b.fullConversionCount)
	// Bring SYSMEM up to date while the BO still exists, then mark BUFFER
	// invalid: after this the bytes live only in host memory.
	b.loadLocation(location.SYSMEM)
	b.useBO = false
	b.backend.Unload(b.ctx, location.BUFFER)
	b.loc.Invalidate(location.BUFFER)
	if dob, ok := b.backend.(interface{ SetUseBO(bool) }); ok {
		dob.SetUseBO(false)
	}
}
