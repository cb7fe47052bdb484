package residency

import (
	"github.com/gogpu/vbuffer/errs"
	"github.com/gogpu/vbuffer/location"
)

// Address is the (bo, host_ptr) pair GetMemory selects from current
// residency. Exactly one field is set: BO when BUFFER was chosen, Host
// when SYSMEM was.
type Address struct {
	BO   []byte
	Host []byte
}

// LoadSysmem forces SYSMEM resident and pins it, so later residency
// decisions keep using host memory instead of evicting it once BUFFER
// also becomes valid. Returns the host bytes.
func (b *Buffer) LoadSysmem() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.loadLocation(location.SYSMEM); err != nil {
		return nil, err
	}
	b.pinSysmem = true
	return b.backend.HostMem(), nil
}

// GetMemory picks whichever location is cheapest to read from right now
// and returns its address. If the buffer is currently only DISCARDED or
// CLEARED, it is first loaded into BUFFER (when USE_BO) or SYSMEM
// (otherwise). BUFFER is preferred over SYSMEM when both are valid.
func (b *Buffer) GetMemory() (location.Location, Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loc.Has(location.DISCARDED) || b.loc.Has(location.CLEARED) {
		l := location.SYSMEM
		if b.useBO {
			l = location.BUFFER
		}
		if err := b.loadLocation(l); err != nil {
			return 0, Address{}, err
		}
	}

	if b.loc.Has(location.BUFFER) {
		return location.BUFFER, Address{BO: b.backend.DeviceMem()}, nil
	}
	if b.loc.Has(location.SYSMEM) {
		return location.SYSMEM, Address{Host: b.backend.HostMem()}, nil
	}
	return 0, Address{}, errs.ErrCoherenceViolation
}
