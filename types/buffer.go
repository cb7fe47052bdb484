package types

import "github.com/gogpu/vbuffer/errs"

// Usage is a bitset of high-level usage hints for a buffer, mirroring the
// wined3d WINED3DUSAGE bits relevant to buffer residency.
type Usage uint32

const (
	// UsageDynamic marks a buffer that is rewritten frequently; it
	// disables the "evict host memory after BUFFER residency" optimization
	// and forces BO abandonment on alignment fallback
	// and on any declaration change while a conversion is active.
	UsageDynamic Usage = 1 << iota
	// UsageStaticDecl marks a buffer whose vertex declaration is asserted
	// never to change after the first draw; once HASDESC is set for such a
	// buffer, declaration inspection is skipped entirely.
	UsageStaticDecl
	// UsageManaged forces a host-pinned copy at creation.
	UsageManaged
	// UsageSoftwareVP is the software vertex-processing hint; like
	// UsageManaged it forces the buffer to start life with a valid SYSMEM
	// location.
	UsageSoftwareVP
)

// Has reports whether all bits in other are set in u.
func (u Usage) Has(other Usage) bool { return u&other == other }

// BindFlags enumerates the pipeline stages a buffer may be bound to.
type BindFlags uint32

const (
	BindVertex BindFlags = 1 << iota
	BindIndex
	BindConstant
	BindShaderResource
	BindUnorderedAccess
	BindStreamOutput
	BindIndirect
	BindRenderTarget
	BindDepthStencil
)

// Has reports whether all bits in other are set in f.
func (f BindFlags) Has(other BindFlags) bool { return f&other == other }

// Access is a bitset describing which agents may touch a buffer's bytes.
type Access uint32

const (
	AccessMapRead Access = 1 << iota
	AccessMapWrite
	AccessGPU
)

// Has reports whether all bits in other are set in a.
func (a Access) Has(other Access) bool { return a&other == other }

// ConstantBufferAlignment is the required byte_width alignment when
// BindFlags includes BindConstant.
const ConstantBufferAlignment = 16

// Descriptor carries the fields the external creation entry point is
// expected to have already validated into a request this module can act
// on. ByteWidth, BindFlags, and Usage combine to decide the buffer's
// starting location set and whether BUFFER residency is ever attempted
// at all.
type Descriptor struct {
	// ByteWidth is the size of the resource in bytes. Must be > 0.
	ByteWidth int64
	// Usage is the resource usage bitset.
	Usage Usage
	// BindFlags is the set of pipeline stages the buffer may be bound to.
	BindFlags BindFlags
	// Access describes CPU/GPU access patterns.
	Access Access
	// MiscFlags is reserved for flags this module does not interpret.
	MiscFlags uint32
	// StructureByteStride is the stride of a structured-buffer element;
	// zero for non-structured buffers. Distinct from the vertex stride
	// the conversion engine tracks, which is inferred from stream
	// declarations rather than supplied at creation.
	StructureByteStride uint32
	// Label is an optional debug name, carried for logging only.
	Label string
}

// Validate checks the invariants placed on creation: ByteWidth must be
// positive, and a constant-buffer binding must be aligned.
func (d *Descriptor) Validate() error {
	if d.ByteWidth <= 0 {
		return &errs.ValidationError{Resource: "Buffer", Field: "ByteWidth", Message: "must be greater than zero"}
	}
	if d.BindFlags.Has(BindConstant) && d.ByteWidth%ConstantBufferAlignment != 0 {
		return &errs.ValidationError{
			Resource: "Buffer",
			Field:    "ByteWidth",
			Message:  "constant-buffer byte_width must be a multiple of 16",
		}
	}
	return nil
}

// UsesDeviceBO reports whether a buffer created from d is ever eligible for
// BUFFER (device-object) residency. Buffers forced host-pinned (managed or
// software-vp usage) still start life able to use the device BO once the
// host copy has been populated; the USE_BO flag governs that independently
// of the starting location set, so this only reflects what the descriptor
// itself rules out.
func (d *Descriptor) UsesDeviceBO() bool {
	return d.Access.Has(AccessGPU) || d.BindFlags != 0
}
