// Package ids provides the identifier types used across the core: a
// component's type identity is a 16-byte UUID, while every
// runtime-assigned handle (component instance, pipeline, buffer, DAI
// binding) is a small integer because it must round-trip through the IPC
// wire header's 16/32-bit primary-specific fields.
package ids

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ComponentType is the UUID identifying a component's implementation
// (e.g. "this is a volume component"), shared by every instance of that
// kind. It is supplied by the host in the topology blob and by IPC
// component_new.
type ComponentType uuid.UUID

func (t ComponentType) String() string { return uuid.UUID(t).String() }

// ParseComponentType parses a textual UUID into a ComponentType.
func ParseComponentType(s string) (ComponentType, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ComponentType{}, err
	}
	return ComponentType(u), nil
}

// Well-known component type UUIDs, one per component kind. Generated
// once; values only need to be stable within a
// running firmware image and its paired topology blob.
var (
	TypeHost           = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac01")
	TypeDAI            = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac02")
	TypeBuffer         = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac03")
	TypeVolume         = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac04")
	TypeMixer          = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac05")
	TypeMux            = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac06")
	TypeDemux          = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac07")
	TypeSRC            = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac08")
	TypeASRC           = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac09")
	TypeTone           = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac0a")
	TypeEQIIR          = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac0b")
	TypeEQFIR          = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac0c")
	TypeKeywordDetect  = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac0d")
	TypeKPB            = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac0e")
	TypeSelector       = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac0f")
	TypeDCBlock        = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac10")
	TypeSmartAmp       = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac11")
	TypeModuleAdapter  = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac12")
	TypeDRC            = mustType("a96aaad4-7a71-4c91-9f5c-09c4ecd2ac13")
)

func mustType(s string) ComponentType {
	u := uuid.MustParse(s)
	return ComponentType(u)
}

// ComponentID, PipelineID, BufferID and DAIBindingID are runtime-scoped
// integer handles, backed by uint32 counters since the wire header
// packs them directly into fixed-width fields.
type (
	ComponentID  uint32
	PipelineID   uint32
	BufferID     uint32
	DAIBindingID uint32
)

// Allocator hands out monotonically increasing ids of a single kind,
// lock-free via atomic.Uint32. Each runtime owns one allocator per id
// kind (component, pipeline, buffer, DAI binding).
type Allocator struct {
	next atomic.Uint32
}

// NewAllocator returns an allocator whose first Next() call yields start
// (1 when start is 0).
func NewAllocator(start uint32) *Allocator {
	a := &Allocator{}
	if start > 0 {
		a.next.Store(start - 1)
	}
	return a
}

// Next returns the next id in sequence, starting from the configured start.
func (a *Allocator) Next() uint32 {
	return a.next.Add(1)
}
