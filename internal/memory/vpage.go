package memory

import (
	"fmt"
	"sync"
)

// PageSize is the virtual-page granularity on platforms with an
// MMU/TLB.
const PageSize = 4096

// VPageAllocator hands out contiguous runs of virtual pages and tracks
// their mapping to physical pages. Only platforms with PerCore pools
// backed by an MMU need this; pools without it allocate straight out of
// the byte arena via Pool.Alloc.
type VPageAllocator struct {
	mu        sync.Mutex
	numPages  uint32
	allocated []bool  // per-page allocation bitmap
	physOf    []uint32 // virtual page index -> physical page number, valid where allocated
	nextPhys  uint32
}

// NewVPageAllocator creates an allocator managing totalBytes worth of
// virtual address space, rounded down to a whole number of pages.
func NewVPageAllocator(totalBytes uint32) *VPageAllocator {
	n := totalBytes / PageSize
	return &VPageAllocator{
		numPages:  n,
		allocated: make([]bool, n),
		physOf:    make([]uint32, n),
	}
}

// Alloc reserves `pages` contiguous virtual pages and assigns each a
// freshly bumped physical page number, returning the starting virtual
// page index. Physical pages are never reused across allocations in
// this simulated allocator; it provides the contiguous-alloc primitive
// without claiming a real page-table implementation.
func (v *VPageAllocator) Alloc(pages uint32) (uint32, error) {
	if pages == 0 {
		return 0, fmt.Errorf("memory: zero-page allocation requested")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	run := uint32(0)
	start := uint32(0)
	for i := uint32(0); i < v.numPages; i++ {
		if v.allocated[i] {
			run = 0
			continue
		}
		if run == 0 {
			start = i
		}
		run++
		if run == pages {
			for p := start; p < start+pages; p++ {
				v.allocated[p] = true
				v.physOf[p] = v.nextPhys
				v.nextPhys++
			}
			return start, nil
		}
	}
	return 0, ErrOutOfMemory
}

// Free releases `pages` virtual pages starting at vpage.
func (v *VPageAllocator) Free(vpage, pages uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if uint64(vpage)+uint64(pages) > uint64(v.numPages) {
		return fmt.Errorf("memory: free out of range")
	}
	for p := vpage; p < vpage+pages; p++ {
		v.allocated[p] = false
		v.physOf[p] = 0
	}
	return nil
}

// Translate returns the physical page number backing a virtual page.
func (v *VPageAllocator) Translate(vpage uint32) (uint32, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if vpage >= v.numPages || !v.allocated[vpage] {
		return 0, false
	}
	return v.physOf[vpage], true
}
