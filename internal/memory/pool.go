// Package memory implements the typed-allocator registry: named pools
// (system, system-runtime, runtime, runtime-shared, buffer,
// low-power-buffer) each advertising a capability mask, each partitioned
// into power-of-two size-class free lists plus one large-block region
// for the buffer pool. Allocation is O(1): pick the ceiling size class,
// pop from its free list. A request no class can serve (too large, or
// its class empty) goes to the large-block region: first-fit over freed
// runs, then bump. No coalescing is performed — size-class
// fragmentation is an accepted cost. Allocation failure returns an
// error, never evicts another allocation to make room: pool memory is
// not a cache.
package memory

import (
	"fmt"
	"sync"
)

// sizeClasses are the fixed power-of-two buckets.
var sizeClasses = []uint32{64, 128, 256, 512, 1024, 2048, 4096}

// Block is a handle to one allocation. Data aliases the pool's backing
// arena directly — callers are expected to treat the byte range as
// exclusively theirs until Free.
type Block struct {
	Offset uint32
	Size   uint32
	Data   []byte
}

// ErrOutOfMemory is returned by Alloc when no block of sufficient size
// satisfies the request; it is never a panic — the caller decides
// whether the failure is fatal.
var ErrOutOfMemory = fmt.Errorf("out_of_memory")

// freeList is one size class's set of free offsets within the arena.
type freeList struct {
	classSize uint32
	free      []uint32 // offsets of free blocks of exactly classSize
}

// largeBlock tracks one free run in the large-block region.
type largeBlock struct {
	offset uint32
	size   uint32
}

// Pool is one named, capability-tagged memory region.
type Pool struct {
	Name         string
	Capabilities Capability

	mu       sync.Mutex
	arena    []byte
	classes  []*freeList
	highWater uint32 // next unused byte, for the large-block bump region
	largeFree []largeBlock
	allocated uint64 // bytes currently allocated, for introspection
}

// NewPool creates a pool of the given size backed by a real byte arena
// (so buffers allocated from it can be read/written directly) and
// initializes one free list per size class, each pre-populated with an
// equal share of the small region; a class whose share is smaller than
// its block size starts empty.
func NewPool(name string, sizeBytes uint32, caps Capability) *Pool {
	p := &Pool{
		Name:         name,
		Capabilities: caps,
		arena:        make([]byte, sizeBytes),
	}
	p.classes = make([]*freeList, len(sizeClasses))
	for i, sz := range sizeClasses {
		p.classes[i] = &freeList{classSize: sz}
	}
	// Reserve a quarter of the arena for size-classed small allocations,
	// the rest for the large-block region used by audio buffers.
	smallRegion := sizeBytes / 4
	p.carveSizeClasses(smallRegion)
	p.highWater = smallRegion
	return p
}

// carveSizeClasses slices off `region` bytes from the front of the arena
// and distributes it evenly across the size classes as free blocks.
func (p *Pool) carveSizeClasses(region uint32) {
	if len(p.classes) == 0 || region == 0 {
		return
	}
	perClass := region / uint32(len(p.classes))
	offset := uint32(0)
	for _, fl := range p.classes {
		n := perClass / fl.classSize
		for i := uint32(0); i < n; i++ {
			fl.free = append(fl.free, offset)
			offset += fl.classSize
		}
	}
}

// ceilingClass returns the index of the smallest size class able to hold
// size bytes, or -1 if size exceeds the largest class (caller falls
// through to the large-block region).
func ceilingClass(size uint32) int {
	for i, sz := range sizeClasses {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Alloc reserves size bytes from the pool, requiring caps be a subset of
// the pool's capability mask. Returns ErrOutOfMemory (never panics) when
// no suitably sized free block exists.
func (p *Pool) Alloc(size uint32, caps Capability) (*Block, error) {
	if !p.Capabilities.Satisfies(caps) {
		return nil, fmt.Errorf("%w: pool %q lacks requested capabilities", ErrOutOfMemory, p.Name)
	}
	if size == 0 {
		return nil, fmt.Errorf("memory: zero-size allocation requested")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if idx := ceilingClass(size); idx >= 0 {
		fl := p.classes[idx]
		if n := len(fl.free); n > 0 {
			offset := fl.free[n-1]
			fl.free = fl.free[:n-1]
			p.allocated += uint64(fl.classSize)
			return &Block{Offset: offset, Size: fl.classSize, Data: p.arena[offset : offset+fl.classSize]}, nil
		}
		// Size class exhausted, or never carved in a pool too small to
		// give it a block: serve the request from the large-block region.
		// Classes never borrow blocks from each other.
	}

	return p.allocLarge(size)
}

// allocLarge services the buffer pool's large-block region with first-fit
// over freed runs, bumping the high-water mark when no free run fits.
func (p *Pool) allocLarge(size uint32) (*Block, error) {
	for i, b := range p.largeFree {
		if b.size >= size {
			p.largeFree = append(p.largeFree[:i], p.largeFree[i+1:]...)
			if b.size > size {
				p.largeFree = append(p.largeFree, largeBlock{offset: b.offset + size, size: b.size - size})
			}
			p.allocated += uint64(size)
			return &Block{Offset: b.offset, Size: size, Data: p.arena[b.offset : b.offset+size]}, nil
		}
	}
	if uint64(p.highWater)+uint64(size) > uint64(len(p.arena)) {
		return nil, ErrOutOfMemory
	}
	offset := p.highWater
	p.highWater += size
	p.allocated += uint64(size)
	return &Block{Offset: offset, Size: size, Data: p.arena[offset : offset+size]}, nil
}

// Free releases a block back to the size class its size matches or to
// the large-block free list. Only a nil block is reported as an error:
// Free does not check that a block was obtained from this pool, so a
// block with a foreign offset or size is added to a free list as given.
func (p *Pool) Free(b *Block) error {
	if b == nil {
		return fmt.Errorf("memory: free of nil block")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx := ceilingClass(b.Size); idx >= 0 && sizeClasses[idx] == b.Size {
		fl := p.classes[idx]
		fl.free = append(fl.free, b.Offset)
		p.allocated -= uint64(b.Size)
		return nil
	}
	p.largeFree = append(p.largeFree, largeBlock{offset: b.Offset, size: b.Size})
	p.allocated -= uint64(b.Size)
	return nil
}

// Allocated returns the number of bytes currently allocated from the pool.
func (p *Pool) Allocated() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Size returns the pool's total arena size in bytes.
func (p *Pool) Size() uint32 {
	return uint32(len(p.arena))
}
