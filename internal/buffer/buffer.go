// Package buffer implements the audio circular buffer: a fixed-capacity
// ring that sits between two components on a pipeline
// edge, written by produce and read by consume, with zero-copy region
// access for components that write/read in place rather than through a
// copy call.
//
// The ring is wired to internal/shared for the cache-range discipline a
// cross-core edge must observe.
package buffer

import (
	"fmt"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
	"github.com/jangala-audio/dspcore/internal/shared"
)

// Region describes a zero-copy view into the ring for a source or sink
// that wants to read/write in place rather than through Produce/Consume.
type Region struct {
	Data []byte // may be shorter than requested if it would wrap; caller issues a second region for the remainder
}

// Buffer is one pipeline edge's audio ring.
type Buffer struct {
	ID ids.BufferID

	params     audioformat.Params
	block      *memory.Block
	data       []byte // the ring proper; the pool block may be size-class rounded up
	sourceComp ids.ComponentID
	sinkComp   ids.ComponentID
	crossCore  bool

	ring *shared.Shared[ringState]
}

type ringState struct {
	readPos  uint32
	writePos uint32
	avail    uint32 // bytes of unconsumed data
}

// New allocates a buffer of sizeBytes from pool and wraps it, ready for
// SetParams before first use.
func New(id ids.BufferID, pool *memory.Pool, sizeBytes uint32, caps memory.Capability) (*Buffer, error) {
	b, err := pool.Alloc(sizeBytes, caps)
	if err != nil {
		return nil, dsperr.Wrap(dsperr.CodeNoMemory, "buffer: allocate ring", err)
	}
	buf := &Buffer{
		ID:    id,
		block: b,
		data:  b.Data[:sizeBytes],
	}
	buf.ring = shared.WithRegion(ringState{}, buf.data, nil, nil)
	return buf, nil
}

// SetCrossCore marks this buffer as connecting components on different
// cores, as comp_buffer_connect discovers. The flag is informational:
// Produce and Consume apply whatever cache ops SetCacheOps installed,
// whether or not it is set.
func (b *Buffer) SetCrossCore(v bool) { b.crossCore = v }

// SetCacheOps installs the invalidate/writeback pair Produce and
// Consume bound to the byte ranges they touch. A single-core edge
// leaves both nil (no-op). Apart from the buffer tests nothing in this
// module installs ops, so a cross-core edge also runs with no-op ops.
func (b *Buffer) SetCacheOps(invalidate, writeback shared.CacheOp) {
	b.ring.SetOps(invalidate, writeback)
}

// CrossCore reports whether this buffer was marked cross-core.
func (b *Buffer) CrossCore() bool { return b.crossCore }

// SetParams declares the stream shape flowing through this edge. It may
// only be called before the buffer holds any unconsumed data.
func (b *Buffer) SetParams(p audioformat.Params) error {
	if b.ring.Value().avail != 0 {
		return dsperr.New(dsperr.CodeBadState, "buffer: cannot change params while data is in flight")
	}
	b.params = p
	return nil
}

// Params returns the buffer's current stream shape.
func (b *Buffer) Params() audioformat.Params { return b.params }

// SetSize shrinks or regrows the ring in place. Valid only while the
// ring is empty, and never beyond the bytes actually allocated for it.
func (b *Buffer) SetSize(newSize uint32) error {
	if b.Avail() != 0 {
		return dsperr.New(dsperr.CodeBadState, "buffer: cannot resize while data is in flight")
	}
	if newSize == 0 || newSize > b.block.Size {
		return dsperr.New(dsperr.CodeBadParam, "buffer: resize outside allocated block")
	}
	b.data = b.block.Data[:newSize]
	b.ring.Write(0, 0, func(ringState) ringState { return ringState{} })
	return nil
}

// SetEndpoints records the component ids on each side of this edge,
// installed by the pipeline at connect time.
func (b *Buffer) SetEndpoints(source, sink ids.ComponentID) {
	b.sourceComp = source
	b.sinkComp = sink
}

// Source returns the id of the component producing into this buffer.
func (b *Buffer) Source() ids.ComponentID { return b.sourceComp }

// Sink returns the id of the component consuming from this buffer.
func (b *Buffer) Sink() ids.ComponentID { return b.sinkComp }

// Size returns the ring's total capacity in bytes.
func (b *Buffer) Size() uint32 { return uint32(len(b.data)) }

// Avail returns the number of bytes of unconsumed data.
func (b *Buffer) Avail() uint32 { return b.ring.Value().avail }

// Free returns the number of bytes available to produce into.
func (b *Buffer) Free() uint32 { return b.Size() - b.Avail() }

// GetSinkRegion returns up to `want` contiguous bytes at the write
// position for a producer to fill in place. If the write position is
// near the end of the ring, the region is truncated to avoid wrapping;
// the caller calls GetSinkRegion again after Produce to get the
// remainder.
func (b *Buffer) GetSinkRegion(want uint32) Region {
	st := b.ring.Value()
	free := b.Size() - st.avail
	if want > free {
		want = free
	}
	toEnd := b.Size() - st.writePos
	if want > toEnd {
		want = toEnd
	}
	return Region{Data: b.data[st.writePos : st.writePos+want]}
}

// GetSourceRegion is GetSinkRegion's counterpart for a consumer reading
// in place from the read position.
func (b *Buffer) GetSourceRegion(want uint32) Region {
	st := b.ring.Value()
	if want > st.avail {
		want = st.avail
	}
	toEnd := b.Size() - st.readPos
	if want > toEnd {
		want = toEnd
	}
	return Region{Data: b.data[st.readPos : st.readPos+want]}
}

// Produce advances the write position and avail count by n bytes after
// a producer has written n bytes (via GetSinkRegion or its own copy).
// Overrun — producing past capacity — is permitted: the
// oldest unconsumed bytes are overwritten and the caller is expected to
// have already raised an overrun xrun through the pipeline, not here.
func (b *Buffer) Produce(n uint32) {
	size := b.Size()
	writePos := b.ring.Value().writePos
	b.ring.WriteWrapped(writePos, n, size, func(st ringState) ringState {
		st.writePos = (st.writePos + n) % size
		st.avail += n
		if st.avail > size {
			overrun := st.avail - size
			st.avail = size
			st.readPos = (st.readPos + overrun) % size
		}
		return st
	})
}

// Consume advances the read position and reduces avail by n bytes after
// a consumer has read n bytes. Underrun — consuming more than is
// available — is also permitted: avail floors at zero and the caller is
// expected to have already raised an underrun xrun.
func (b *Buffer) Consume(n uint32) {
	size := b.Size()
	st := b.ring.Value()
	if n > st.avail {
		n = st.avail
	}
	// invalidate precedes the logical read, bounded to the consumed
	// range and split at the wrap point.
	b.ring.ReadWrapped(st.readPos, n, size, func(ringState) {})
	b.ring.Write(0, 0, func(st ringState) ringState {
		if n > st.avail {
			n = st.avail
		}
		st.readPos = (st.readPos + n) % size
		st.avail -= n
		return st
	})
}

// Write copies data into the ring as a producer would, splitting across
// the wrap point, and advances the write position. It is the convenience
// path for components that don't need zero-copy region access.
func (b *Buffer) Write(data []byte) (int, error) {
	if uint32(len(data)) > b.Free() {
		return 0, fmt.Errorf("buffer: write of %d bytes exceeds %d free", len(data), b.Free())
	}
	n := 0
	for n < len(data) {
		r := b.GetSinkRegion(uint32(len(data) - n))
		if len(r.Data) == 0 {
			break
		}
		copy(r.Data, data[n:])
		b.Produce(uint32(len(r.Data)))
		n += len(r.Data)
	}
	return n, nil
}

// Release returns the buffer's backing block to pool, for buffer_free's
// per-edge teardown rather than the whole-pipeline
// teardown Pipeline.Free performs.
func (b *Buffer) Release(pool *memory.Pool) error {
	return pool.Free(b.block)
}

// Read copies up to len(out) bytes from the ring as a consumer would,
// splitting across the wrap point, and advances the read position.
func (b *Buffer) Read(out []byte) (int, error) {
	n := 0
	for n < len(out) {
		r := b.GetSourceRegion(uint32(len(out) - n))
		if len(r.Data) == 0 {
			break
		}
		copy(out[n:], r.Data)
		b.Consume(uint32(len(r.Data)))
		n += len(r.Data)
	}
	return n, nil
}
