package ipc

import (
	"sync"

	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// fragKey identifies one in-progress large-config reassembly: a
// component can have at most one set_config sequence open per param id
// at a time.
type fragKey struct {
	comp ids.ComponentID
	param uint32
}

type fragState struct {
	buf      []byte
	received uint32
	total    uint32
}

// fragReassembler accumulates set_config fragments per (component,
// param) pair, rejecting any fragment that arrives out of the
// first/middle/last sequence with bad_state rather than silently
// corrupting or truncating the reassembled blob.
type fragReassembler struct {
	mu      sync.Mutex
	inFlight map[fragKey]*fragState
}

func newFragReassembler() *fragReassembler {
	return &fragReassembler{inFlight: make(map[fragKey]*fragState)}
}

// Feed processes one set_config fragment. It returns (blob, true, nil)
// once the sequence completes (Single, or the Last of a First/Middle*/
// Last run) — the caller applies the blob to the target component. A
// Middle or Last fragment with no matching in-progress state, or a
// First/Single that collides with one already open, is rejected with
// bad_state.
func (f *fragReassembler) Feed(req SetConfigRequest) (blob []byte, complete bool, err error) {
	key := fragKey{comp: req.ComponentID, param: req.ParamID}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch req.Position {
	case FragmentSingle:
		if _, exists := f.inFlight[key]; exists {
			return nil, false, dsperr.New(dsperr.CodeBadState, "ipc: set_config single fragment while a sequence is already open")
		}
		return append([]byte(nil), req.Fragment...), true, nil

	case FragmentFirst:
		if _, exists := f.inFlight[key]; exists {
			return nil, false, dsperr.New(dsperr.CodeBadState, "ipc: set_config first fragment while a sequence is already open")
		}
		st := &fragState{total: req.TotalSize, buf: make([]byte, 0, req.TotalSize)}
		st.buf = append(st.buf, req.Fragment...)
		st.received = uint32(len(st.buf))
		f.inFlight[key] = st
		return nil, false, nil

	case FragmentMiddle:
		st, exists := f.inFlight[key]
		if !exists {
			return nil, false, dsperr.New(dsperr.CodeBadState, "ipc: set_config middle fragment with no open sequence")
		}
		st.buf = append(st.buf, req.Fragment...)
		st.received = uint32(len(st.buf))
		return nil, false, nil

	case FragmentLast:
		st, exists := f.inFlight[key]
		if !exists {
			return nil, false, dsperr.New(dsperr.CodeBadState, "ipc: set_config last fragment with no open sequence")
		}
		st.buf = append(st.buf, req.Fragment...)
		delete(f.inFlight, key)
		return st.buf, true, nil

	default:
		return nil, false, dsperr.New(dsperr.CodeBadParam, "ipc: unknown set_config fragment position")
	}
}

// Abandon drops any in-progress sequence for a component, e.g. when the
// component is freed mid-fragmentation.
func (f *fragReassembler) Abandon(comp ids.ComponentID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.inFlight {
		if k.comp == comp {
			delete(f.inFlight, k)
		}
	}
}
