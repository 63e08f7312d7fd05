package ipc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
)

// fakeHost records the calls the dispatcher routed to it and replies
// with a programmable error, standing in for internal/runtime.
type fakeHost struct {
	calls   []string
	fail    error
	configs map[ids.ComponentID][]byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{configs: make(map[ids.ComponentID][]byte)}
}

func (f *fakeHost) record(name string) error {
	f.calls = append(f.calls, name)
	return f.fail
}

func (f *fakeHost) ComponentNew(ids.ComponentType, ids.ComponentID, ids.PipelineID, string, []byte) error {
	return f.record("comp_new")
}
func (f *fakeHost) ComponentFree(ids.ComponentID) error { return f.record("comp_free") }
func (f *fakeHost) ComponentConfigure(id ids.ComponentID, blob []byte) error {
	f.configs[id] = append([]byte(nil), blob...)
	return f.record("comp_configure")
}
func (f *fakeHost) ComponentGetConfig(id ids.ComponentID) ([]byte, error) {
	f.calls = append(f.calls, "comp_get_config")
	return f.configs[id], f.fail
}
func (f *fakeHost) BufferNew(ids.BufferID, ids.PipelineID, uint32, memory.Capability, audioformat.Params) error {
	return f.record("buffer_new")
}
func (f *fakeHost) BufferFree(ids.BufferID, ids.PipelineID) error { return f.record("buffer_free") }
func (f *fakeHost) PipelineNew(ids.PipelineID, int64) error       { return f.record("pipe_new") }
func (f *fakeHost) PipelineFree(ids.PipelineID) error             { return f.record("pipe_free") }
func (f *fakeHost) ComponentConnect(ids.PipelineID, ids.ComponentID, ids.ComponentID, ids.BufferID) error {
	return f.record("comp_connect")
}
func (f *fakeHost) PipelineComplete(context.Context, ids.PipelineID) error {
	return f.record("pipe_complete")
}
func (f *fakeHost) DAIConfig(ids.PipelineID, ids.ComponentID, string, string, int, dai.Direction) error {
	return f.record("dai_config")
}
func (f *fakeHost) PCMParams(context.Context, ids.PipelineID, uint32, audioformat.Params) error {
	return f.record("pcm_params")
}
func (f *fakeHost) PCMFree(ids.PipelineID) error { return f.record("pcm_free") }
func (f *fakeHost) Trigger(ids.PipelineID, component.TriggerCmd) error {
	return f.record("trigger")
}
func (f *fakeHost) Position(ids.PipelineID, ids.ComponentID) (uint32, uint32, error) {
	f.calls = append(f.calls, "position")
	return 7, 42, f.fail
}
func (f *fakeHost) CtxSave(int) error            { return f.record("ctx_save") }
func (f *fakeHost) CtxRestore(int) error         { return f.record("ctx_restore") }
func (f *fakeHost) CoreEnable(int, bool) error   { return f.record("core_enable") }
func (f *fakeHost) TraceDMAParams(int) error     { return f.record("trace_dma_params") }
func (f *fakeHost) MemDump(int) ([]byte, error)  { f.calls = append(f.calls, "mem_dump"); return []byte{1}, f.fail }

func newTestDispatcher(h Host) *Dispatcher {
	return NewDispatcher(h, nil, nil)
}

func pipeNewBody(id uint32, limit int64) []byte {
	var body []byte
	body = putU32(body, id)
	body = putU32(body, uint32(uint64(limit)))
	body = putU32(body, uint32(uint64(limit)>>32))
	return body
}

func TestDispatcherRepliesExactlyOnceWithMatchingClass(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	req := Envelope{Header: NewHeader(ClassTplg, CmdPipeNew, 0), Body: pipeNewBody(1, 0)}
	resp := d.Handle(context.Background(), req)

	assert.Equal(t, ClassTplg, resp.Header.Class())
	assert.Equal(t, CmdPipeNew, resp.Header.Command())
	assert.Equal(t, uint32(0), resp.Header.Payload()) // success status
	assert.Equal(t, []string{"pipe_new"}, h.calls)
}

func TestDispatcherMapsHostErrorToReplyStatus(t *testing.T) {
	h := newFakeHost()
	h.fail = dsperr.New(dsperr.CodeBadState, "nope")
	d := newTestDispatcher(h)

	req := Envelope{Header: NewHeader(ClassTplg, CmdPipeNew, 0), Body: pipeNewBody(2, 0)}
	resp := d.Handle(context.Background(), req)

	assert.Equal(t, dsperr.ReplyStatus(dsperr.CodeBadState), resp.Header.Payload())
}

func TestDispatcherTruncatedBodyIsBadParamNotPanic(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	req := Envelope{Header: NewHeader(ClassTplg, CmdPipeNew, 0), Body: []byte{1}}
	resp := d.Handle(context.Background(), req)

	assert.Equal(t, dsperr.ReplyStatus(dsperr.CodeBadParam), resp.Header.Payload())
	assert.Empty(t, h.calls)
}

func TestDispatcherUnknownClassIsNotSupported(t *testing.T) {
	d := newTestDispatcher(newFakeHost())
	req := Envelope{Header: NewHeader(Class(9), 0, 0)}
	resp := d.Handle(context.Background(), req)
	assert.Equal(t, dsperr.ReplyStatus(dsperr.CodeNotSupported), resp.Header.Payload())
}

func TestDispatcherPositionReplyCarriesEncodedPair(t *testing.T) {
	d := newTestDispatcher(newFakeHost())
	var body []byte
	body = putU32(body, 1) // pipeline id
	body = putU32(body, 2) // component id
	req := Envelope{Header: NewHeader(ClassStream, CmdPosition, 0), Body: body}
	resp := d.Handle(context.Background(), req)

	require.Equal(t, uint32(0), resp.Header.Payload())
	require.Len(t, resp.Body, 8)
	assert.Equal(t, encodePosition(7, 42), resp.Body)
}

func setConfigBody(comp, param uint32, pos FragmentPosition, total uint32, frag []byte) []byte {
	var body []byte
	body = putU32(body, comp)
	body = putU32(body, param)
	body = append(body, byte(pos))
	body = putU32(body, total)
	body = putLenPrefixed(body, frag)
	return body
}

func TestDispatcherLargeConfigFragmentsReassembleInOrder(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	// 8 KiB blob as 4 x 2 KiB fragments: first, middle, middle, last.
	blob := make([]byte, 8192)
	for i := range blob {
		blob[i] = byte(i)
	}
	positions := []FragmentPosition{FragmentFirst, FragmentMiddle, FragmentMiddle, FragmentLast}
	for i, pos := range positions {
		frag := blob[i*2048 : (i+1)*2048]
		req := Envelope{
			Header: NewHeader(ClassStream, CmdSetConfig, 0),
			Body:   setConfigBody(5, 1, pos, uint32(len(blob)), frag),
		}
		resp := d.Handle(context.Background(), req)
		require.Equal(t, uint32(0), resp.Header.Payload(), "fragment %d", i)
	}

	require.Contains(t, h.calls, "comp_configure")
	assert.Equal(t, blob, h.configs[ids.ComponentID(5)])
}

func TestDispatcherOutOfOrderFragmentRejectedBadState(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	req := Envelope{
		Header: NewHeader(ClassStream, CmdSetConfig, 0),
		Body:   setConfigBody(6, 1, FragmentMiddle, 0, []byte{1, 2}),
	}
	resp := d.Handle(context.Background(), req)
	assert.Equal(t, dsperr.ReplyStatus(dsperr.CodeBadState), resp.Header.Payload())
	assert.NotContains(t, h.calls, "comp_configure")
}

func TestDispatcherSingleFragmentAppliesImmediately(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	req := Envelope{
		Header: NewHeader(ClassStream, CmdSetConfig, 0),
		Body:   setConfigBody(7, 3, FragmentSingle, 4, []byte{9, 9, 9, 9}),
	}
	resp := d.Handle(context.Background(), req)
	require.Equal(t, uint32(0), resp.Header.Payload())
	assert.Equal(t, []byte{9, 9, 9, 9}, h.configs[ids.ComponentID(7)])
}

func TestDispatcherCompFreeAbandonsOpenFragmentSequence(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	first := Envelope{
		Header: NewHeader(ClassStream, CmdSetConfig, 0),
		Body:   setConfigBody(8, 1, FragmentFirst, 4096, make([]byte, 2048)),
	}
	require.Equal(t, uint32(0), d.Handle(context.Background(), first).Header.Payload())

	var freeBody []byte
	freeBody = putU32(freeBody, 8)
	free := Envelope{Header: NewHeader(ClassTplg, CmdCompFree, 0), Body: freeBody}
	require.Equal(t, uint32(0), d.Handle(context.Background(), free).Header.Payload())

	// a fresh First for the same key must now be accepted, not collide.
	again := Envelope{
		Header: NewHeader(ClassStream, CmdSetConfig, 0),
		Body:   setConfigBody(8, 1, FragmentFirst, 4096, make([]byte, 2048)),
	}
	assert.Equal(t, uint32(0), d.Handle(context.Background(), again).Header.Payload())
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	env := Envelope{Header: NewHeader(ClassStream, CmdTrigger, 123), Body: []byte{1, 2, 3}}
	decoded, err := DecodeEnvelope(env.Encode())
	require.NoError(t, err)
	assert.Equal(t, env.Header, decoded.Header)
	assert.Equal(t, env.Body, decoded.Body)

	_, err = DecodeEnvelope([]byte{1, 2})
	assert.Error(t, err)
}

func TestDispatcherGetConfigRoundTripsLoadedBlob(t *testing.T) {
	h := newFakeHost()
	d := newTestDispatcher(h)

	blob := []byte{1, 2, 3, 4, 5}
	set := Envelope{
		Header: NewHeader(ClassStream, CmdSetConfig, 0),
		Body:   setConfigBody(9, 1, FragmentSingle, uint32(len(blob)), blob),
	}
	require.Equal(t, uint32(0), d.Handle(context.Background(), set).Header.Payload())

	var body []byte
	body = putU32(body, 9)
	get := Envelope{Header: NewHeader(ClassStream, CmdGetConfig, 0), Body: body}
	resp := d.Handle(context.Background(), get)
	require.Equal(t, uint32(0), resp.Header.Payload())
	assert.Equal(t, putLenPrefixed(nil, blob), resp.Body)
}
