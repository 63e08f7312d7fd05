package ipc

import (
	"github.com/google/uuid"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

// tlvSkipValidate walks an extended-init preamble purely for its
// bounds-checking side effect: every
// TLV's declared length is validated against the remaining buffer and
// unrecognized tokens are skipped, exactly as internal/tlv.Walk already
// does for the topology blob parser.
func tlvSkipValidate(data []byte) error {
	return tlv.Walk(data, func(tlv.Token) error { return nil })
}

// decodeParams reads the fixed-width encoding of audioformat.Params
// shared by every command whose payload negotiates a stream shape.
func decodeParams(c *cursor) (audioformat.Params, error) {
	rate, err := c.u32()
	if err != nil {
		return audioformat.Params{}, err
	}
	channels, err := c.u32()
	if err != nil {
		return audioformat.Params{}, err
	}
	format, err := c.u8()
	if err != nil {
		return audioformat.Params{}, err
	}
	interlv, err := c.u8()
	if err != nil {
		return audioformat.Params{}, err
	}
	return audioformat.Params{
		Rate:     rate,
		Channels: channels,
		Format:   audioformat.Format(format),
		Interlv:  audioformat.Interleaving(interlv),
	}, nil
}

func encodeParams(dst []byte, p audioformat.Params) []byte {
	dst = putU32(dst, p.Rate)
	dst = putU32(dst, p.Channels)
	dst = append(dst, byte(p.Format), byte(p.Interlv))
	return dst
}

// CompNewRequest decodes GLB_TPLG/comp_new. An "extended init" TLV
// preamble may precede the
// fixed fields; unknown TLVs are skipped and every length is
// bounds-checked by internal/tlv.Walk before this cursor ever sees the
// fixed fields that follow it.
type CompNewRequest struct {
	Type        ids.ComponentType
	ID          ids.ComponentID
	PipelineID  ids.PipelineID
	Name        string
	ExtendedTLV []byte // raw extended-init preamble, already validated
	Config      []byte
}

func decodeCompNew(body []byte) (CompNewRequest, error) {
	c := newCursor(body)
	extLen, err := c.u32()
	if err != nil {
		return CompNewRequest{}, err
	}
	if err := c.need(int(extLen)); err != nil {
		return CompNewRequest{}, err
	}
	ext := c.data[c.off : c.off+int(extLen)]
	c.off += int(extLen)
	if err := tlvSkipValidate(ext); err != nil {
		return CompNewRequest{}, err
	}

	typBytes, err := c.bytes16()
	if err != nil {
		return CompNewRequest{}, err
	}
	id, err := c.u32()
	if err != nil {
		return CompNewRequest{}, err
	}
	pipelineID, err := c.u32()
	if err != nil {
		return CompNewRequest{}, err
	}
	name, err := c.string()
	if err != nil {
		return CompNewRequest{}, err
	}
	cfg, err := c.lenPrefixed()
	if err != nil {
		return CompNewRequest{}, err
	}
	return CompNewRequest{
		Type:        ids.ComponentType(uuid.UUID(typBytes)),
		ID:          ids.ComponentID(id),
		PipelineID:  ids.PipelineID(pipelineID),
		Name:        name,
		ExtendedTLV: ext,
		Config:      cfg,
	}, nil
}

// CompFreeRequest decodes GLB_TPLG/comp_free.
type CompFreeRequest struct{ ID ids.ComponentID }

func decodeCompFree(body []byte) (CompFreeRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	return CompFreeRequest{ID: ids.ComponentID(id)}, err
}

// BufferNewRequest decodes GLB_TPLG/buffer_new.
type BufferNewRequest struct {
	ID         ids.BufferID
	PipelineID ids.PipelineID
	SizeBytes  uint32
	Caps       memory.Capability
	Params     audioformat.Params
}

func decodeBufferNew(body []byte) (BufferNewRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	if err != nil {
		return BufferNewRequest{}, err
	}
	pipelineID, err := c.u32()
	if err != nil {
		return BufferNewRequest{}, err
	}
	size, err := c.u32()
	if err != nil {
		return BufferNewRequest{}, err
	}
	caps, err := c.u32()
	if err != nil {
		return BufferNewRequest{}, err
	}
	params, err := decodeParams(c)
	if err != nil {
		return BufferNewRequest{}, err
	}
	return BufferNewRequest{
		ID:         ids.BufferID(id),
		PipelineID: ids.PipelineID(pipelineID),
		SizeBytes:  size,
		Caps:       memory.Capability(caps),
		Params:     params,
	}, nil
}

// BufferFreeRequest decodes GLB_TPLG/buffer_free.
type BufferFreeRequest struct {
	ID         ids.BufferID
	PipelineID ids.PipelineID
}

func decodeBufferFree(body []byte) (BufferFreeRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	if err != nil {
		return BufferFreeRequest{}, err
	}
	pipelineID, err := c.u32()
	return BufferFreeRequest{ID: ids.BufferID(id), PipelineID: ids.PipelineID(pipelineID)}, err
}

// PipeNewRequest decodes GLB_TPLG/pipe_new.
type PipeNewRequest struct {
	ID             ids.PipelineID
	XrunLimitUsecs int64
}

func decodePipeNew(body []byte) (PipeNewRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	if err != nil {
		return PipeNewRequest{}, err
	}
	limit, err := c.i64()
	return PipeNewRequest{ID: ids.PipelineID(id), XrunLimitUsecs: limit}, err
}

// PipeFreeRequest decodes GLB_TPLG/pipe_free.
type PipeFreeRequest struct{ ID ids.PipelineID }

func decodePipeFree(body []byte) (PipeFreeRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	return PipeFreeRequest{ID: ids.PipelineID(id)}, err
}

// CompConnectRequest decodes GLB_TPLG/comp_connect. Buffers are edges
// here, so one call wires an entire component-buffer-component edge
// rather than treating the buffer as its own graph node needing two
// connect calls.
type CompConnectRequest struct {
	PipelineID ids.PipelineID
	From       ids.ComponentID
	To         ids.ComponentID
	BufferID   ids.BufferID
}

func decodeCompConnect(body []byte) (CompConnectRequest, error) {
	c := newCursor(body)
	pipelineID, err := c.u32()
	if err != nil {
		return CompConnectRequest{}, err
	}
	from, err := c.u32()
	if err != nil {
		return CompConnectRequest{}, err
	}
	to, err := c.u32()
	if err != nil {
		return CompConnectRequest{}, err
	}
	bufID, err := c.u32()
	return CompConnectRequest{
		PipelineID: ids.PipelineID(pipelineID),
		From:       ids.ComponentID(from),
		To:         ids.ComponentID(to),
		BufferID:   ids.BufferID(bufID),
	}, err
}

// PipeCompleteRequest decodes GLB_TPLG/pipe_complete.
type PipeCompleteRequest struct{ PipelineID ids.PipelineID }

func decodePipeComplete(body []byte) (PipeCompleteRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	return PipeCompleteRequest{PipelineID: ids.PipelineID(id)}, err
}

// DAIConfigRequest decodes GLB_TPLG/dai_config: it both claims a DAI
// binding matching (Type, Index, Direction) from the platform's table
// and installs it as a new Copier component with ComponentID/Name,
// since the Copier's constructor requires the claimed binding up front.
type DAIConfigRequest struct {
	PipelineID  ids.PipelineID
	ComponentID ids.ComponentID
	Name        string
	DAIType     string
	Index       int
	Direction   dai.Direction
}

func decodeDAIConfig(body []byte) (DAIConfigRequest, error) {
	c := newCursor(body)
	pipelineID, err := c.u32()
	if err != nil {
		return DAIConfigRequest{}, err
	}
	compID, err := c.u32()
	if err != nil {
		return DAIConfigRequest{}, err
	}
	name, err := c.string()
	if err != nil {
		return DAIConfigRequest{}, err
	}
	daiType, err := c.string()
	if err != nil {
		return DAIConfigRequest{}, err
	}
	index, err := c.i32()
	if err != nil {
		return DAIConfigRequest{}, err
	}
	dirVal, err := c.u8()
	if err != nil {
		return DAIConfigRequest{}, err
	}
	return DAIConfigRequest{
		PipelineID:  ids.PipelineID(pipelineID),
		ComponentID: ids.ComponentID(compID),
		Name:        name,
		DAIType:     daiType,
		Index:       int(index),
		Direction:   dai.Direction(dirVal),
	}, nil
}

// PCMParamsRequest decodes GLB_STREAM/pcm_params.
type PCMParamsRequest struct {
	PipelineID   ids.PipelineID
	PeriodFrames uint32
	Params       audioformat.Params
}

func decodePCMParams(body []byte) (PCMParamsRequest, error) {
	c := newCursor(body)
	pipelineID, err := c.u32()
	if err != nil {
		return PCMParamsRequest{}, err
	}
	period, err := c.u32()
	if err != nil {
		return PCMParamsRequest{}, err
	}
	params, err := decodeParams(c)
	return PCMParamsRequest{PipelineID: ids.PipelineID(pipelineID), PeriodFrames: period, Params: params}, err
}

// PCMFreeRequest decodes GLB_STREAM/pcm_free.
type PCMFreeRequest struct{ PipelineID ids.PipelineID }

func decodePCMFree(body []byte) (PCMFreeRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	return PCMFreeRequest{PipelineID: ids.PipelineID(id)}, err
}

// TriggerRequest decodes GLB_STREAM/trigger.
type TriggerRequest struct {
	PipelineID ids.PipelineID
	Cmd        uint8 // raw wire byte; the dispatcher converts it to component.TriggerCmd
}

func decodeTrigger(body []byte) (TriggerRequest, error) {
	c := newCursor(body)
	id, err := c.u32()
	if err != nil {
		return TriggerRequest{}, err
	}
	cmd, err := c.u8()
	return TriggerRequest{PipelineID: ids.PipelineID(id), Cmd: cmd}, err
}

// PositionRequest decodes GLB_STREAM/position.
type PositionRequest struct {
	PipelineID  ids.PipelineID
	ComponentID ids.ComponentID
}

func decodePosition(body []byte) (PositionRequest, error) {
	c := newCursor(body)
	pipelineID, err := c.u32()
	if err != nil {
		return PositionRequest{}, err
	}
	compID, err := c.u32()
	return PositionRequest{PipelineID: ids.PipelineID(pipelineID), ComponentID: ids.ComponentID(compID)}, err
}

func encodePosition(high, low uint32) []byte {
	var body []byte
	body = putU32(body, high)
	body = putU32(body, low)
	return body
}

// SetConfigRequest decodes GLB_STREAM/set_config, the large-config
// fragmentation protocol: a blob larger than the
// mailbox window arrives as a sequence of these, reassembled by
// fragment.go before being handed to the target component's Configure.
type SetConfigRequest struct {
	ComponentID ids.ComponentID
	ParamID     uint32
	Position    FragmentPosition
	TotalSize   uint32 // only meaningful on First/Single
	Fragment    []byte
}

// FragmentPosition is set_config's position field.
type FragmentPosition uint8

const (
	FragmentSingle FragmentPosition = iota
	FragmentFirst
	FragmentMiddle
	FragmentLast
)

func decodeSetConfig(body []byte) (SetConfigRequest, error) {
	c := newCursor(body)
	compID, err := c.u32()
	if err != nil {
		return SetConfigRequest{}, err
	}
	paramID, err := c.u32()
	if err != nil {
		return SetConfigRequest{}, err
	}
	pos, err := c.u8()
	if err != nil {
		return SetConfigRequest{}, err
	}
	total, err := c.u32()
	if err != nil {
		return SetConfigRequest{}, err
	}
	frag, err := c.lenPrefixed()
	if err != nil {
		return SetConfigRequest{}, err
	}
	return SetConfigRequest{
		ComponentID: ids.ComponentID(compID),
		ParamID:     paramID,
		Position:    FragmentPosition(pos),
		TotalSize:   total,
		Fragment:    frag,
	}, nil
}

// CoreEnableRequest decodes GLB_PM/core_enable.
type CoreEnableRequest struct {
	Core   int
	Enable bool
}

func decodeCoreEnable(body []byte) (CoreEnableRequest, error) {
	c := newCursor(body)
	core, err := c.i32()
	if err != nil {
		return CoreEnableRequest{}, err
	}
	enable, err := c.u8()
	return CoreEnableRequest{Core: int(core), Enable: enable != 0}, err
}
