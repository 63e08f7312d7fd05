package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
	"github.com/jangala-audio/dspcore/internal/tlv"
	"github.com/jangala-audio/dspcore/internal/topology"
)

// LoadTopology instantiates every pipeline, component, buffer edge and
// DAI binding a binary topology blob declares, then finalizes each
// declared pipeline — the boot-time equivalent of the host replaying
// the same graph over individual IPC commands.
// Blocks are applied in blob order, so a conforming blob declares a
// pipeline before the components that name it and components before the
// buffer edges that wire them, the same ordering the IPC command
// sequence would need.
func (rt *Runtime) LoadTopology(ctx context.Context, blob []byte) error {
	blocks, err := topology.NewParser().Parse(blob)
	if err != nil {
		return dsperr.Wrap(dsperr.CodeBadParam, "runtime: topology parse", err)
	}

	var declared []ids.PipelineID
	for _, b := range blocks {
		switch b.Type {
		case topology.BlockPipeline:
			id, err := rt.loadPipelineBlock(b)
			if err != nil {
				return err
			}
			declared = append(declared, id)
		case topology.BlockComponent:
			if err := rt.loadComponentBlock(b); err != nil {
				return err
			}
		case topology.BlockBuffer:
			if err := rt.loadBufferBlock(b); err != nil {
				return err
			}
		case topology.BlockDAI:
			if err := rt.loadDAIBlock(b); err != nil {
				return err
			}
		default:
			// future block kinds: skipped, per the skip-unknown rule
		}
	}

	for _, id := range declared {
		if err := rt.PipelineComplete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func tokenU32(t tlv.Token, dst *uint32) error {
	v, err := tlv.Uint32At(t)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (rt *Runtime) loadPipelineBlock(b topology.Block) (ids.PipelineID, error) {
	var pipeID, xrunLimit uint32
	for _, t := range b.Tokens {
		var err error
		switch t.ID {
		case topology.TknPipelineID:
			err = tokenU32(t, &pipeID)
		case topology.TknXrunLimitUsecs:
			err = tokenU32(t, &xrunLimit)
		}
		if err != nil {
			return 0, dsperr.Wrap(dsperr.CodeBadParam, "runtime: pipeline block", err)
		}
	}
	if pipeID == 0 {
		return 0, dsperr.New(dsperr.CodeBadParam, "runtime: pipeline block missing pipeline id token")
	}
	id := ids.PipelineID(pipeID)
	return id, rt.PipelineNew(id, int64(xrunLimit))
}

func (rt *Runtime) loadComponentBlock(b topology.Block) error {
	var compID, pipeID uint32
	var typ ids.ComponentType
	var name string
	var config []byte
	haveType := false
	for _, t := range b.Tokens {
		var err error
		switch t.ID {
		case topology.TknCompID:
			err = tokenU32(t, &compID)
		case topology.TknCompPipeline:
			err = tokenU32(t, &pipeID)
		case topology.TknCompTypeUUID:
			if len(t.Value) != 16 {
				return dsperr.New(dsperr.CodeBadParam, "runtime: component block type token must be 16 bytes")
			}
			var u uuid.UUID
			copy(u[:], t.Value)
			typ = ids.ComponentType(u)
			haveType = true
		case topology.TknCompName:
			name = string(t.Value)
		case topology.TknCompConfig:
			config = t.Value
		}
		if err != nil {
			return dsperr.Wrap(dsperr.CodeBadParam, "runtime: component block", err)
		}
	}
	if compID == 0 || pipeID == 0 || !haveType {
		return dsperr.New(dsperr.CodeBadParam, "runtime: component block missing id, pipeline or type token")
	}
	return rt.ComponentNew(typ, ids.ComponentID(compID), ids.PipelineID(pipeID), name, config)
}

func (rt *Runtime) loadBufferBlock(b topology.Block) error {
	var bufID, pipeID, from, to, size, caps, rate, channels, format uint32
	for _, t := range b.Tokens {
		var err error
		switch t.ID {
		case topology.TknBufID:
			err = tokenU32(t, &bufID)
		case topology.TknBufPipeline:
			err = tokenU32(t, &pipeID)
		case topology.TknBufFromComp:
			err = tokenU32(t, &from)
		case topology.TknBufToComp:
			err = tokenU32(t, &to)
		case topology.TknBufSize:
			err = tokenU32(t, &size)
		case topology.TknBufCaps:
			err = tokenU32(t, &caps)
		case topology.TknBufRate:
			err = tokenU32(t, &rate)
		case topology.TknBufChannels:
			err = tokenU32(t, &channels)
		case topology.TknBufFormat:
			err = tokenU32(t, &format)
		}
		if err != nil {
			return dsperr.Wrap(dsperr.CodeBadParam, "runtime: buffer block", err)
		}
	}
	if bufID == 0 || pipeID == 0 || from == 0 || to == 0 || size == 0 {
		return dsperr.New(dsperr.CodeBadParam, "runtime: buffer block missing id, pipeline, edge or size token")
	}
	params := audioformat.Params{
		Rate:     rate,
		Channels: channels,
		Format:   audioformat.Format(format),
		Interlv:  audioformat.Interleaved,
	}
	if err := rt.BufferNew(ids.BufferID(bufID), ids.PipelineID(pipeID), size, memory.Capability(caps), params); err != nil {
		return err
	}
	return rt.ComponentConnect(ids.PipelineID(pipeID), ids.ComponentID(from), ids.ComponentID(to), ids.BufferID(bufID))
}

func (rt *Runtime) loadDAIBlock(b topology.Block) error {
	var pipeID, compID, index, dirVal uint32
	var name, daiType string
	for _, t := range b.Tokens {
		var err error
		switch t.ID {
		case topology.TknDAIPipeline:
			err = tokenU32(t, &pipeID)
		case topology.TknDAICompID:
			err = tokenU32(t, &compID)
		case topology.TknDAIName:
			name = string(t.Value)
		case topology.TknDAIType:
			daiType = string(t.Value)
		case topology.TknDAIIndex:
			err = tokenU32(t, &index)
		case topology.TknDAIDirection:
			err = tokenU32(t, &dirVal)
		}
		if err != nil {
			return dsperr.Wrap(dsperr.CodeBadParam, "runtime: dai block", err)
		}
	}
	if pipeID == 0 || compID == 0 || daiType == "" {
		return dsperr.New(dsperr.CodeBadParam, "runtime: dai block missing pipeline, component or type token")
	}
	return rt.DAIConfig(ids.PipelineID(pipeID), ids.ComponentID(compID), name, daiType, int(index), dai.Direction(dirVal))
}
