package ipc

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
)

// Host is the runtime surface the dispatcher drives. internal/runtime
// implements it; defining it here (rather than the dispatcher importing
// internal/runtime directly) keeps internal/runtime free to import
// internal/ipc for wiring without a package cycle.
type Host interface {
	ComponentNew(typ ids.ComponentType, id ids.ComponentID, pipelineID ids.PipelineID, name string, config []byte) error
	ComponentFree(id ids.ComponentID) error
	ComponentConfigure(id ids.ComponentID, blob []byte) error
	ComponentGetConfig(id ids.ComponentID) ([]byte, error)

	BufferNew(id ids.BufferID, pipelineID ids.PipelineID, sizeBytes uint32, caps memory.Capability, params audioformat.Params) error
	BufferFree(id ids.BufferID, pipelineID ids.PipelineID) error

	PipelineNew(id ids.PipelineID, xrunLimitUsecs int64) error
	PipelineFree(id ids.PipelineID) error
	ComponentConnect(pipelineID ids.PipelineID, from, to ids.ComponentID, bufID ids.BufferID) error
	PipelineComplete(ctx context.Context, id ids.PipelineID) error

	DAIConfig(pipelineID ids.PipelineID, componentID ids.ComponentID, name, daiType string, index int, dir dai.Direction) error

	PCMParams(ctx context.Context, pipelineID ids.PipelineID, periodFrames uint32, params audioformat.Params) error
	PCMFree(pipelineID ids.PipelineID) error
	Trigger(pipelineID ids.PipelineID, cmd component.TriggerCmd) error
	Position(pipelineID ids.PipelineID, componentID ids.ComponentID) (high, low uint32, err error)

	CtxSave(core int) error
	CtxRestore(core int) error
	CoreEnable(core int, enable bool) error

	TraceDMAParams(core int) error
	MemDump(core int) ([]byte, error)
}
