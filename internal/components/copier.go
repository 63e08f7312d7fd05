package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Copier is the gateway shim: a thin component binding one pipeline
// endpoint to a claimed dai.Binding. For playback it
// drains its source buffer and pushes frames out through the transport;
// for capture it pulls frames in and produces them into its sink buffer.
// It implements dai_get_hw_params/set_config/position directly, being
// the one component kind that carries that part of the vtable; every
// other component returns not_supported for it.
type Copier struct {
	component.Base
	Ports

	binding     *dai.Binding
	periodBytes uint32
}

// NewCopier wraps a claimed DAI binding as a pipeline component.
func NewCopier(id ids.ComponentID, name string, binding *dai.Binding) *Copier {
	c := &Copier{
		Base:    component.NewBase(id, ids.TypeDAI, name),
		binding: binding,
	}
	_ = c.Transition(component.StateReady)
	return c
}

func (c *Copier) SetPeriodFrames(frames uint32) {
	fb, err := c.CurrentParams().FrameBytes()
	if err != nil {
		return
	}
	c.periodBytes = frames * fb
}

func (c *Copier) Prepare(ctx context.Context) error {
	hw := dai.HWParams{Params: c.CurrentParams()}
	if err := c.binding.SetConfig(ctx, hw); err != nil {
		return err
	}
	return c.Transition(component.StatePrepared)
}

func (c *Copier) Trigger(cmd component.TriggerCmd) error {
	ctx := context.Background()
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		if err := c.binding.Trigger(ctx, dai.TransportStart); err != nil {
			return err
		}
		return c.Transition(component.StateActive)
	case component.TriggerPause:
		if err := c.binding.Trigger(ctx, dai.TransportPause); err != nil {
			return err
		}
		return c.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		if err := c.binding.Trigger(ctx, dai.TransportStop); err != nil {
			return err
		}
		return c.Transition(component.StateReady)
	case component.TriggerReset:
		return c.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "copier: unknown trigger command")
	}
}

func (c *Copier) Copy(ctx context.Context) error {
	switch c.binding.Direction {
	case dai.DirectionPlayback:
		sources := c.Sources()
		if len(sources) == 0 {
			return dsperr.New(dsperr.CodeBadState, "copier: playback copy with no source connected")
		}
		if c.periodBytes == 0 {
			return component.ErrNoData
		}
		frames := sources[0].GetSourceRegion(c.periodBytes)
		if len(frames.Data) == 0 {
			return component.ErrNoData
		}
		if err := c.binding.Put(ctx, frames.Data); err != nil {
			return err
		}
		sources[0].Consume(uint32(len(frames.Data)))
		return nil
	case dai.DirectionCapture:
		sinks := c.Sinks()
		if len(sinks) == 0 {
			return dsperr.New(dsperr.CodeBadState, "copier: capture copy with no sink connected")
		}
		if c.periodBytes == 0 {
			return component.ErrNoData
		}
		region := sinks[0].GetSinkRegion(c.periodBytes)
		if len(region.Data) == 0 {
			return component.ErrNoSpace
		}
		n, err := c.binding.Get(ctx, region.Data)
		if err != nil {
			return err
		}
		if n == 0 {
			return component.ErrNoData
		}
		sinks[0].Produce(uint32(n))
		return nil
	default:
		return dsperr.New(dsperr.CodeBadParam, "copier: unknown direction")
	}
}

// DAIGetHWParams, DAISetConfig, DAIPosition implement the DAI-only part
// of the component vtable; every other component leaves
// these unimplemented and callers get not_supported from the generic
// dispatch path instead.
func (c *Copier) DAIGetHWParams() dai.HWParams { return c.binding.GetHWParams() }

func (c *Copier) DAISetConfig(ctx context.Context, hw dai.HWParams) error {
	return c.binding.SetConfig(ctx, hw)
}

func (c *Copier) DAIPosition() (high, low uint32) { return c.binding.LLP() }

func (c *Copier) Reset() error {
	return c.Transition(component.StateReady)
}

func (c *Copier) Free() error {
	if c.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "copier: free requires ready state")
	}
	return c.binding.Release()
}
