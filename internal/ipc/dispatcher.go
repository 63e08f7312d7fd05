// Package ipc implements the host-DSP mailbox protocol: a binary
// command protocol with a 32-bit primary header, message classes
// (GLB_TPLG/GLB_STREAM/GLB_PM/GLB_DEBUG/NOTIFY), single-outstanding-
// request serialization, a notification ring with reserved
// never-dropped slots for xrun/watchdog, and large-config fragmentation
// for payloads that exceed one mailbox window.
package ipc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/logging"
	"github.com/jangala-audio/dspcore/internal/metrics"
)

// Dispatcher decodes and executes IPC requests against a Host, one at
// a time — a second message cannot start until the first is acked —
// and maintains the notification ring and large-config fragment
// reassembly that sit alongside the request/reply path.
type Dispatcher struct {
	host    Host
	metrics *metrics.Metrics
	log     *logging.Logger

	inflight sync.Mutex // enforces single-outstanding-request serialization
	frag     *fragReassembler
	Notify   *NotifyRing
}

// NewDispatcher wires a dispatcher over host, reporting every request's
// class/status/latency to m and logging through log.
func NewDispatcher(host Host, m *metrics.Metrics, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		host:    host,
		metrics: m,
		log:     log,
		frag:    newFragReassembler(),
		Notify:  NewNotifyRing(),
	}
}

// Handle decodes one request envelope, executes it, and returns the
// reply envelope. It never panics on malformed input: a decode failure
// is reported as a bad_param reply, and the host always gets exactly
// one reply per request.
func (d *Dispatcher) Handle(ctx context.Context, req Envelope) Envelope {
	d.inflight.Lock()
	defer d.inflight.Unlock()

	start := time.Now()
	class := req.Header.Class()
	resp, err := d.dispatch(ctx, req)
	status := dsperr.ReplyStatus(dsperr.CodeOf(err))
	if err != nil && dsperr.CodeOf(err) == dsperr.CodeNone {
		// an error with no dsperr code attached (a decode/bounds failure)
		// is still the caller's fault, not an internal one.
		status = dsperr.ReplyStatus(dsperr.CodeBadParam)
	}

	if d.metrics != nil {
		d.metrics.IPCRequestsTotal.WithLabelValues(class.String(), fmt.Sprintf("%d", status)).Inc()
		d.metrics.IPCLatencySeconds.WithLabelValues(class.String()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if d.log != nil {
			d.log.Sugar().Warnw("ipc request failed", "class", class.String(), "command", req.Header.Command(), "error", err)
		}
		return reply(req, status, nil)
	}
	return reply(req, 0, resp)
}

func (d *Dispatcher) dispatch(ctx context.Context, req Envelope) ([]byte, error) {
	switch req.Header.Class() {
	case ClassTplg:
		return d.dispatchTplg(ctx, req)
	case ClassStream:
		return d.dispatchStream(ctx, req)
	case ClassPM:
		return d.dispatchPM(req)
	case ClassDebug:
		return d.dispatchDebug(req)
	default:
		return nil, dsperr.New(dsperr.CodeNotSupported, "ipc: unknown message class")
	}
}

func (d *Dispatcher) dispatchTplg(ctx context.Context, req Envelope) ([]byte, error) {
	switch req.Header.Command() {
	case CmdCompNew:
		r, err := decodeCompNew(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.ComponentNew(r.Type, r.ID, r.PipelineID, r.Name, r.Config)

	case CmdCompFree:
		r, err := decodeCompFree(req.Body)
		if err != nil {
			return nil, err
		}
		d.frag.Abandon(r.ID)
		return nil, d.host.ComponentFree(r.ID)

	case CmdBufferNew:
		r, err := decodeBufferNew(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.BufferNew(r.ID, r.PipelineID, r.SizeBytes, r.Caps, r.Params)

	case CmdBufferFree:
		r, err := decodeBufferFree(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.BufferFree(r.ID, r.PipelineID)

	case CmdPipeNew:
		r, err := decodePipeNew(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.PipelineNew(r.ID, r.XrunLimitUsecs)

	case CmdPipeFree:
		r, err := decodePipeFree(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.PipelineFree(r.ID)

	case CmdCompConnect:
		r, err := decodeCompConnect(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.ComponentConnect(r.PipelineID, r.From, r.To, r.BufferID)

	case CmdPipeComplete:
		r, err := decodePipeComplete(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.PipelineComplete(ctx, r.PipelineID)

	case CmdDAIConfig:
		r, err := decodeDAIConfig(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.DAIConfig(r.PipelineID, r.ComponentID, r.Name, r.DAIType, r.Index, r.Direction)

	default:
		return nil, dsperr.New(dsperr.CodeNotSupported, "ipc: unknown GLB_TPLG subcommand")
	}
}

func (d *Dispatcher) dispatchStream(ctx context.Context, req Envelope) ([]byte, error) {
	switch req.Header.Command() {
	case CmdPCMParams:
		r, err := decodePCMParams(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.PCMParams(ctx, r.PipelineID, r.PeriodFrames, r.Params)

	case CmdPCMFree:
		r, err := decodePCMFree(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.PCMFree(r.PipelineID)

	case CmdTrigger:
		r, err := decodeTrigger(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.Trigger(r.PipelineID, component.TriggerCmd(r.Cmd))

	case CmdPosition:
		r, err := decodePosition(req.Body)
		if err != nil {
			return nil, err
		}
		high, low, err := d.host.Position(r.PipelineID, r.ComponentID)
		if err != nil {
			return nil, err
		}
		return encodePosition(high, low), nil

	case CmdSetConfig:
		r, err := decodeSetConfig(req.Body)
		if err != nil {
			return nil, err
		}
		blob, complete, err := d.frag.Feed(r)
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, nil
		}
		return nil, d.host.ComponentConfigure(r.ComponentID, blob)

	case CmdGetConfig:
		c := newCursor(req.Body)
		compID, err := c.u32()
		if err != nil {
			return nil, err
		}
		blob, err := d.host.ComponentGetConfig(ids.ComponentID(compID))
		if err != nil {
			return nil, err
		}
		return putLenPrefixed(nil, blob), nil

	default:
		return nil, dsperr.New(dsperr.CodeNotSupported, "ipc: unknown GLB_STREAM subcommand")
	}
}

func (d *Dispatcher) dispatchPM(req Envelope) ([]byte, error) {
	switch req.Header.Command() {
	case CmdCtxSave:
		c := newCursor(req.Body)
		core, err := c.i32()
		if err != nil {
			return nil, err
		}
		return nil, d.host.CtxSave(int(core))

	case CmdCtxRestore:
		c := newCursor(req.Body)
		core, err := c.i32()
		if err != nil {
			return nil, err
		}
		return nil, d.host.CtxRestore(int(core))

	case CmdCoreEnable:
		r, err := decodeCoreEnable(req.Body)
		if err != nil {
			return nil, err
		}
		return nil, d.host.CoreEnable(r.Core, r.Enable)

	default:
		return nil, dsperr.New(dsperr.CodeNotSupported, "ipc: unknown GLB_PM subcommand")
	}
}

func (d *Dispatcher) dispatchDebug(req Envelope) ([]byte, error) {
	switch req.Header.Command() {
	case CmdTraceDMAParams:
		c := newCursor(req.Body)
		core, err := c.i32()
		if err != nil {
			return nil, err
		}
		return nil, d.host.TraceDMAParams(int(core))

	case CmdMemDump:
		c := newCursor(req.Body)
		core, err := c.i32()
		if err != nil {
			return nil, err
		}
		return d.host.MemDump(int(core))

	default:
		return nil, dsperr.New(dsperr.CodeNotSupported, "ipc: unknown GLB_DEBUG subcommand")
	}
}

// Notification builders, called by internal/runtime when something
// asynchronous happens (xrun, watchdog expiry, a detected phrase) that
// the host must be told about without waiting for it to poll.

// PushFWReady announces the firmware image is booted and the mailbox is
// open for commands — the first thing a host sees in window 0.
func (d *Dispatcher) PushFWReady(version uint32, cores int) {
	var body []byte
	body = putU32(body, version)
	body = putU32(body, uint32(cores))
	d.Notify.Push(NotifyFWReady, body)
}

// PushPhraseDetected reports a keyword detector hit on the named
// pipeline; the host typically answers with a KPB drain set_config.
func (d *Dispatcher) PushPhraseDetected(pipelineID uint32) bool {
	var body []byte
	body = putU32(body, pipelineID)
	return d.Notify.Push(NotifyPhraseDetected, body)
}

// PushXrun enqueues an xrun notification; never dropped (reserved slot).
func (d *Dispatcher) PushXrun(pipelineID uint32, accumulatedUsecs int64) {
	var body []byte
	body = putU32(body, pipelineID)
	body = append(body, encodeI64(accumulatedUsecs)...)
	d.Notify.Push(NotifyXrun, body)
}

// PushWatchdogTimeout enqueues a watchdog notification; never dropped.
func (d *Dispatcher) PushWatchdogTimeout(core int) {
	var body []byte
	body = putU32(body, uint32(core))
	d.Notify.Push(NotifyWatchdogTimeout, body)
}

// PushPositionAdvance enqueues a routine position-advance notification;
// may be dropped under sustained load.
func (d *Dispatcher) PushPositionAdvance(pipelineID uint32, high, low uint32) bool {
	var body []byte
	body = putU32(body, pipelineID)
	body = putU32(body, high)
	body = putU32(body, low)
	ok := d.Notify.Push(NotifyPositionAdvance, body)
	if !ok && d.metrics != nil {
		d.metrics.IPCNotifyDropped.WithLabelValues(ClassNotify.String()).Inc()
	}
	return ok
}

func encodeI64(v int64) []byte {
	var out []byte
	out = putU32(out, uint32(uint64(v)>>32))
	out = putU32(out, uint32(uint64(v)))
	return out
}
