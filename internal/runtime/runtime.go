// Package runtime wires every other internal package into one
// operational core: the memory pool registry, the per-core schedulers,
// the pipeline table, the claimed DAI bindings, and the IPC dispatcher
// that drives it all. It implements internal/ipc.Host directly, so a
// Runtime is the one object a mailbox transport needs a handle to.
//
// Rather than reaching for global singletons, every subsystem is built
// once at boot in dependency order and threaded explicitly; Runtime is
// the single struct holding it all.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/components"
	"github.com/jangala-audio/dspcore/internal/config"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/idc"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/ipc"
	"github.com/jangala-audio/dspcore/internal/logging"
	"github.com/jangala-audio/dspcore/internal/memory"
	"github.com/jangala-audio/dspcore/internal/metrics"
	"github.com/jangala-audio/dspcore/internal/pipeline"
	"github.com/jangala-audio/dspcore/internal/platform"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

// bufferPoolName and lowPowerPoolName are the two dma-capable platform
// pools audio ring buffers are allowed to land in.
const (
	bufferPoolName   = "buffer"
	lowPowerPoolName = "low-power-buffer"
)

// pendingBuffer is a buffer_new request staged until the matching
// comp_connect arrives. The wire protocol splits what
// internal/pipeline.Connect treats as a single allocate-and-wire call
// into two IPC commands (buffer_new carries the size/caps/params,
// comp_connect carries the edge), so Runtime holds the buffer_new
// fields here and performs the actual pool allocation lazily at
// comp_connect time, once both endpoints are known.
type pendingBuffer struct {
	pipelineID ids.PipelineID
	sizeBytes  uint32
	caps       memory.Capability
	params     audioformat.Params
}

// liveBuffer tracks an allocated, wired edge so PipelineFree can
// return every block it owns to its pool even though buffer_free was
// never explicitly called for it.
type liveBuffer struct {
	pipelineID ids.PipelineID
	pool       *memory.Pool
	poolName   string
}

// claimedDAI is one platform DAI table entry together with the
// loopback transport standing in for it and whether it is currently
// bound into a pipeline.
type claimedDAI struct {
	desc    platform.DAIDescriptor
	binding *dai.Binding
	claimed bool
}

// Runtime owns every live pipeline, component, buffer and DAI binding
// for a simulated multi-core DSP image, and answers the ipc.Host
// surface the dispatcher drives.
type Runtime struct {
	cfg      *config.Config
	platform *platform.Descriptor
	log      *logging.Logger

	mem *memory.Registry

	pipelines   map[ids.PipelineID]*pipeline.Pipeline
	compOwner   map[ids.ComponentID]ids.PipelineID
	compConfigs map[ids.ComponentID][]byte
	pendingBufs map[ids.BufferID]pendingBuffer
	liveBufs    map[ids.BufferID]liveBuffer
	preparedAt  map[ids.PipelineID]int // core index a pipeline was scheduled onto, -1 if not yet scheduled

	dais []*claimedDAI

	cores      []*pipeline.Core
	sched      *pipeline.Scheduler
	coreRR     int
	breakers   []*idc.Breaker
	dispatcher *ipc.Dispatcher
	metrics    *metrics.Metrics
}

// New builds a Runtime from its configuration and platform descriptor,
// constructing one memory pool per platform.PoolDescriptor, one
// simulated Core per platform.Descriptor.Cores, and one claimed-DAI
// slot per platform.Descriptor.DAIs — but does not yet start the
// scheduler; call Scheduler().Run(ctx) for that once the dispatcher is
// wired (New itself can't build the dispatcher, since ipc.NewDispatcher
// needs a Host and Runtime is that Host).
func New(cfg *config.Config, plat *platform.Descriptor, log *logging.Logger) (*Runtime, error) {
	rt := &Runtime{
		cfg:         cfg,
		platform:    plat,
		log:         log,
		mem:         memory.NewRegistry(),
		pipelines:   make(map[ids.PipelineID]*pipeline.Pipeline),
		compOwner:   make(map[ids.ComponentID]ids.PipelineID),
		compConfigs: make(map[ids.ComponentID][]byte),
		pendingBufs: make(map[ids.BufferID]pendingBuffer),
		liveBufs:    make(map[ids.BufferID]liveBuffer),
		preparedAt:  make(map[ids.PipelineID]int),
	}

	caps, err := plat.Capabilities()
	if err != nil {
		return nil, fmt.Errorf("runtime: platform capabilities: %w", err)
	}
	for _, pd := range plat.Pools {
		if err := rt.mem.Register(memory.NewPool(pd.Name, pd.SizeBytes, caps[pd.Name])); err != nil {
			return nil, fmt.Errorf("runtime: register pool %q: %w", pd.Name, err)
		}
	}

	for _, dd := range plat.DAIs {
		rt.dais = append(rt.dais, &claimedDAI{
			desc:    dd,
			binding: dai.NewBinding(ids.DAIBindingID(len(rt.dais)+1), dd.Type, dd.Index, directionFromString(dd.Direction), dd.FIFODepth, dai.NewLoopback()),
		})
	}

	period := time.Duration(cfg.Runtime.DefaultPeriod) * time.Microsecond
	if period <= 0 {
		period = time.Millisecond
	}
	cores := plat.Cores
	if cfg.Runtime.Cores > 0 && cfg.Runtime.Cores <= cores {
		cores = cfg.Runtime.Cores
	}
	for i := 0; i < cores; i++ {
		rt.cores = append(rt.cores, pipeline.NewCore(i, pipeline.TimeDomainTimer, period, nil))
		rt.breakers = append(rt.breakers, idc.New(fmt.Sprintf("core-%d", i), idc.Settings{}))
	}
	rt.sched = pipeline.NewScheduler(rt.cores...)

	return rt, nil
}

func directionFromString(s string) dai.Direction {
	if s == "capture" {
		return dai.DirectionCapture
	}
	return dai.DirectionPlayback
}

// BindDispatcher wires the dispatcher this Runtime pushes async
// notifications (xrun, watchdog) through. Must be called once, after
// ipc.NewDispatcher(rt, ...) has constructed it — the two are mutually
// referential at the wiring level: Runtime holds the concrete
// *ipc.Dispatcher, while the dispatcher sees Runtime only through the
// ipc.Host interface.
func (rt *Runtime) BindDispatcher(d *ipc.Dispatcher) { rt.dispatcher = d }

// BindMetrics wires the telemetry the xrun watcher and IDC guard feed;
// optional, nil leaves them dark.
func (rt *Runtime) BindMetrics(m *metrics.Metrics) { rt.metrics = m }

// Scheduler returns the per-core scheduler for cmd/dspcore to run.
func (rt *Runtime) Scheduler() *pipeline.Scheduler { return rt.sched }

// WatchXruns polls every pipeline's accumulated xrun counter and
// forwards new activity to the dispatcher's notification ring. There is
// no push-style hook from internal/pipeline to internal/ipc — xrun.go
// only exposes XrunStats() — so this goroutine is the bridge, run by
// cmd/dspcore alongside the scheduler.
func (rt *Runtime) WatchXruns(ctx context.Context, interval time.Duration) {
	last := make(map[ids.PipelineID]uint32)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := 0
			activeComps := 0
			for id, p := range rt.snapshotPipelines() {
				if p.State() == pipeline.StateActive {
					active++
				}
				if rt.metrics != nil {
					activeComps += p.ActiveComponents()
					p.EachBufferFill(func(bufID ids.BufferID, fill float64) {
						rt.metrics.BufferFillRatio.WithLabelValues(fmt.Sprintf("%d", bufID)).Set(fill)
					})
				}
				accum, count := p.XrunStats()
				if count != last[id] {
					if rt.metrics != nil {
						rt.metrics.XrunsTotal.WithLabelValues(fmt.Sprintf("%d", id), "underrun").Add(float64(count - last[id]))
					}
					last[id] = count
					if rt.dispatcher != nil {
						rt.dispatcher.PushXrun(uint32(id), accum)
					}
				}
			}
			if rt.metrics != nil {
				rt.metrics.PipelinesActive.Set(float64(active))
				rt.metrics.ComponentsActive.Set(float64(activeComps))
			}
		}
	}
}

func (rt *Runtime) snapshotPipelines() map[ids.PipelineID]*pipeline.Pipeline {
	out := make(map[ids.PipelineID]*pipeline.Pipeline, len(rt.pipelines))
	for id, p := range rt.pipelines {
		out[id] = p
	}
	return out
}

// --- ipc.Host: topology commands ---

func (rt *Runtime) pipelineFor(id ids.PipelineID) (*pipeline.Pipeline, error) {
	p, ok := rt.pipelines[id]
	if !ok {
		return nil, dsperr.New(dsperr.CodeBadParam, "runtime: unknown pipeline id")
	}
	return p, nil
}

func (rt *Runtime) PipelineNew(id ids.PipelineID, xrunLimitUsecs int64) error {
	if _, exists := rt.pipelines[id]; exists {
		return dsperr.New(dsperr.CodeBadParam, "runtime: pipeline id already exists")
	}
	p := pipeline.New(id)
	p.SetXrunLimit(xrunLimitUsecs)
	rt.pipelines[id] = p
	rt.preparedAt[id] = -1
	return nil
}

func (rt *Runtime) PipelineFree(id ids.PipelineID) error {
	p, err := rt.pipelineFor(id)
	if err != nil {
		return err
	}
	for bufID, lb := range rt.liveBufs {
		if lb.pipelineID != id {
			continue
		}
		// best-effort: the component teardown inside p.Free already
		// releases each component, but the pool block behind a buffer
		// is tracked here, one level up, since buffer ids outlive any
		// single component. FreeBuffer only succeeds while the pipeline
		// is in ready state; from any other state the block stays
		// allocated.
		_ = p.FreeBuffer(bufID, lb.pool)
		delete(rt.liveBufs, bufID)
	}
	for bufID, pb := range rt.pendingBufs {
		if pb.pipelineID == id {
			delete(rt.pendingBufs, bufID)
		}
	}
	if err := p.Free(); err != nil {
		return err
	}
	delete(rt.pipelines, id)
	delete(rt.preparedAt, id)
	for compID, owner := range rt.compOwner {
		if owner == id {
			delete(rt.compOwner, compID)
			delete(rt.compConfigs, compID)
		}
	}
	return nil
}

func (rt *Runtime) ComponentNew(typ ids.ComponentType, id ids.ComponentID, pipelineID ids.PipelineID, name string, configBlob []byte) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}

	var c component.Component
	switch typ {
	case ids.TypeHost:
		dir, err := decodeHostDirection(configBlob)
		if err != nil {
			return err
		}
		c = components.NewHost(id, name, dir)
	case ids.TypeDAI:
		return dsperr.New(dsperr.CodeBadParam, "runtime: dai components are created via dai_config, not comp_new")
	default:
		c, err = components.New(typ, id, name, configBlob)
		if err != nil {
			return err
		}
	}

	if err := p.AddComponent(c); err != nil {
		return err
	}
	rt.compOwner[id] = pipelineID
	if len(configBlob) > 0 {
		rt.compConfigs[id] = append([]byte(nil), configBlob...)
	}
	return nil
}

// decodeHostDirection reads the single TokenDirection entry a host
// endpoint's comp_new config blob carries (internal/components/tokens.go).
func decodeHostDirection(blob []byte) (components.Direction, error) {
	var dir components.Direction
	found := false
	err := tlv.Walk(blob, func(t tlv.Token) error {
		if t.ID != components.TokenDirection {
			return nil
		}
		v, err := tlv.Uint32At(t)
		if err != nil {
			return err
		}
		dir = components.Direction(v)
		found = true
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, dsperr.New(dsperr.CodeBadParam, "runtime: host component_new missing direction token")
	}
	return dir, nil
}

func (rt *Runtime) ComponentFree(id ids.ComponentID) error {
	pipelineID, ok := rt.compOwner[id]
	if !ok {
		return dsperr.New(dsperr.CodeBadParam, "runtime: unknown component id")
	}
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	c, ok := p.Component(id)
	if !ok {
		return dsperr.New(dsperr.CodeBadParam, "runtime: component not found in its pipeline")
	}
	if c.State() == component.StatePaused {
		return dsperr.New(dsperr.CodeBadState, "runtime: must reset before free while paused")
	}
	if err := c.Free(); err != nil {
		return err
	}
	if err := p.RemoveComponent(id); err != nil {
		return err
	}
	delete(rt.compOwner, id)
	delete(rt.compConfigs, id)
	return nil
}

func (rt *Runtime) ComponentConfigure(id ids.ComponentID, blob []byte) error {
	pipelineID, ok := rt.compOwner[id]
	if !ok {
		return dsperr.New(dsperr.CodeBadParam, "runtime: unknown component id")
	}
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	c, ok := p.Component(id)
	if !ok {
		return dsperr.New(dsperr.CodeBadParam, "runtime: component not found in its pipeline")
	}
	cfg, ok := c.(components.Configurable)
	if !ok {
		return dsperr.New(dsperr.CodeNotSupported, "runtime: component does not accept runtime configuration")
	}
	if err := cfg.Configure(blob); err != nil {
		return err
	}
	rt.compConfigs[id] = append([]byte(nil), blob...)
	return nil
}

// ComponentGetConfig returns the exact bytes last applied to a
// component, whether at comp_new or through set_config — a round-trip
// identity the host relies on to audit what the firmware is running.
func (rt *Runtime) ComponentGetConfig(id ids.ComponentID) ([]byte, error) {
	if _, ok := rt.compOwner[id]; !ok {
		return nil, dsperr.New(dsperr.CodeBadParam, "runtime: unknown component id")
	}
	blob, ok := rt.compConfigs[id]
	if !ok {
		return nil, dsperr.New(dsperr.CodeNotSupported, "runtime: component holds no configuration blob")
	}
	return append([]byte(nil), blob...), nil
}

func (rt *Runtime) BufferNew(id ids.BufferID, pipelineID ids.PipelineID, sizeBytes uint32, caps memory.Capability, params audioformat.Params) error {
	if _, err := rt.pipelineFor(pipelineID); err != nil {
		return err
	}
	if _, exists := rt.pendingBufs[id]; exists {
		return dsperr.New(dsperr.CodeBadParam, "runtime: buffer id already exists")
	}
	if _, exists := rt.liveBufs[id]; exists {
		return dsperr.New(dsperr.CodeBadParam, "runtime: buffer id already exists")
	}
	rt.pendingBufs[id] = pendingBuffer{pipelineID: pipelineID, sizeBytes: sizeBytes, caps: caps, params: params}
	return nil
}

func (rt *Runtime) BufferFree(id ids.BufferID, pipelineID ids.PipelineID) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	if _, pending := rt.pendingBufs[id]; pending {
		delete(rt.pendingBufs, id)
		return nil
	}
	lb, ok := rt.liveBufs[id]
	if !ok || lb.pipelineID != pipelineID {
		return dsperr.New(dsperr.CodeBadParam, "runtime: unknown buffer id")
	}
	if err := p.FreeBuffer(id, lb.pool); err != nil {
		return err
	}
	delete(rt.liveBufs, id)
	return nil
}

// buffer pool selection prefers the low-power pool when the caller asks
// for CapLP explicitly, otherwise lands in the general DMA buffer pool —
// both are registered by every platform descriptor (platform.Default()
// and any conforming board file alike).
func (rt *Runtime) poolFor(caps memory.Capability) (*memory.Pool, string, error) {
	name := bufferPoolName
	if caps.Has(memory.CapLP) {
		name = lowPowerPoolName
	}
	pool, ok := rt.mem.Pool(name)
	if !ok {
		return nil, "", dsperr.New(dsperr.CodeNoResource, "runtime: no pool named "+name)
	}
	return pool, name, nil
}

func (rt *Runtime) ComponentConnect(pipelineID ids.PipelineID, from, to ids.ComponentID, bufID ids.BufferID) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	pb, ok := rt.pendingBufs[bufID]
	if !ok {
		return dsperr.New(dsperr.CodeBadParam, "runtime: comp_connect references unknown or already-connected buffer id")
	}
	if pb.pipelineID != pipelineID {
		return dsperr.New(dsperr.CodeBadParam, "runtime: buffer belongs to a different pipeline")
	}
	pool, poolName, err := rt.poolFor(pb.caps)
	if err != nil {
		return err
	}
	if _, err := p.Connect(from, to, bufID, pool, pb.sizeBytes, pb.caps, pb.params); err != nil {
		return err
	}
	delete(rt.pendingBufs, bufID)
	rt.liveBufs[bufID] = liveBuffer{pipelineID: pipelineID, pool: pool, poolName: poolName}
	return nil
}

func (rt *Runtime) PipelineComplete(ctx context.Context, id ids.PipelineID) error {
	p, err := rt.pipelineFor(id)
	if err != nil {
		return err
	}
	if len(rt.pendingBufs) > 0 {
		for bufID, pb := range rt.pendingBufs {
			if pb.pipelineID == id {
				return dsperr.New(dsperr.CodeBadState, "runtime: pipeline has unconnected buffers")
			}
			_ = bufID
		}
	}
	return p.NegotiateParams(ctx)
}

func (rt *Runtime) DAIConfig(pipelineID ids.PipelineID, componentID ids.ComponentID, name, daiType string, index int, dir dai.Direction) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}

	var claim *claimedDAI
	for _, cd := range rt.dais {
		if cd.claimed {
			continue
		}
		if cd.desc.Type == daiType && cd.desc.Index == index && directionFromString(cd.desc.Direction) == dir {
			claim = cd
			break
		}
	}
	if claim == nil {
		return dsperr.New(dsperr.CodeNoResource, "runtime: no matching unclaimed dai binding for "+daiType)
	}
	if err := claim.binding.Claim(); err != nil {
		return err
	}

	c := components.NewCopier(componentID, name, claim.binding)
	if err := p.AddComponent(c); err != nil {
		_ = claim.binding.Release()
		return err
	}
	claim.claimed = true
	rt.compOwner[componentID] = pipelineID
	return nil
}

// --- ipc.Host: stream commands ---

func (rt *Runtime) PCMParams(ctx context.Context, pipelineID ids.PipelineID, periodFrames uint32, params audioformat.Params) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	if err := p.PrepareAll(ctx, periodFrames); err != nil {
		return err
	}
	if rt.preparedAt[pipelineID] < 0 {
		core := rt.coreRR % len(rt.cores)
		rt.coreRR++
		rt.cores[core].Add(p)
		rt.preparedAt[pipelineID] = core
	}
	return nil
}

func (rt *Runtime) PCMFree(pipelineID ids.PipelineID) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	return p.Reset()
}

func (rt *Runtime) Trigger(pipelineID ids.PipelineID, cmd component.TriggerCmd) error {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return err
	}
	return p.TriggerAll(cmd)
}

func (rt *Runtime) Position(pipelineID ids.PipelineID, componentID ids.ComponentID) (uint32, uint32, error) {
	p, err := rt.pipelineFor(pipelineID)
	if err != nil {
		return 0, 0, err
	}
	c, ok := p.Component(componentID)
	if !ok {
		return 0, 0, dsperr.New(dsperr.CodeBadParam, "runtime: component not found in its pipeline")
	}
	positioner, ok := c.(interface{ DAIPosition() (uint32, uint32) })
	if !ok {
		return 0, 0, dsperr.New(dsperr.CodeNotSupported, "runtime: component does not report position")
	}
	high, low := positioner.DAIPosition()
	return high, low, nil
}

// --- ipc.Host: power management and debug ---

func (rt *Runtime) coreInRange(core int) error {
	if core < 0 || core >= len(rt.cores) {
		return dsperr.New(dsperr.CodeBadParam, "runtime: core index out of range")
	}
	return nil
}

// idcExecute routes a core-directed management command through that
// core's circuit breaker, the same guard IDC uses for cross-core calls
// proper: a core wedged mid-power-cycle should
// fail fast on repeated ctx_save/core_enable/debug requests rather than
// let every caller hang waiting on one that will never answer.
func (rt *Runtime) idcExecute(core int, fn func() (interface{}, error)) (interface{}, error) {
	if err := rt.coreInRange(core); err != nil {
		return nil, err
	}
	v, err := rt.breakers[core].Execute(fn)
	if rt.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		rt.metrics.IDCCallsTotal.WithLabelValues(fmt.Sprintf("%d", core), outcome).Inc()
	}
	return v, err
}

// CtxSave and CtxRestore stand in for DSP context save/restore around
// a power-gating cycle. The simulated cores carry no register file to snapshot —
// their entire state already lives in the Go heap across a CoreEnable
// cycle — so these validate the core index and log, rather than
// serializing anything.
func (rt *Runtime) CtxSave(core int) error {
	_, err := rt.idcExecute(core, func() (interface{}, error) {
		if rt.log != nil {
			rt.log.ForCore(core).Sugar().Debugw("ctx_save")
		}
		return nil, nil
	})
	return err
}

func (rt *Runtime) CtxRestore(core int) error {
	_, err := rt.idcExecute(core, func() (interface{}, error) {
		if rt.log != nil {
			rt.log.ForCore(core).Sugar().Debugw("ctx_restore")
		}
		return nil, nil
	})
	return err
}

func (rt *Runtime) CoreEnable(core int, enable bool) error {
	_, err := rt.idcExecute(core, func() (interface{}, error) {
		rt.cores[core].SetEnabled(enable)
		return nil, nil
	})
	return err
}

func (rt *Runtime) TraceDMAParams(core int) error {
	_, err := rt.idcExecute(core, func() (interface{}, error) {
		if rt.log != nil {
			rt.log.ForCore(core).Sugar().Debugw("trace_dma_params", "enabled", rt.cores[core].Enabled())
		}
		return nil, nil
	})
	return err
}

// MemDump reports every pool's name, capacity and current allocation —
// the one piece of GLB_DEBUG telemetry with a concrete, inspectable
// answer in this simulated runtime.
func (rt *Runtime) MemDump(core int) ([]byte, error) {
	v, err := rt.idcExecute(core, func() (interface{}, error) {
		var out []byte
		for _, name := range rt.mem.Names() {
			pool, ok := rt.mem.Pool(name)
			if !ok {
				continue
			}
			out = appendU32(out, uint32(len(name)))
			out = append(out, name...)
			out = appendU64(out, pool.Allocated())
			out = appendU32(out, pool.Size())
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU64(dst []byte, v uint64) []byte {
	return append(dst, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
