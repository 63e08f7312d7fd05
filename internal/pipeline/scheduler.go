// scheduler.go implements the two scheduling time domains: a pipeline
// either runs off a periodic timer tick or off a DMA completion
// interrupt, and either way the same core-local run list of active
// components gets one Copy() call per tick. A real SoC fires
// scheduler_run from an actual ISR; the simulated dma_irq domain here is
// driven by a caller-supplied channel instead, so a test or a platform
// shim can model DMA completion timing however it likes.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jangala-audio/dspcore/internal/component"
)

// TimeDomain selects what drives a core's scheduling tick.
type TimeDomain int

const (
	// TimeDomainTimer ticks the core at a fixed wall-clock interval.
	TimeDomainTimer TimeDomain = iota
	// TimeDomainDMAIRQ ticks the core whenever its DMA signal channel
	// delivers a completion notification.
	TimeDomainDMAIRQ
)

// Core is one simulated DSP core: a scheduling domain owning a set of
// pipelines, ticked either by a timer or by DMA completions.
type Core struct {
	ID        int
	Domain    TimeDomain
	Period    time.Duration    // used when Domain == TimeDomainTimer
	DMASignal <-chan struct{}  // used when Domain == TimeDomainDMAIRQ

	enabled   atomic.Bool
	pipelines []*Pipeline
}

// NewCore constructs a core in the given time domain. period is ignored
// for TimeDomainDMAIRQ; dmaSignal is ignored for TimeDomainTimer. A core
// starts enabled; GLB_PM core_enable toggles it.
func NewCore(id int, domain TimeDomain, period time.Duration, dmaSignal <-chan struct{}) *Core {
	c := &Core{ID: id, Domain: domain, Period: period, DMASignal: dmaSignal}
	c.enabled.Store(true)
	return c
}

// SetEnabled gates whether tick performs any work, without stopping the
// underlying timer/DMA-signal loop — a disabled core keeps its place in
// the errgroup and re-enables instantly, unlike tearing the goroutine down.
func (c *Core) SetEnabled(v bool) { c.enabled.Store(v) }

// Enabled reports the core's current power-gating state.
func (c *Core) Enabled() bool { return c.enabled.Load() }

// Add schedules a pipeline on this core, marking every one of its
// components as held on a run list via SetScheduled (no Free path
// reads that flag).
func (c *Core) Add(p *Pipeline) {
	c.pipelines = append(c.pipelines, p)
	p.mu.Lock()
	for _, id := range p.order {
		p.components[id].(interface{ SetScheduled(bool) }).SetScheduled(true)
	}
	p.mu.Unlock()
}

// tick runs one period's worth of Copy across every active component of
// every pipeline on this core, in forward (source-to-sink) order so a
// downstream component's Copy in the same tick sees data its upstream
// peer just produced.
func (c *Core) tick(ctx context.Context) error {
	if !c.enabled.Load() {
		return nil
	}
	for _, p := range c.pipelines {
		if err := p.runPeriod(ctx); err != nil {
			return err
		}
	}
	return nil
}

// run drives this core's tick loop until ctx is cancelled.
func (c *Core) run(ctx context.Context) error {
	switch c.Domain {
	case TimeDomainDMAIRQ:
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-c.DMASignal:
				if !ok {
					return nil
				}
				if err := c.tick(ctx); err != nil {
					return err
				}
			}
		}
	default:
		ticker := time.NewTicker(c.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := c.tick(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// Scheduler owns every core in the runtime and coordinates their
// shutdown through a single errgroup.
type Scheduler struct {
	Cores []*Core
}

// NewScheduler returns a scheduler over the given cores.
func NewScheduler(cores ...*Core) *Scheduler {
	return &Scheduler{Cores: cores}
}

// Run starts every core's tick loop and blocks until ctx is cancelled or
// a core's tick returns a non-recoverable error, at which point every
// other core is cancelled too.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.Cores {
		core := c
		g.Go(func() error { return core.run(gctx) })
	}
	return g.Wait()
}

// runPeriod calls Copy on every active component in forward order,
// folding recoverable (no_data/no_space) errors into xrun accounting
// rather than propagating them, and forcing the pipeline to error_stop
// on the first non-recoverable failure.
func (p *Pipeline) runPeriod(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateActive {
		p.mu.Unlock()
		return nil
	}
	order, err := p.topoOrder(forward)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	comps := make([]componentCopier, 0, len(order))
	for _, id := range order {
		comps = append(comps, p.components[id])
	}
	p.mu.Unlock()

	for _, c := range comps {
		if err := c.Copy(ctx); err != nil {
			if component.IsRecoverable(err) {
				// periodFrames stands in for the missed period's wall-clock
				// duration; the platform layer that knows the tick rate is
				// expected to call Xrun directly with a real usec figure
				// once wired up, this is the scheduler's own best estimate.
				if xerr := p.Xrun(int64(p.periodFrames)); xerr != nil {
					// limit crossed: the pipeline is already in error_stop
					// and the host learns via the xrun notification path;
					// the core keeps ticking its other pipelines.
					return nil
				}
				continue
			}
			// non-recoverable: this pipeline stops in error_stop, but the
			// core and its other pipelines keep running.
			p.mu.Lock()
			_ = p.transition(StateErrorStop)
			p.mu.Unlock()
			return nil
		}
	}
	return nil
}

// componentCopier is the one method runPeriod needs, declared locally
// as a narrow view of component.Component.
type componentCopier interface {
	Copy(ctx context.Context) error
}
