package pipeline

import (
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
)

// xrunTracker accumulates the wall-clock overrun/underrun time a
// pipeline's components have reported, against xrun_limit_usecs: a handful of isolated glitches are tolerated and
// merely counted, but once the accumulated total crosses the configured
// limit the pipeline is no longer trusted to self-recover and is forced
// to error_stop so the host gets a definitive notification instead of a
// silent string of recoverable retries.
type xrunTracker struct {
	limitUsecs      int64
	accumulatedUsecs int64
	count           uint32
}

// record adds usecs of overrun/underrun time and reports whether the
// accumulated total has now crossed the configured limit. A limit of
// zero disables the check (every xrun is merely counted).
func (x *xrunTracker) record(usecs int64) (limitExceeded bool) {
	x.accumulatedUsecs += usecs
	x.count++
	return x.limitUsecs > 0 && x.accumulatedUsecs >= x.limitUsecs
}

// Xrun reports usecs of overrun/underrun time attributed to this
// pipeline's last scheduling tick. If the accumulated total has crossed
// the configured limit, the pipeline is driven to error_stop and a
// TriggerXrun is propagated so every component gets a chance to flush
// whatever state it can before the host is notified; the component-level
// error this returns is informational only, the state change already
// happened.
func (p *Pipeline) Xrun(usecs int64) error {
	p.mu.Lock()
	exceeded := p.xrun.record(usecs)
	if !exceeded {
		p.mu.Unlock()
		return nil
	}
	transitionErr := p.transition(StateErrorStop)
	p.mu.Unlock()

	if transitionErr != nil {
		return transitionErr
	}
	_ = p.TriggerAll(component.TriggerXrun) // best effort; pipeline is already error_stop regardless
	return dsperr.New(dsperr.CodeXrun, "pipeline: accumulated xrun time exceeded configured limit")
}

// XrunStats reports the accumulated overrun/underrun time and event
// count this pipeline has seen since it was created or last reset.
func (p *Pipeline) XrunStats() (accumulatedUsecs int64, count uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xrun.accumulatedUsecs, p.xrun.count
}

// ResetXrunStats clears the accumulated counters, used when a pipeline
// is brought back from error_stop to ready.
func (p *Pipeline) ResetXrunStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xrun.accumulatedUsecs = 0
	p.xrun.count = 0
}
