// Package srcdesign offline-designs the windowed-sinc polyphase FIR
// stages that back the synchronous sample-rate converter: for every
// (in_rate, out_rate) pair in the declared matrix it yields a stage
// pair whose rates compose correctly. A conversion ratio out/in is
// reduced to lowest terms and factored into two rational stages so
// neither stage needs an impractically long filter; each stage is a
// standard windowed-sinc lowpass scaled to the stage's own Nyquist.
// This package only designs the kernels: the SRC component in
// internal/components applies each stage by zero-stuffing, filtering
// every upsampled sample, then decimating.
//
// gonum's window package supplies the windowing function a from-scratch
// sinc design would otherwise have to hand-roll.
package srcdesign

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// Stage is one rational-ratio polyphase FIR stage: resample by Up/Down,
// with Coeffs a windowed-sinc lowpass kernel scaled to the tighter of
// the two stage-local Nyquist frequencies.
type Stage struct {
	Up, Down int
	Coeffs   []float64
}

// Plan is a two-stage conversion: apply Stage1 then Stage2. The
// composed ratio (Stage1.Up*Stage2.Up)/(Stage1.Down*Stage2.Down) equals
// outRate/inRate in lowest terms.
type Plan struct {
	Stage1, Stage2 Stage
}

// tapsPerPhase bounds the per-phase filter length; a real firmware
// bank would tune this per rate pair, but a fixed length keeps this
// design tool's output bounded and is ample for the audio-band rates
// the platform descriptor enumerates.
const tapsPerPhase = 32

// Design builds the two-stage polyphase plan converting inRate to
// outRate. Returns an error only if inRate or outRate is non-positive;
// every positive rate pair has a valid (if sometimes degenerate, 1/1)
// two-stage decomposition.
func Design(inRate, outRate int) (Plan, error) {
	if inRate <= 0 || outRate <= 0 {
		return Plan{}, fmt.Errorf("srcdesign: rates must be positive, got in=%d out=%d", inRate, outRate)
	}
	g := gcd(inRate, outRate)
	up, down := outRate/g, inRate/g

	up1, up2 := factorBalanced(up)
	down1, down2 := factorBalanced(down)

	stage1 := designStage(up1, down1)
	stage2 := designStage(up2, down2)
	return Plan{Stage1: stage1, Stage2: stage2}, nil
}

// designStage builds one stage's windowed-sinc lowpass kernel, cut off
// at the tighter of the up/down Nyquist limits (whichever of the two
// directions constrains the passband) scaled by a small guard band.
func designStage(up, down int) Stage {
	cutoff := 1.0 / float64(maxInt(up, down))
	taps := tapsPerPhase * maxInt(up, 1)
	kernel := sincLowpass(taps, cutoff*0.9)
	kernel = window.Blackman(kernel)
	normalize(kernel)
	return Stage{Up: up, Down: down, Coeffs: kernel}
}

// sincLowpass returns an n-tap ideal lowpass sinc kernel with
// normalized cutoff frequency cutoff (1.0 == Nyquist), before windowing.
func sincLowpass(n int, cutoff float64) []float64 {
	k := make([]float64, n)
	center := float64(n-1) / 2
	for i := 0; i < n; i++ {
		x := float64(i) - center
		if x == 0 {
			k[i] = cutoff
			continue
		}
		k[i] = math.Sin(math.Pi*cutoff*x) / (math.Pi * x)
	}
	return k
}

// normalize scales k in place so its coefficients sum to 1 (unity DC
// gain), the conventional FIR lowpass normalization.
func normalize(k []float64) {
	sum := 0.0
	for _, v := range k {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range k {
		k[i] /= sum
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// factorBalanced splits n into two factors as close to sqrt(n) as
// possible, so neither stage carries the whole ratio alone. Prime n
// degenerates to (1, n), which is still a correct (if single-stage-
// equivalent) decomposition.
func factorBalanced(n int) (a, b int) {
	if n <= 1 {
		return 1, maxInt(n, 1)
	}
	best := 1
	for d := 1; d*d <= n; d++ {
		if n%d == 0 {
			best = d
		}
	}
	return best, n / best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
