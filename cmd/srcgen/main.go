// Command srcgen is an offline tool that walks a platform descriptor's
// declared synchronous-SRC sample-rate bank and reports the two-stage
// polyphase filter plan internal/srcdesign.Design produces for every
// (in_rate, out_rate) pair, standing in for the real firmware's
// build-time src_table code generation step without baking a generated table into the Go source itself — the
// SRC component calls Design directly when pcm_params prepares it instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jangala-audio/dspcore/internal/platform"
	"github.com/jangala-audio/dspcore/internal/srcdesign"
)

func main() {
	platformPath := flag.String("platform", "", "Path to a YAML platform descriptor (defaults to the built-in descriptor)")
	flag.Parse()

	plat := platform.Default()
	if *platformPath != "" {
		var err error
		plat, err = platform.Load(*platformPath)
		if err != nil {
			log.Fatalf("srcgen: load platform descriptor %q: %v", *platformPath, err)
		}
	}

	rates := plat.SampleRates
	if len(rates) == 0 {
		fmt.Fprintln(os.Stderr, "srcgen: platform descriptor declares no sample rates")
		os.Exit(1)
	}

	fail := 0
	for _, inRate := range rates {
		for _, outRate := range rates {
			plan, err := srcdesign.Design(inRate, outRate)
			if err != nil {
				fmt.Fprintf(os.Stderr, "srcgen: %d -> %d: %v\n", inRate, outRate, err)
				fail++
				continue
			}
			fmt.Printf("%6d -> %6d: stage1 %d/%d (%d taps), stage2 %d/%d (%d taps)\n",
				inRate, outRate,
				plan.Stage1.Up, plan.Stage1.Down, len(plan.Stage1.Coeffs),
				plan.Stage2.Up, plan.Stage2.Down, len(plan.Stage2.Coeffs),
			)
		}
	}

	if fail > 0 {
		os.Exit(1)
	}
}
