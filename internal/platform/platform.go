// Package platform loads the board/platform descriptor: the static
// per-SoC-variant facts the rest of the core treats as read-only truth —
// memory pool sizes and capability masks, the DAI instance table, and
// the declared synchronous-SRC sample-rate bank.
//
// Real firmware bakes this in as a devicetree-like table
// compiled into the image; here it is authored once as YAML and loaded at
// boot, since a human-edited descriptor is the more useful artifact for a
// simulated multi-platform core.
package platform

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/jangala-audio/dspcore/internal/memory"
)

// PoolDescriptor describes one named memory pool.
type PoolDescriptor struct {
	Name         string   `yaml:"name"`
	SizeBytes    uint32   `yaml:"size_bytes"`
	Capabilities []string `yaml:"capabilities"`
	PerCore      bool     `yaml:"per_core"`
}

// DAIDescriptor describes one physical DAI instance.
type DAIDescriptor struct {
	Type      string `yaml:"type"`
	Index     int    `yaml:"index"`
	Direction string `yaml:"direction"`
	FIFODepth int    `yaml:"fifo_depth"`
}

// Descriptor is the full board/platform configuration.
type Descriptor struct {
	Cores       int              `yaml:"cores"`
	Pools       []PoolDescriptor `yaml:"pools"`
	DAIs        []DAIDescriptor  `yaml:"dais"`
	SampleRates []int            `yaml:"sample_rates"`
}

// Load parses a YAML board descriptor from disk.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform descriptor: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML board descriptor from raw bytes.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse platform descriptor: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Descriptor) validate() error {
	if d.Cores <= 0 || d.Cores > 4 {
		return fmt.Errorf("platform: cores must be in 1..4, got %d", d.Cores)
	}
	for _, p := range d.Pools {
		if p.SizeBytes == 0 {
			return fmt.Errorf("platform: pool %q has zero size", p.Name)
		}
		if _, err := capsFromStrings(p.Capabilities); err != nil {
			return fmt.Errorf("platform: pool %q: %w", p.Name, err)
		}
	}
	return nil
}

// Capabilities converts every pool descriptor's string capability list
// into the memory package's bitmask representation.
func (d *Descriptor) Capabilities() (map[string]memory.Capability, error) {
	out := make(map[string]memory.Capability, len(d.Pools))
	for _, p := range d.Pools {
		caps, err := capsFromStrings(p.Capabilities)
		if err != nil {
			return nil, err
		}
		out[p.Name] = caps
	}
	return out, nil
}

func capsFromStrings(names []string) (memory.Capability, error) {
	var caps memory.Capability
	for _, n := range names {
		c, ok := memory.CapabilityByName[n]
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", n)
		}
		caps |= c
	}
	return caps, nil
}

// Default returns a two-core descriptor with the six named pools and
// the fifteen-entry sample-rate bank, suitable for
// tests and as the fallback when no board file is supplied.
func Default() *Descriptor {
	return &Descriptor{
		Cores: 2,
		Pools: []PoolDescriptor{
			{Name: "system", SizeBytes: 64 * 1024, Capabilities: []string{"ram", "exec"}, PerCore: true},
			{Name: "system-runtime", SizeBytes: 64 * 1024, Capabilities: []string{"ram"}, PerCore: true},
			{Name: "runtime", SizeBytes: 512 * 1024, Capabilities: []string{"ram"}},
			{Name: "runtime-shared", SizeBytes: 256 * 1024, Capabilities: []string{"ram", "cache"}},
			{Name: "buffer", SizeBytes: 2 * 1024 * 1024, Capabilities: []string{"ram", "dma", "hp"}},
			{Name: "low-power-buffer", SizeBytes: 256 * 1024, Capabilities: []string{"ram", "dma", "lp"}},
		},
		DAIs: []DAIDescriptor{
			{Type: "SSP", Index: 0, Direction: "playback", FIFODepth: 256},
			{Type: "SSP", Index: 0, Direction: "capture", FIFODepth: 256},
			{Type: "DMIC", Index: 0, Direction: "capture", FIFODepth: 512},
		},
		SampleRates: []int{
			8000, 11025, 12000, 16000, 18900, 22050, 24000, 32000,
			44100, 48000, 64000, 88200, 96000, 176400, 192000,
		},
	}
}
