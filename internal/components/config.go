package components

import (
	"encoding/binary"
	"math"

	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

// Configurable is implemented by component kinds whose behavior is
// driven by an opaque IPC configuration blob rather than purely by
// negotiated stream params. internal/ipc calls Configure once at component_new time with the
// blob attached to that request, and again for every large-config
// set_config that completes reassembly. A component
// kind that takes no configuration (mixer, SRC, host, the DAI shim)
// simply doesn't implement this interface; the dispatcher skips it.
type Configurable interface {
	Configure(blob []byte) error
}

func f64(v []byte) (float64, error) {
	if len(v) != 8 {
		return 0, dsperr.New(dsperr.CodeBadParam, "components: expected 8-byte float64 token value")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v)), nil
}

// Configure decodes a single scalar frequency/amplitude pair for the
// tone generator; either token may appear alone to retune just one of
// the two.
func (t *Tone) Configure(blob []byte) error {
	return tlv.Walk(blob, func(tok tlv.Token) error {
		switch tok.ID {
		case TokenToneFreqHz:
			v, err := f64(tok.Value)
			if err != nil {
				return err
			}
			t.SetFrequency(v)
		case TokenToneAmplitude:
			v, err := f64(tok.Value)
			if err != nil {
				return err
			}
			t.SetAmplitude(v)
		}
		return nil
	})
}

// Configure decodes a single scalar ratio pin for the asynchronous SRC.
func (a *ASRC) Configure(blob []byte) error {
	return tlv.Walk(blob, func(tok tlv.Token) error {
		if tok.ID != TokenASRCRatio {
			return nil
		}
		v, err := f64(tok.Value)
		if err != nil {
			return err
		}
		return a.SetRatio(v)
	})
}

// Configure decodes the seven DRCConfig scalars into a fresh config and
// installs it via SetConfig; a blob that omits a field leaves it zeroed
// rather than preserving the previous value, matching set_config's
// "whole blob replaces whole config" semantics.
func (d *DRC) Configure(blob []byte) error {
	var cfg DRCConfig
	if err := tlv.Walk(blob, func(tok tlv.Token) error {
		v, err := f64(tok.Value)
		if err != nil {
			return err
		}
		switch tok.ID {
		case TokenDRCThresholdDB:
			cfg.ThresholdDB = v
		case TokenDRCRatioToOne:
			cfg.RatioToOne = v
		case TokenDRCKneeWidthDB:
			cfg.KneeWidthDB = v
		case TokenDRCAttackMs:
			cfg.AttackMs = v
		case TokenDRCReleaseMs:
			cfg.ReleaseMs = v
		case TokenDRCLookaheadMs:
			cfg.LookaheadMs = v
		case TokenDRCMakeupGainDB:
			cfg.MakeupGainDB = v
		}
		return nil
	}); err != nil {
		return err
	}
	d.SetConfig(cfg)
	return nil
}

// Configure decodes either a repeated FIR tap stream or a repeated IIR
// section stream, matching whichever topology this instance was
// constructed as.
func (e *EQ) Configure(blob []byte) error {
	var taps []float64
	var sections []struct{ B0, B1, B2, A1, A2 float64 }
	if err := tlv.Walk(blob, func(tok tlv.Token) error {
		switch tok.ID {
		case TokenEQFIRTap:
			v, err := f64(tok.Value)
			if err != nil {
				return err
			}
			taps = append(taps, v)
		case TokenEQIIRSection:
			if len(tok.Value) != 40 {
				return dsperr.New(dsperr.CodeBadParam, "eq: malformed iir section token")
			}
			var vals [5]float64
			for i := range vals {
				vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(tok.Value[i*8:]))
			}
			sections = append(sections, struct{ B0, B1, B2, A1, A2 float64 }{vals[0], vals[1], vals[2], vals[3], vals[4]})
		}
		return nil
	}); err != nil {
		return err
	}
	switch e.topology {
	case EQTopologyFIR:
		if len(taps) > 0 {
			return e.SetFIRCoeffs(taps)
		}
	case EQTopologyIIR:
		if len(sections) > 0 {
			return e.SetIIRSections(sections)
		}
	}
	return nil
}

// Configure decodes a repeated {sinkIdx, outCh, mask} stream into the
// per-sink outMasks slices SetRouting expects, growing each sink's slice
// to cover the highest outCh seen before installing it in one call.
func (x *MuxDemux) Configure(blob []byte) error {
	routes := make(map[int]map[int]uint64)
	if err := tlv.Walk(blob, func(tok tlv.Token) error {
		if tok.ID != TokenMuxRoute {
			return nil
		}
		if len(tok.Value) != 16 {
			return dsperr.New(dsperr.CodeBadParam, "muxdemux: malformed route token")
		}
		sinkIdx := int(binary.LittleEndian.Uint32(tok.Value[0:4]))
		outCh := int(binary.LittleEndian.Uint32(tok.Value[4:8]))
		mask := binary.LittleEndian.Uint64(tok.Value[8:16])
		if routes[sinkIdx] == nil {
			routes[sinkIdx] = make(map[int]uint64)
		}
		routes[sinkIdx][outCh] = mask
		return nil
	}); err != nil {
		return err
	}
	for sinkIdx, byCh := range routes {
		maxCh := 0
		for ch := range byCh {
			if ch > maxCh {
				maxCh = ch
			}
		}
		masks := make([]uint64, maxCh+1)
		for ch, mask := range byCh {
			masks[ch] = mask
		}
		if err := x.SetRouting(sinkIdx, masks); err != nil {
			return err
		}
	}
	return nil
}

// Configure decodes the repeated per-output-channel route entries into
// one SetRoutes call, in token order.
func (s *Selector) Configure(blob []byte) error {
	var routes []uint32
	if err := tlv.Walk(blob, func(tok tlv.Token) error {
		if tok.ID != TokenSelRoute {
			return nil
		}
		v, err := tlv.Uint32At(tok)
		if err != nil {
			return err
		}
		routes = append(routes, v)
		return nil
	}); err != nil {
		return err
	}
	if len(routes) > 0 {
		s.SetRoutes(routes)
	}
	return nil
}

// Configure decodes a single scalar pole position for the DC blocker.
func (d *DCBlock) Configure(blob []byte) error {
	return tlv.Walk(blob, func(tok tlv.Token) error {
		if tok.ID != TokenDCBlockR {
			return nil
		}
		v, err := f64(tok.Value)
		if err != nil {
			return err
		}
		return d.SetR(v)
	})
}

// Configure decodes the KPB's history window and drain command. The
// drain token is how a host reacts to phrase_detected: it arrives as an
// ordinary set_config rather than a dedicated IPC command, so the KPB
// needs no special path through the dispatcher.
func (k *KPB) Configure(blob []byte) error {
	return tlv.Walk(blob, func(tok tlv.Token) error {
		switch tok.ID {
		case TokenKPBHistoryMs:
			v, err := tlv.Uint32At(tok)
			if err != nil {
				return err
			}
			return k.SetHistoryMs(v)
		case TokenKPBDrain:
			v, err := tlv.Uint32At(tok)
			if err != nil {
				return err
			}
			if v != 0 {
				k.StartDraining()
			}
		}
		return nil
	})
}
