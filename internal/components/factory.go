package components

import (
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// New constructs a component instance of the given well-known type with
// its IPC-supplied configuration blob applied, for every kind that needs
// nothing beyond an id, a name and a blob. Host and the DAI copier are
// deliberately excluded: both need a direction or a claimed dai.Binding
// that only internal/runtime has at comp_new time, so the caller
// special-cases those two kinds directly rather than going through this
// generic path.
func New(typ ids.ComponentType, id ids.ComponentID, name string, configBlob []byte) (component.Component, error) {
	var c component.Component
	var cfg Configurable

	switch typ {
	case ids.TypeVolume:
		v := NewVolume(id, name)
		c, cfg = v, v
	case ids.TypeMixer:
		c = NewMixer(id, name)
	case ids.TypeMux, ids.TypeDemux:
		x := NewMuxDemux(id, name)
		c, cfg = x, x
	case ids.TypeSRC:
		c = NewSRC(id, name)
	case ids.TypeASRC:
		a := NewASRC(id, name)
		c, cfg = a, a
	case ids.TypeTone:
		t := NewTone(id, name, 1000.0, 0.0)
		c, cfg = t, t
	case ids.TypeEQFIR:
		e := NewEQ(id, name, EQTopologyFIR)
		c, cfg = e, e
	case ids.TypeEQIIR:
		e := NewEQ(id, name, EQTopologyIIR)
		c, cfg = e, e
	case ids.TypeDRC:
		d := NewDRC(id, name, DRCConfig{})
		c, cfg = d, d
	case ids.TypeSelector:
		s := NewSelector(id, name)
		c, cfg = s, s
	case ids.TypeDCBlock:
		d := NewDCBlock(id, name)
		c, cfg = d, d
	case ids.TypeKPB:
		k := NewKPB(id, name)
		c, cfg = k, k
	default:
		return nil, dsperr.New(dsperr.CodeNotSupported, "components: unsupported component type "+typ.String())
	}

	if cfg != nil && len(configBlob) > 0 {
		if err := cfg.Configure(configBlob); err != nil {
			return nil, err
		}
	}
	return c, nil
}
