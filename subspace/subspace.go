// Package subspace rescales the host transport so downstream modules see
// a faster or slower beat grid.
package subspace

import (
	"fmt"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#subspace"

type Mode int

const (
	ModeMultiply Mode = iota
	ModeDivide
)

func (m Mode) String() string {
	if m == ModeDivide {
		return "divide"
	}
	return "multiply"
}

type Subspace struct {
	urids   *atom.URIDs
	tracker *rhythm.Tracker
	builder *atom.ObjectBuilder
	forge   atom.Forge
	log     *logrus.Entry
	trace   bool

	mode    Mode
	factor  uint32
	changed bool
}

// Descriptor registers subspace with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "subspace",
		URI:         URI,
		Description: "multiply or divide the beat grid",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			s, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Subspace, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}

	tracker, err := rhythm.New(mapper, cfg.SampleRate, 0, nil)
	if err != nil {
		return nil, err
	}
	return &Subspace{
		urids:   tracker.URIDs(),
		tracker: tracker,
		builder: atom.NewObjectBuilder(tracker.URIDs(), 512),
		log:     f.Logger(),
		trace:   f.Tracing(),
		factor:  1,
	}, nil
}

func (s *Subspace) Activate() {
	s.log.WithFields(logrus.Fields{
		"mode":   s.mode,
		"factor": s.factor,
	}).Debug("Subspace activated")
}

func (s *Subspace) Deactivate() {}

func (s *Subspace) Close() error {
	return nil
}

func (s *Subspace) Run(in, out *atom.Sequence, nsamples int64) {
	s.forge.Reset(out)

	if s.changed {
		s.changed = false
		s.emit(0)
	}

	var last int64
	for c := in.Begin(); !in.IsEnd(c); c = in.Next(c) {
		ev := in.Event(c)
		if s.tracker.Advance(&ev.Atom, last, ev.Frames) {
			s.emit(ev.Frames)
		} else {
			s.forge.Write(ev)
		}
		last = ev.Frames
	}
	s.tracker.Advance(nil, last, nsamples)

	if !s.forge.Finish() && s.trace {
		s.log.Trace("Subspace output overflow")
	}
}

// Scaled is the tracked position as seen through the current mode and
// factor.
func (s *Subspace) Scaled() rhythm.Position {
	pos := s.tracker.Position()
	f := s.factor
	if s.mode == ModeMultiply {
		pos.BarBeat *= float64(f)
		pos.Beat *= float64(f)
		pos.BeatUnit *= f
		pos.BeatsPerBar *= float64(f)
	} else {
		pos.BarBeat /= float64(f)
		pos.Beat /= float64(f)
		pos.BeatUnit /= f
		pos.BeatsPerBar /= float64(f)
	}
	return pos
}

func (s *Subspace) emit(frames int64) {
	a, ok := rhythm.Atomize(s.builder, s.urids, s.Scaled())
	if !ok {
		return
	}
	s.forge.WriteAtom(frames, a)
}

// SetScale changes mode and factor. The rescaled position is sent at the
// start of the next block.
func (s *Subspace) SetScale(mode Mode, factor uint32) error {
	if mode != ModeMultiply && mode != ModeDivide {
		return fmt.Errorf("subspace mode %d out of range", mode)
	}
	if factor == 0 {
		return fmt.Errorf("subspace factor must be positive")
	}
	if mode != s.mode || factor != s.factor {
		s.mode, s.factor = mode, factor
		s.changed = true
	}
	return nil
}

func (s *Subspace) Params() []string {
	return []string{"mode", "factor"}
}

func (s *Subspace) SetParam(name string, value float64) error {
	switch name {
	case "mode":
		return s.SetScale(Mode(value), s.factor)
	case "factor":
		if value < 1 {
			return fmt.Errorf("subspace factor %v must be at least 1", value)
		}
		return s.SetScale(s.mode, uint32(value))
	}
	return fmt.Errorf("subspace has no parameter %q", name)
}
