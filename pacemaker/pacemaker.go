// Package pacemaker generates a host transport from tempo and transport
// controls.
package pacemaker

import (
	"fmt"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#pacemaker"

// Controls are sampled at the start of every block.
type Controls struct {
	BeatUnit       int
	BeatsPerBar    int
	BeatsPerMinute int
	Rolling        bool
	// Rewind restarts from the first bar whenever rolling starts.
	Rewind bool
}

func DefaultControls() Controls {
	return Controls{
		BeatUnit:       4,
		BeatsPerBar:    4,
		BeatsPerMinute: 120,
		Rewind:         true,
	}
}

type Pacemaker struct {
	urids   *atom.URIDs
	builder *atom.ObjectBuilder
	forge   atom.Forge
	log     *logrus.Entry
	trace   bool
	rate    float64

	Controls Controls
	applied  Controls

	pos          rhythm.Position
	framesPerBar float64
	// frames into the current bar
	rel float64
}

// Descriptor registers the pacemaker with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "pacemaker",
		URI:         URI,
		Description: "transport generator",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			p, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Pacemaker, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}

	u := atom.MapURIDs(mapper)
	p := &Pacemaker{
		urids:    u,
		builder:  atom.NewObjectBuilder(u, 512),
		log:      f.Logger(),
		trace:    f.Tracing(),
		rate:     cfg.SampleRate,
		Controls: DefaultControls(),
	}
	p.Activate()
	return p, nil
}

// Activate rewinds to the first bar at 4/4 and 120 BPM. The controls are
// announced with the next block.
func (p *Pacemaker) Activate() {
	p.pos = rhythm.NewPosition(p.rate)
	p.framesPerBar = p.pos.FramesPerBar()
	p.rel = 0
	p.applied = Controls{}
	p.log.WithFields(logrus.Fields{
		"bpm":  p.Controls.BeatsPerMinute,
		"rate": p.rate,
	}).Debug("Pacemaker activated")
}

func (p *Pacemaker) Deactivate() {}

func (p *Pacemaker) Close() error {
	return nil
}

// Run ignores in. Whenever a control changed it sends the complete
// position at the first frame of the block.
func (p *Pacemaker) Run(in, out *atom.Sequence, nsamples int64) {
	p.forge.Reset(out)

	c := p.Controls
	if c.BeatUnit != p.applied.BeatUnit || c.BeatsPerBar != p.applied.BeatsPerBar ||
		c.BeatsPerMinute != p.applied.BeatsPerMinute || c.Rolling != p.applied.Rolling {
		p.apply(c)
	}

	if p.pos.Rolling() {
		p.pos.Frame += nsamples
		p.rel += float64(nsamples)
		for p.framesPerBar > 0 && p.rel >= p.framesPerBar {
			p.pos.Bar++
			p.rel -= p.framesPerBar
		}
	}

	if !p.forge.Finish() && p.trace {
		p.log.Trace("Pacemaker output overflow")
	}
}

func (p *Pacemaker) apply(c Controls) {
	var barFrac float64
	if p.framesPerBar > 0 {
		barFrac = p.rel / p.framesPerBar
	}

	p.pos.BeatUnit = uint32(c.BeatUnit)
	p.pos.BeatsPerBar = float64(c.BeatsPerBar)
	p.pos.BeatsPerMinute = float64(c.BeatsPerMinute)
	p.pos.Speed = 0
	if c.Rolling {
		p.pos.Speed = 1
	}
	if c.Rolling && !p.applied.Rolling && c.Rewind {
		barFrac = 0
		p.pos.Frame = 0
		p.pos.Bar = 0
		p.rel = 0
	}
	p.pos.BarBeat = p.pos.BeatsPerBar * barFrac
	p.pos.Beat = p.pos.Beats()

	if a, ok := rhythm.Atomize(p.builder, p.urids, p.pos); ok {
		p.forge.WriteAtom(0, a)
	}

	p.applied = c
	if p.pos.Valid() {
		p.framesPerBar = p.pos.FramesPerBar()
		p.rel = barFrac * p.framesPerBar
	}
}

// Position is the transport at the start of the next block.
func (p *Pacemaker) Position() rhythm.Position {
	pos := p.pos
	if p.framesPerBar > 0 {
		pos.BarBeat = pos.BeatsPerBar * p.rel / p.framesPerBar
		pos.Beat = pos.Beats()
	}
	return pos
}

func (p *Pacemaker) Params() []string {
	return []string{"beat_unit", "beats_per_bar", "beats_per_minute", "rolling", "rewind"}
}

func (p *Pacemaker) SetParam(name string, value float64) error {
	switch name {
	case "beat_unit", "beats_per_bar", "beats_per_minute":
		if value < 1 {
			return fmt.Errorf("pacemaker %s must be at least 1, got %v", name, value)
		}
	}

	switch name {
	case "beat_unit":
		p.Controls.BeatUnit = int(value)
	case "beats_per_bar":
		p.Controls.BeatsPerBar = int(value)
	case "beats_per_minute":
		p.Controls.BeatsPerMinute = int(value)
	case "rolling":
		p.Controls.Rolling = value != 0
	case "rewind":
		p.Controls.Rewind = value != 0
	default:
		return fmt.Errorf("pacemaker has no parameter %q", name)
	}
	return nil
}

func (p *Pacemaker) Status() map[string]float64 {
	pos := p.Position()
	return map[string]float64{
		"bar":      float64(pos.Bar),
		"bar_beat": pos.BarBeat,
		"frame":    float64(pos.Frame),
	}
}
