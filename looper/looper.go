// Package looper records incoming events and plays them back as a free
// running loop measured in frames.
package looper

import (
	"fmt"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/loop"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#looper"

// Controls are sampled at the start of every block. Mode only takes effect
// when the loop starts rolling. ModeSubstitute keeps the loop length and only
// re-records the span the previous recording pass received input in.
type Controls struct {
	Mode    loop.Mode
	Rolling bool
}

type Looper struct {
	engine *loop.Engine
	forge  atom.Forge
	log    *logrus.Entry
	trace  bool

	Controls Controls
	applied  Controls
}

// Descriptor registers the looper with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "looper",
		URI:         URI,
		Description: "free running event loop",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			l, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Looper, error) {
	if _, err := f.RequireMap(); err != nil {
		return nil, err
	}
	return &Looper{
		engine: loop.New(cfg.TimelineCapacity, atom.UnitFrames),
		log:    f.Logger(),
		trace:  f.Tracing(),
	}, nil
}

func (l *Looper) Activate() {
	l.applied = Controls{}
	l.engine.SetRolling(false)
	l.log.WithField("capacity", l.engine.PlayBuffer().Capacity()).Debug("Looper activated")
}

func (l *Looper) Deactivate() {
	l.engine.Stop()
}

func (l *Looper) Close() error {
	return nil
}

func (l *Looper) Run(in, out *atom.Sequence, nsamples int64) {
	l.forge.Reset(out)

	c := l.Controls
	switch {
	case c.Rolling && !l.applied.Rolling:
		l.engine.Start(c.Mode)
		// substitution re-records what the last recording pass played into
		if c.Mode == loop.ModeSubstitute {
			l.engine.SetRegion(l.engine.LastInput())
		} else {
			l.engine.SetRegion(0, 0)
		}
	case !c.Rolling && l.applied.Rolling:
		l.engine.Stop()
	}
	l.applied = c

	var last int64
	for cur := in.Begin(); !in.IsEnd(cur); cur = in.Next(cur) {
		ev := in.Event(cur)
		l.engine.Advance(&l.forge, last, ev.Frames)
		l.engine.Record(ev)
		last = ev.Frames
	}
	l.engine.Advance(&l.forge, last, nsamples)

	if !l.forge.Finish() && l.trace {
		l.log.Trace("Looper output overflow")
	}
}

// Engine exposes the loop for inspection.
func (l *Looper) Engine() *loop.Engine {
	return l.engine
}

func (l *Looper) Save() ([]byte, error) {
	return l.engine.Serialize()
}

func (l *Looper) Restore(blob []byte) error {
	if err := l.engine.Restore(blob); err != nil {
		return err
	}
	l.Controls.Mode = l.engine.Mode()
	l.log.WithField("length", l.engine.Length()).Info("Restored looper state")
	return nil
}

func (l *Looper) Params() []string {
	return []string{"mode", "state"}
}

func (l *Looper) SetParam(name string, value float64) error {
	switch name {
	case "mode":
		m := loop.Mode(value)
		if m < loop.ModePlay || m > loop.ModeSubstitute {
			return fmt.Errorf("looper mode %v out of range", value)
		}
		l.Controls.Mode = m
	case "state":
		l.Controls.Rolling = value != 0
	default:
		return fmt.Errorf("looper has no parameter %q", name)
	}
	return nil
}

func (l *Looper) Status() map[string]float64 {
	position := 0.0
	if l.applied.Rolling {
		position = l.engine.Position()
		if l.engine.Length() == 0 {
			position = 100
		}
	}
	return map[string]float64{
		"play_capacity":   l.engine.PlayUsed(),
		"record_capacity": l.engine.RecordUsed(),
		"position":        position,
	}
}
