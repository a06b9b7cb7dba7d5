// Package cargoship records events against the host's beat grid and plays
// them back in a loop that stays locked to the transport.
package cargoship

import (
	"fmt"
	"math"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/loop"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#cargoship"

// Controls are sampled at the start of every block.
type Controls struct {
	Punch loop.Punch
	// Width is the loop length in Punch units.
	Width int64
	Mute  bool
	Mode  loop.Mode

	// RegionStart and RegionEnd bound substitution, in Punch units from the
	// loop start. An empty region substitutes the whole loop.
	RegionStart float64
	RegionEnd   float64
}

func DefaultControls() Controls {
	return Controls{
		Punch: loop.PunchBar,
		Width: 1,
		Mode:  loop.ModeReplace,
	}
}

type Cargoship struct {
	tracker *rhythm.Tracker
	engine  *loop.Engine
	forge   atom.Forge
	log     *logrus.Entry
	trace   bool

	Controls Controls
	applied  Controls

	// block frame the engine has been advanced to
	at int64
}

// Descriptor registers the cargoship with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "cargoship",
		URI:         URI,
		Description: "transport locked event loop",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			c, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Cargoship, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}

	c := &Cargoship{
		engine:   loop.New(cfg.TimelineCapacity, atom.UnitBeats),
		log:      f.Logger(),
		trace:    f.Tracing(),
		Controls: DefaultControls(),
	}
	c.tracker, err = rhythm.New(mapper, cfg.SampleRate, rhythm.MaskSpeed|rhythm.MaskBarBeat|rhythm.MaskBarBeatWhole|rhythm.MaskTempo, c.handle)
	if err != nil {
		return nil, err
	}
	c.engine.SetTempo(c.tracker.FramesPerBeat(), c.tracker.FramesPerBar())
	c.apply()
	return c, nil
}

func (c *Cargoship) Activate() {
	c.log.WithFields(logrus.Fields{
		"punch": c.Controls.Punch,
		"width": c.Controls.Width,
	}).Debug("Cargoship activated")
}

func (c *Cargoship) Deactivate() {}

func (c *Cargoship) Close() error {
	return nil
}

func (c *Cargoship) apply() {
	c.applied = c.Controls
	c.engine.SetWindow(c.applied.Punch, c.applied.Width)
	c.engine.SetMute(c.applied.Mute)
	c.engine.SetMode(c.applied.Mode)
	c.region()
}

// region converts the substitution region into loop frames.
func (c *Cargoship) region() {
	unit := c.tracker.FramesPerBeat()
	if c.applied.Punch == loop.PunchBar {
		unit = c.tracker.FramesPerBar()
	}
	c.engine.SetRegion(
		int64(math.Round(c.applied.RegionStart*unit)),
		int64(math.Round(c.applied.RegionEnd*unit)),
	)
}

func (c *Cargoship) Run(in, out *atom.Sequence, nsamples int64) {
	c.forge.Reset(out)
	if c.Controls != c.applied {
		c.apply()
	}

	c.at = 0
	var last int64
	for cur := in.Begin(); !in.IsEnd(cur); cur = in.Next(cur) {
		ev := in.Event(cur)
		transport := c.tracker.Advance(&ev.Atom, last, ev.Frames)
		c.advance(ev.Frames)
		if !transport {
			c.engine.Record(ev)
		}
		last = ev.Frames
	}
	c.tracker.Advance(nil, last, nsamples)
	c.advance(nsamples)

	if !c.forge.Finish() && c.trace {
		c.log.Trace("Cargoship output overflow")
	}
}

func (c *Cargoship) advance(to int64) {
	if to > c.at {
		c.engine.Advance(&c.forge, c.at, to)
		c.at = to
	}
}

func (c *Cargoship) handle(t *rhythm.Tracker, frames int64, field rhythm.Field) {
	c.advance(frames)

	switch field {
	case rhythm.FieldSpeed:
		c.engine.SetRolling(t.IsRolling())
	case rhythm.FieldBarBeat:
		if offset := c.offset(t); offset != c.engine.Offset() {
			c.engine.Seek(offset)
		}
	default:
		c.engine.SetTempo(t.FramesPerBeat(), t.FramesPerBar())
		c.region()
	}
}

// offset is the loop offset of the current transport position.
func (c *Cargoship) offset(t *rhythm.Tracker) int64 {
	beats := t.Beats()
	punch, width := c.engine.Punch()
	span := float64(width)
	if punch == loop.PunchBar {
		span *= t.GetBeatsPerBar()
	}
	if span > 0 {
		beats = math.Mod(beats, span)
	}
	return int64(math.Round(beats * t.FramesPerBeat()))
}

// Engine exposes the loop for inspection.
func (c *Cargoship) Engine() *loop.Engine {
	return c.engine
}

func (c *Cargoship) Save() ([]byte, error) {
	return c.engine.Serialize()
}

// Restore loads a saved loop including its window and mute setting.
func (c *Cargoship) Restore(blob []byte) error {
	if err := c.engine.Restore(blob); err != nil {
		return err
	}
	c.Controls.Punch, c.Controls.Width = c.engine.Punch()
	c.Controls.Mute = c.engine.Muted()
	c.Controls.Mode = c.engine.Mode()
	c.applied = c.Controls
	c.region()
	c.log.WithField("window", c.engine.Window()).Info("Restored cargoship state")
	return nil
}

func (c *Cargoship) Params() []string {
	return []string{"punch", "width", "mute", "mode", "region_start", "region_end"}
}

func (c *Cargoship) SetParam(name string, value float64) error {
	switch name {
	case "punch":
		p := loop.Punch(value)
		if p != loop.PunchBeat && p != loop.PunchBar {
			return fmt.Errorf("cargoship punch %v out of range", value)
		}
		c.Controls.Punch = p
	case "width":
		if value < 0 {
			return fmt.Errorf("cargoship width %v must not be negative", value)
		}
		c.Controls.Width = int64(value)
	case "mute":
		c.Controls.Mute = value != 0
	case "mode":
		m := loop.Mode(value)
		if m < loop.ModePlay || m > loop.ModeSubstitute {
			return fmt.Errorf("cargoship mode %v out of range", value)
		}
		c.Controls.Mode = m
	case "region_start", "region_end":
		if value < 0 {
			return fmt.Errorf("cargoship %s %v must not be negative", name, value)
		}
		if name == "region_start" {
			c.Controls.RegionStart = value
		} else {
			c.Controls.RegionEnd = value
		}
	default:
		return fmt.Errorf("cargoship has no parameter %q", name)
	}
	return nil
}

func (c *Cargoship) Status() map[string]float64 {
	return map[string]float64{
		"position":        c.engine.Position(),
		"play_capacity":   c.engine.PlayUsed(),
		"record_capacity": c.engine.RecordUsed(),
	}
}
