// Package monitor reports the tracked host transport once per block.
package monitor

import (
	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#monitor"

type Monitor struct {
	urids   *atom.URIDs
	tracker *rhythm.Tracker
	builder *atom.ObjectBuilder
	forge   atom.Forge
	log     *logrus.Entry
	trace   bool

	published rhythm.Position
}

// Descriptor registers the monitor with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "monitor",
		URI:         URI,
		Description: "publish the transport position every block",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			m, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Monitor, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}

	tracker, err := rhythm.New(mapper, cfg.SampleRate, 0, nil)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		urids:     tracker.URIDs(),
		tracker:   tracker,
		builder:   atom.NewObjectBuilder(tracker.URIDs(), 512),
		log:       f.Logger(),
		trace:     f.Tracing(),
		published: tracker.Position(),
	}, nil
}

func (m *Monitor) Activate() {
	m.log.Debug("Monitor activated")
}

func (m *Monitor) Deactivate() {}

func (m *Monitor) Close() error {
	return nil
}

// Run publishes the position reached at the end of the block on its last
// frame.
func (m *Monitor) Run(in, out *atom.Sequence, nsamples int64) {
	m.forge.Reset(out)

	var last int64
	for c := in.Begin(); !in.IsEnd(c); c = in.Next(c) {
		ev := in.Event(c)
		m.tracker.Advance(&ev.Atom, last, ev.Frames)
		last = ev.Frames
	}
	m.tracker.Advance(nil, last, nsamples)

	if nsamples <= 0 {
		return
	}
	m.published = m.tracker.Position()
	if a, ok := rhythm.Atomize(m.builder, m.urids, m.published); ok {
		m.forge.WriteAtom(nsamples-1, a)
	}
	if !m.forge.Finish() && m.trace {
		m.log.Trace("Monitor output overflow")
	}
}

// Position is the last published position.
func (m *Monitor) Position() rhythm.Position {
	return m.published
}

func (m *Monitor) Status() map[string]float64 {
	p := m.published
	return map[string]float64{
		"bar_beat":          p.BarBeat,
		"bar":               float64(p.Bar),
		"beat_unit":         float64(p.BeatUnit),
		"beats_per_bar":     p.BeatsPerBar,
		"beats_per_minute":  p.BeatsPerMinute,
		"frame":             float64(p.Frame),
		"frames_per_second": p.FramesPerSecond,
		"speed":             p.Speed,
	}
}
