// Package orbittest provides an in-memory host for exercising modules in
// tests.
package orbittest

import (
	"testing"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/logger"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

// Host bundles every capability a module can ask for.
type Host struct {
	Map       *host.URIDMap
	URIDs     *atom.URIDs
	Scheduler *host.ManualScheduler
	Features  host.Features
	Config    config.OrbitConfig
	Block     *host.Block

	builder *atom.ObjectBuilder
}

// NewHost creates a host at 48 kHz whose state files live in a temporary
// directory.
func NewHost(t testing.TB) *Host {
	m := host.NewURIDMap()
	u := atom.MapURIDs(m)
	s := &host.ManualScheduler{}

	cfg := config.GetOrbitConfig()
	cfg.TimelineCapacity = 0x10000
	cfg.RingCapacity = 64
	cfg.ArchiveDir = t.TempDir()

	return &Host{
		Map:       m,
		URIDs:     u,
		Scheduler: s,
		Features: host.Features{
			Map:      m,
			Unmap:    m,
			Schedule: s,
			Log:      logger.GetProjectLogger(),
			MakePath: host.DirPathMaker{Dir: cfg.ArchiveDir},
		},
		Config:  cfg,
		Block:   host.NewBlock(0x4000, cfg.OutputCapacity),
		builder: atom.NewObjectBuilder(u, 512),
	}
}

// Rolling is 4/4 at 120 BPM, rolling from the first downbeat.
func Rolling(rate float64) rhythm.Position {
	pos := rhythm.NewPosition(rate)
	pos.Speed = 1
	return pos
}

// Position returns a complete position update at frames.
func (h *Host) Position(frames int64, pos rhythm.Position) atom.Event {
	a, ok := rhythm.Atomize(h.builder, h.URIDs, pos)
	if !ok {
		panic("position does not fit the builder")
	}
	return atom.Event{Frames: frames, Atom: atom.Raw(a.Type, a.Body)}
}

// Update returns a sparse position update at frames.
func (h *Host) Update(frames int64, set func(b *atom.ObjectBuilder, u *atom.URIDs)) atom.Event {
	h.builder.Begin(h.URIDs.TimePosition)
	set(h.builder, h.URIDs)
	a, ok := h.builder.Atom()
	if !ok {
		panic("position does not fit the builder")
	}
	return atom.Event{Frames: frames, Atom: atom.Raw(a.Type, a.Body)}
}

// Speed returns an update that only changes the transport speed.
func (h *Host) Speed(frames int64, speed float32) atom.Event {
	return h.Update(frames, func(b *atom.ObjectBuilder, u *atom.URIDs) {
		b.Float(u.TimeSpeed, speed)
	})
}

// Note wraps a MIDI message into an event at frames.
func (h *Host) Note(frames int64, msg midi.Message) atom.Event {
	return atom.Event{Frames: frames, Atom: atom.Raw(h.URIDs.MidiEvent, msg)}
}

// Run drives m through one block.
func (h *Host) Run(t testing.TB, m host.Module, nsamples int64, events ...atom.Event) []atom.Event {
	out, err := h.Block.Run(m, nsamples, events...)
	require.NoError(t, err)
	return out
}

// MIDI is a MIDI message with the frame it was emitted at.
type MIDI struct {
	Frames  int64
	Message midi.Message
}

// MIDIEvents keeps the MIDI events of events.
func (h *Host) MIDIEvents(events []atom.Event) []MIDI {
	var out []MIDI
	for _, ev := range events {
		if ev.Atom.Type == h.URIDs.MidiEvent {
			out = append(out, MIDI{Frames: ev.Frames, Message: midi.Message(ev.Atom.Body)})
		}
	}
	return out
}
