// Package beatbox emits a MIDI note on every beat and every bar of the host
// transport.
package beatbox

import (
	"fmt"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#beatbox"

// Controls are the beatbox inputs, sampled once per block.
type Controls struct {
	BarEnabled  bool
	BarNote     uint8
	BarChannel  uint8
	BeatEnabled bool
	BeatNote    uint8
	BeatChannel uint8
}

// DefaultControls plays a kick on every bar and a snare on the other beats
// on the drum channel.
func DefaultControls() Controls {
	return Controls{
		BarEnabled:  true,
		BarNote:     36,
		BarChannel:  9,
		BeatEnabled: true,
		BeatNote:    38,
		BeatChannel: 9,
	}
}

type voice struct {
	on       midi.Message
	off      midi.Message
	sounding bool
}

type Beatbox struct {
	urids   *atom.URIDs
	tracker *rhythm.Tracker
	forge   atom.Forge
	log     *logrus.Entry
	trace   bool

	// Controls is read at the start of every block.
	Controls Controls
	applied  Controls

	bar  voice
	beat voice
}

// Descriptor registers the beatbox with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "beatbox",
		URI:         URI,
		Description: "MIDI note on every beat and bar",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			b, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Beatbox, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}

	b := &Beatbox{
		log:      f.Logger(),
		trace:    f.Tracing(),
		Controls: DefaultControls(),
	}
	b.tracker, err = rhythm.New(mapper, cfg.SampleRate, rhythm.MaskSpeed|rhythm.MaskBarBeatWhole|rhythm.MaskBarWhole, b.handle)
	if err != nil {
		return nil, err
	}
	b.urids = b.tracker.URIDs()
	b.applied = b.Controls
	b.rebuild()

	return b, nil
}

func (b *Beatbox) Activate() {
	b.log.WithField("controls", fmt.Sprintf("%+v", b.Controls)).Debug("Beatbox activated")
}

func (b *Beatbox) Deactivate() {}

func (b *Beatbox) Close() error {
	return nil
}

func (b *Beatbox) Run(in, out *atom.Sequence, nsamples int64) {
	b.forge.Reset(out)

	if b.Controls != b.applied {
		b.release(0, &b.bar)
		b.release(0, &b.beat)
		b.applied = b.Controls
		b.rebuild()
	}

	var last int64
	for c := in.Begin(); !in.IsEnd(c); c = in.Next(c) {
		ev := in.Event(c)
		b.tracker.Advance(&ev.Atom, last, ev.Frames)
		last = ev.Frames
	}
	b.tracker.Advance(nil, last, nsamples)

	if !b.forge.Finish() && b.trace {
		b.log.Trace("Beatbox output overflow")
	}
}

func (b *Beatbox) handle(t *rhythm.Tracker, frames int64, field rhythm.Field) {
	switch field {
	case rhythm.FieldSpeed:
		if !t.IsRolling() {
			b.release(frames, &b.bar)
			b.release(frames, &b.beat)
		}
	case rhythm.FieldBarBeat:
		if !t.IsRolling() {
			return
		}
		b.release(frames, &b.beat)
		if b.applied.BeatEnabled && !(b.applied.BarEnabled && t.IsDownBeat()) {
			b.strike(frames, &b.beat)
		}
	case rhythm.FieldBar:
		if !t.IsRolling() {
			return
		}
		b.release(frames, &b.bar)
		if b.applied.BarEnabled {
			b.strike(frames, &b.bar)
		}
	}
}

func (b *Beatbox) strike(frames int64, v *voice) {
	b.forge.WriteAtom(frames, atom.Atom{Type: b.urids.MidiEvent, Body: v.on})
	v.sounding = true
}

func (b *Beatbox) release(frames int64, v *voice) {
	if !v.sounding {
		return
	}
	b.forge.WriteAtom(frames, atom.Atom{Type: b.urids.MidiEvent, Body: v.off})
	v.sounding = false
}

// rebuild prepares the note messages so the processing path never builds
// them.
func (b *Beatbox) rebuild() {
	c := b.applied
	b.bar.on = midi.NoteOn(c.BarChannel&0x0f, c.BarNote&0x7f, 0x7f)
	b.bar.off = midi.NoteOff(c.BarChannel&0x0f, c.BarNote&0x7f)
	b.beat.on = midi.NoteOn(c.BeatChannel&0x0f, c.BeatNote&0x7f, 0x7f)
	b.beat.off = midi.NoteOff(c.BeatChannel&0x0f, c.BeatNote&0x7f)
}

func (b *Beatbox) Params() []string {
	return []string{"bar_enabled", "bar_note", "bar_channel", "beat_enabled", "beat_note", "beat_channel"}
}

func (b *Beatbox) SetParam(name string, value float64) error {
	switch name {
	case "bar_enabled":
		b.Controls.BarEnabled = value != 0
	case "bar_note":
		b.Controls.BarNote = uint8(value)
	case "bar_channel":
		b.Controls.BarChannel = uint8(value)
	case "beat_enabled":
		b.Controls.BeatEnabled = value != 0
	case "beat_note":
		b.Controls.BeatNote = uint8(value)
	case "beat_channel":
		b.Controls.BeatChannel = uint8(value)
	default:
		return fmt.Errorf("beatbox has no parameter %q", name)
	}
	return nil
}

func (b *Beatbox) Status() map[string]float64 {
	return map[string]float64{
		"bar":      float64(b.tracker.GetBar()),
		"bar_beat": b.tracker.GetBarBeat(),
	}
}
