package rhythm

import (
	"errors"
	"fmt"
	"math"

	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/orbit/atom"
)

// Field identifies one tracked transport quantity. Fields are dispatched in
// declaration order; Speed always comes first so a stopping transport is
// seen before anything else the same message changes.
type Field uint8

const (
	FieldSpeed Field = iota
	FieldBeatUnit
	FieldBeatsPerBar
	FieldBeatsPerMinute
	FieldFrame
	FieldFramesPerSecond
	FieldBarBeat
	FieldBar
	numFields
)

var fieldNames = [numFields]string{
	"speed",
	"beat_unit",
	"beats_per_bar",
	"beats_per_minute",
	"frame",
	"frames_per_second",
	"bar_beat",
	"bar",
}

func (f Field) String() string {
	if f < numFields {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Mask returns the subscription bit of f.
func (f Field) Mask() Mask {
	return 1 << f
}

// Mask selects which fields a Handler is called for.
type Mask uint16

const (
	MaskSpeed Mask = 1 << iota
	MaskBeatUnit
	MaskBeatsPerBar
	MaskBeatsPerMinute
	MaskFrame
	MaskFramesPerSecond
	MaskBarBeat
	MaskBar

	// MaskBarBeatWhole delivers FieldBarBeat whenever a whole beat is reached.
	MaskBarBeatWhole
	// MaskBarWhole delivers FieldBar whenever a new bar starts.
	MaskBarWhole

	MaskTempo = MaskBeatUnit | MaskBeatsPerBar | MaskBeatsPerMinute | MaskFramesPerSecond
)

// Handler is invoked synchronously for every dispatched field. frames is the
// block offset at which the change takes effect.
type Handler func(t *Tracker, frames int64, field Field)

// ErrNilMapper is returned when a tracker is created without a URID mapper.
var ErrNilMapper = errors.New("rhythm: a URID mapper is required")

const queryBeat = int(numFields)

type mark struct {
	bar  int64
	beat int64
	ok   bool
}

// Tracker follows the host transport from sparse position updates and
// interpolates it between updates while rolling.
type Tracker struct {
	urids   *atom.URIDs
	mask    Mask
	handler Handler

	pos           Position
	framesPerBeat float64
	framesPerBar  float64

	// whole beats elapsed in the current bar and frames since the last one
	beatInBar  int64
	offsetBeat float64

	// last whole beat and bar handed to whole-beat subscribers
	lastBeat mark
	lastBar  mark

	query [numFields + 1]atom.QueryEntry
}

// New creates a tracker at the default position for the given sample rate.
func New(mapper atom.Mapper, rate float64, mask Mask, handler Handler) (*Tracker, error) {
	if mapper == nil {
		return nil, goerrors.WithStackTrace(ErrNilMapper)
	}

	u := atom.MapURIDs(mapper)
	t := &Tracker{
		urids:   u,
		mask:    mask,
		handler: handler,
		pos:     NewPosition(rate),
	}
	t.query[FieldSpeed].Key = u.TimeSpeed
	t.query[FieldBeatUnit].Key = u.TimeBeatUnit
	t.query[FieldBeatsPerBar].Key = u.TimeBeatsPerBar
	t.query[FieldBeatsPerMinute].Key = u.TimeBeatsPerMinute
	t.query[FieldFrame].Key = u.TimeFrame
	t.query[FieldFramesPerSecond].Key = u.TimeFramesPerSecond
	t.query[FieldBarBeat].Key = u.TimeBarBeat
	t.query[FieldBar].Key = u.TimeBar
	t.query[queryBeat].Key = u.TimeBeat
	t.refresh()

	return t, nil
}

func (t *Tracker) URIDs() *atom.URIDs {
	return t.urids
}

func (t *Tracker) Position() Position {
	return t.pos
}

func (t *Tracker) FramesPerBeat() float64 {
	return t.framesPerBeat
}

func (t *Tracker) FramesPerBar() float64 {
	return t.framesPerBar
}

// Beats is bar * beatsPerBar + barBeat.
func (t *Tracker) Beats() float64 {
	return t.pos.Beats()
}

// Advance moves the transport over [from, to) and then applies msg, if it is
// a position update, at frame to. It reports whether msg was consumed as a
// position update.
func (t *Tracker) Advance(msg *atom.Atom, from, to int64) bool {
	if t.pos.Rolling() && to > from {
		t.roll(from, to)
	}
	if msg == nil || !t.urids.IsObject(*msg, t.urids.TimePosition) {
		return false
	}
	t.update(*msg, to)
	return true
}

func (t *Tracker) roll(from, to int64) {
	at := from
	for at < to {
		if t.framesPerBeat <= 0 {
			t.step(to - at)
			return
		}
		missing := int64(math.Ceil(t.beatSpan() - t.offsetBeat))
		if missing <= 0 {
			t.crossBeat(at)
			continue
		}
		if at+missing >= to {
			// a crossing at exactly to belongs to whatever comes next
			t.step(to - at)
			return
		}
		t.step(missing)
		at += missing
		t.crossBeat(at)
	}
}

func (t *Tracker) step(n int64) {
	t.offsetBeat += float64(n)
	t.pos.Frame += n
	if t.framesPerBeat > 0 {
		t.pos.Beat += float64(n) / t.framesPerBeat
		t.pos.BarBeat = float64(t.beatInBar) + t.offsetBeat/t.framesPerBeat
	}
}

// beatSpan is the length in frames of the current beat. The last beat of a
// fractional meter ends early, at the bar line.
func (t *Tracker) beatSpan() float64 {
	rest := t.pos.BeatsPerBar - float64(t.beatInBar)
	if rest > 0 && rest < 1 {
		return rest * t.framesPerBeat
	}
	return t.framesPerBeat
}

func (t *Tracker) crossBeat(at int64) {
	t.offsetBeat -= t.beatSpan()
	if t.offsetBeat < 0 {
		t.offsetBeat = 0
	}
	t.beatInBar++

	bar := float64(t.beatInBar) >= t.pos.BeatsPerBar
	if bar {
		t.beatInBar = 0
		t.pos.Bar++
	}
	t.pos.BarBeat = float64(t.beatInBar)

	if t.mask&MaskBarBeatWhole != 0 {
		t.dispatchBeat(at)
	}
	if bar && t.mask&MaskBarWhole != 0 {
		t.dispatchBar(at)
	}
}

// dispatchBeat hands the current whole beat to subscribers unless it was
// already delivered.
func (t *Tracker) dispatchBeat(at int64) bool {
	m := mark{bar: t.pos.Bar, beat: t.beatInBar, ok: true}
	if m == t.lastBeat {
		return false
	}
	t.lastBeat = m
	t.dispatch(at, FieldBarBeat)
	return true
}

func (t *Tracker) dispatchBar(at int64) bool {
	m := mark{bar: t.pos.Bar, ok: true}
	if m == t.lastBar {
		return false
	}
	t.lastBar = m
	t.dispatch(at, FieldBar)
	return true
}

// settle fires crossings that became due exactly at the end of the last roll.
func (t *Tracker) settle(at int64) {
	if !t.pos.Rolling() {
		return
	}
	for t.framesPerBeat > 0 && t.offsetBeat >= t.beatSpan() {
		t.crossBeat(at)
	}
}

func (t *Tracker) update(msg atom.Atom, to int64) {
	t.settle(to)

	atom.Query(msg, t.query[:])
	prev := t.pos
	next := t.deatomize(prev)

	t.pos = next
	t.refresh()

	// starting, stopping and jumping back make every beat new again
	if prev.Rolling() != next.Rolling() || next.Beats() < prev.Beats()-0.5 {
		t.lastBeat = mark{}
		t.lastBar = mark{}
	}

	started := !prev.Rolling() && next.Rolling() && t.offsetBeat == 0
	for f := FieldSpeed; f < numFields; f++ {
		changed := fieldChanged(&prev, &next, f)

		switch f {
		case FieldBarBeat:
			if (changed || started) && t.mask&MaskBarBeatWhole != 0 && isWhole(next.BarBeat) {
				if t.dispatchBeat(to) {
					continue
				}
			}
			if changed && t.mask&MaskBarBeat != 0 {
				t.dispatch(to, f)
			}
		case FieldBar:
			if t.mask&MaskBarWhole != 0 && (changed || (started && t.beatInBar == 0)) {
				if t.dispatchBar(to) {
					continue
				}
			}
			if changed && t.mask&MaskBar != 0 {
				t.dispatch(to, f)
			}
		default:
			if changed && t.mask&f.Mask() != 0 {
				t.dispatch(to, f)
			}
		}
	}
}

// deatomize applies every well-typed field present in the last query to pos.
func (t *Tracker) deatomize(pos Position) Position {
	u := t.urids
	q := &t.query

	if v, ok := u.AsFloat(q[FieldSpeed].Value); ok {
		pos.Speed = float64(v)
	}
	if v, ok := u.AsInt(q[FieldBeatUnit].Value); ok && v >= 0 {
		pos.BeatUnit = uint32(v)
	}
	if v, ok := u.AsFloat(q[FieldBeatsPerBar].Value); ok {
		pos.BeatsPerBar = float64(v)
	}
	if v, ok := u.AsFloat(q[FieldBeatsPerMinute].Value); ok {
		pos.BeatsPerMinute = float64(v)
	}
	if v, ok := u.AsLong(q[FieldFrame].Value); ok {
		pos.Frame = v
	}
	if v, ok := u.AsFloat(q[FieldFramesPerSecond].Value); ok {
		pos.FramesPerSecond = float64(v)
	}

	barBeat, hasBarBeat := u.AsFloat(q[FieldBarBeat].Value)
	bar, hasBar := u.AsLong(q[FieldBar].Value)
	if hasBarBeat {
		prev := pos.BarBeat
		pos.BarBeat = float64(barBeat)
		// a bar beat that jumps back by more than half a bar without an
		// explicit bar is the start of the next bar
		if !hasBar && prev-pos.BarBeat >= pos.BeatsPerBar/2 {
			pos.Bar++
		}
	}
	if hasBar {
		pos.Bar = bar
	}

	if v, ok := u.AsDouble(q[queryBeat].Value); ok {
		pos.Beat = v
	} else if hasBarBeat || hasBar {
		pos.Beat = pos.Beats()
	}
	return pos
}

// refresh recomputes the derived durations and the beat offsets.
func (t *Tracker) refresh() {
	if t.pos.Valid() {
		t.framesPerBeat = t.pos.FramesPerBeat()
	}
	if t.pos.BeatsPerBar > 0 {
		t.framesPerBar = t.framesPerBeat * t.pos.BeatsPerBar
	}

	whole := math.Floor(t.pos.BarBeat)
	t.beatInBar = int64(whole)
	t.offsetBeat = (t.pos.BarBeat - whole) * t.framesPerBeat
	if isWhole(t.pos.BarBeat) {
		t.beatInBar = int64(math.Round(t.pos.BarBeat))
		t.offsetBeat = 0
	}
}

func (t *Tracker) dispatch(frames int64, f Field) {
	if t.handler != nil {
		t.handler(t, frames, f)
	}
}

func fieldChanged(a, b *Position, f Field) bool {
	switch f {
	case FieldSpeed:
		return a.Speed != b.Speed
	case FieldBeatUnit:
		return a.BeatUnit != b.BeatUnit
	case FieldBeatsPerBar:
		return a.BeatsPerBar != b.BeatsPerBar
	case FieldBeatsPerMinute:
		return a.BeatsPerMinute != b.BeatsPerMinute
	case FieldFrame:
		return a.Frame != b.Frame
	case FieldFramesPerSecond:
		return a.FramesPerSecond != b.FramesPerSecond
	case FieldBarBeat:
		return a.BarBeat != b.BarBeat
	case FieldBar:
		return a.Bar != b.Bar
	}
	return false
}
