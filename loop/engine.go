package loop

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/timeline"
	"github.com/robmorgan/orbit/utils"
)

// Mode selects what a pass through the loop does with played and incoming
// material.
type Mode int

const (
	// ModePlay repeats the recorded loop.
	ModePlay Mode = iota
	// ModeRecord records a new loop without playing anything back.
	ModeRecord
	// ModeReplace plays the loop while a new pass replaces it.
	ModeReplace
	// ModeOverdub plays the loop and layers new input on top of it.
	ModeOverdub
	// ModeSubstitute replaces the material inside the region only.
	ModeSubstitute
)

var modeNames = []string{"play", "record", "replace", "overdub", "substitute"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a mode name into a Mode.
func ParseMode(name string) (Mode, error) {
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return ModePlay, fmt.Errorf("unknown loop mode %q", name)
}

func (m Mode) plays() bool {
	return m != ModeRecord
}

func (m Mode) records() bool {
	return m != ModePlay
}

// Punch is the musical unit a window width is measured in.
type Punch int

const (
	PunchBeat Punch = iota
	PunchBar
)

// Engine is a loop over two timeline buffers. One of them plays back while
// the other records; swapping flips their roles without copying.
type Engine struct {
	arena  [2]*timeline.Buffer
	play   int
	cursor timeline.Cursor

	mode    Mode
	rolling bool
	mute    bool
	dirty   bool

	offset int64
	last   int64

	punch         Punch
	width         int64
	window        int64
	framesPerBeat float64
	framesPerBar  float64

	regionStart int64
	regionEnd   int64

	// span of the input recorded by the running pass and by the last pass
	// that recorded any
	passInput bool
	passFrom  int64
	passTo    int64
	inputFrom int64
	inputTo   int64

	dropped int
}

// New allocates both buffers with capacity bytes each.
func New(capacity int, unit atom.Unit) *Engine {
	e := &Engine{
		arena: [2]*timeline.Buffer{
			timeline.New(capacity, unit),
			timeline.New(capacity, unit),
		},
	}
	e.cursor = e.playBuffer().Reposition(0)
	return e
}

func (e *Engine) playBuffer() *timeline.Buffer {
	return e.arena[e.play]
}

func (e *Engine) recordBuffer() *timeline.Buffer {
	return e.arena[e.play^1]
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// SetMode changes what the running pass does from now on.
func (e *Engine) SetMode(m Mode) {
	e.mode = m
}

func (e *Engine) Rolling() bool {
	return e.rolling
}

func (e *Engine) SetRolling(rolling bool) {
	e.rolling = rolling
}

func (e *Engine) Muted() bool {
	return e.mute
}

// SetMute silences playback; material is still carried and recorded.
func (e *Engine) SetMute(mute bool) {
	e.mute = mute
}

// Offset is the current position inside the loop in frames.
func (e *Engine) Offset() int64 {
	return e.offset
}

// Length is the loop length in frames, 0 while a recording is still open
// ended.
func (e *Engine) Length() int64 {
	if e.window > 0 {
		return e.window
	}
	if e.rolling && e.mode == ModeRecord {
		return 0
	}
	return e.last
}

// Start begins a new pass at the loop start. A pass that recorded anything
// becomes the loop that is played back.
func (e *Engine) Start(m Mode) {
	e.mode = m
	e.offset = 0
	if e.dirty {
		e.Swap()
	} else {
		e.cursor = e.playBuffer().Reposition(0)
		e.recordBuffer().Clear()
		e.passInput = false
	}
	e.rolling = true
}

// Stop halts the loop in place. An open ended recording ends here.
func (e *Engine) Stop() {
	if e.dirty && e.window == 0 && (e.mode == ModeRecord || e.offset > e.last) {
		e.last = e.offset
	}
	e.rolling = false
}

// Swap flips the buffer roles at the current offset.
func (e *Engine) Swap() {
	e.play ^= 1
	at := e.stamp(e.offset)
	e.cursor = e.playBuffer().Reposition(at)
	e.recordBuffer().Truncate(at)
	e.dirty = false
	if e.passInput {
		e.inputFrom, e.inputTo = e.passFrom, e.passTo
		e.passInput = false
	}
}

// Seek relocates the loop to offset, wrapped into the loop length. Seeking
// to the current offset keeps what was recorded there.
func (e *Engine) Seek(offset int64) {
	if n := e.Length(); n > 0 {
		offset = utils.Mod(offset, n)
	} else {
		offset = utils.Max(offset, 0)
	}
	if offset == e.offset {
		return
	}
	e.offset = offset
	at := e.stamp(offset)
	e.cursor = e.playBuffer().Reposition(at)
	e.recordBuffer().Truncate(at)
}

// SetWindow sets the loop length to width beats or bars. A width of 0
// leaves the length to the recorded material.
func (e *Engine) SetWindow(punch Punch, width int64) {
	e.punch = punch
	e.width = width
	e.refreshWindow()
}

// SetTempo updates the beat and bar lengths the window is derived from.
func (e *Engine) SetTempo(framesPerBeat, framesPerBar float64) {
	e.framesPerBeat = framesPerBeat
	e.framesPerBar = framesPerBar
	e.refreshWindow()
}

func (e *Engine) refreshWindow() {
	unit := e.framesPerBeat
	if e.punch == PunchBar {
		unit = e.framesPerBar
	}
	e.window = 0
	if e.width > 0 && unit > 0 {
		e.window = int64(math.Round(float64(e.width) * unit))
	}
}

// Punch returns the unit and width the window is derived from.
func (e *Engine) Punch() (Punch, int64) {
	return e.punch, e.width
}

// Window is the current window length in frames.
func (e *Engine) Window() int64 {
	return e.window
}

// SetRegion limits substitution to [start, end). An empty region covers the
// whole loop.
func (e *Engine) SetRegion(start, end int64) {
	e.regionStart = start
	e.regionEnd = end
}

// Region returns the substitution region.
func (e *Engine) Region() (int64, int64) {
	return e.regionStart, e.regionEnd
}

// LastInput is the span [from, to) of the input recorded by the last pass
// that became the played loop. It is empty before anything was recorded.
func (e *Engine) LastInput() (int64, int64) {
	return e.inputFrom, e.inputTo
}

func (e *Engine) inRegion(offset int64) bool {
	if e.regionEnd <= e.regionStart {
		return true
	}
	return offset >= e.regionStart && offset < e.regionEnd
}

// carries reports whether played material at offset survives into the
// next pass.
func (e *Engine) carries(offset int64) bool {
	switch e.mode {
	case ModeOverdub:
		return true
	case ModeSubstitute:
		return !e.inRegion(offset)
	}
	return false
}

// Record stores ev at the current loop offset. It reports false when the
// loop is not recording or the record buffer is full.
func (e *Engine) Record(ev atom.Event) bool {
	if !e.rolling || !e.mode.records() {
		return false
	}
	if e.mode == ModeSubstitute && !e.inRegion(e.offset) {
		return false
	}

	ev.Frames = e.offset
	ev.Beats = e.stamp(e.offset)
	if !e.recordBuffer().Append(ev) {
		e.dropped++
		return false
	}
	if !e.passInput {
		e.passInput = true
		e.passFrom = e.offset
	}
	e.passTo = e.offset + 1
	e.dirty = true
	return true
}

// Advance moves the loop over the block frames [from, to), writing due
// playback events to out and wrapping at the loop length.
func (e *Engine) Advance(out *atom.Forge, from, to int64) {
	if !e.rolling {
		return
	}
	for from < to {
		n := to - from
		length := e.Length()
		if length > 0 && e.offset+n >= length {
			step := utils.Max(length-e.offset, 0)
			e.offset += step
			from += step
			e.emit(out, from)
			e.wrap()
			continue
		}
		e.offset += n
		from = to
		e.emit(out, to)
	}
}

func (e *Engine) wrap() {
	e.offset = 0
	if e.mode.records() {
		e.Swap()
		return
	}
	e.cursor = e.playBuffer().Reposition(0)
}

// emit plays every event stamped before the current offset. at is the block
// frame that corresponds to the current offset.
func (e *Engine) emit(out *atom.Forge, at int64) {
	play := e.playBuffer()
	rec := e.recordBuffer()
	for e.cursor != timeline.NilCursor {
		ev := play.Event(e.cursor)
		ts := e.frames(play, e.cursor)
		if ts >= e.offset {
			break
		}

		if e.carries(ts) {
			if rec.Append(ev) {
				e.dirty = true
			} else {
				e.dropped++
			}
		}
		if out != nil && !e.mute && e.mode.plays() {
			ev.Frames = at - (e.offset - ts)
			if ev.Frames < 0 {
				ev.Frames = 0
			}
			out.Write(ev)
		}
		e.cursor = play.Next(e.cursor)
	}
}

// stamp converts a loop offset into the buffers' time unit.
func (e *Engine) stamp(offset int64) float64 {
	if e.playBuffer().Unit() == atom.UnitBeats {
		if e.framesPerBeat <= 0 {
			return 0
		}
		return float64(offset) / e.framesPerBeat
	}
	return float64(offset)
}

// frames converts the time stamp at c into a loop offset.
func (e *Engine) frames(b *timeline.Buffer, c timeline.Cursor) int64 {
	t := b.Time(c)
	if b.Unit() == atom.UnitBeats {
		return int64(math.Round(t * e.framesPerBeat))
	}
	return int64(t)
}

// PlayUsed is the filled share of the play buffer in percent.
func (e *Engine) PlayUsed() float64 {
	return e.playBuffer().Used()
}

// RecordUsed is the filled share of the record buffer in percent.
func (e *Engine) RecordUsed() float64 {
	return e.recordBuffer().Used()
}

// Position is the offset as a percentage of the loop length.
func (e *Engine) Position() float64 {
	return utils.Percent(e.offset, e.Length())
}

// Dropped counts events lost to a full record buffer.
func (e *Engine) Dropped() int {
	return e.dropped
}

// PlayBuffer exposes the buffer currently played back.
func (e *Engine) PlayBuffer() *timeline.Buffer {
	return e.playBuffer()
}

// RecordBuffer exposes the buffer currently recorded into.
func (e *Engine) RecordBuffer() *timeline.Buffer {
	return e.recordBuffer()
}

type engineState struct {
	Play    int
	Mode    Mode
	Punch   Punch
	Width   int64
	Last    int64
	Offset  int64
	Mute    bool
	Buffers [2][]byte
}

// Serialize captures both buffers, the role bit and the loop configuration.
func (e *Engine) Serialize() ([]byte, error) {
	state := engineState{
		Play:   e.play,
		Mode:   e.mode,
		Punch:  e.punch,
		Width:  e.width,
		Last:   e.last,
		Offset: e.offset,
		Mute:   e.mute,
	}
	for i, b := range e.arena {
		state.Buffers[i] = b.Serialize()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "encoding loop state")
	}
	return buf.Bytes(), nil
}

// Restore loads a blob produced by Serialize. On error the engine is left
// as it was.
func (e *Engine) Restore(blob []byte) error {
	var state engineState
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&state); err != nil {
		return errors.WithStackTraceAndPrefix(err, "decoding loop state")
	}
	if state.Play != 0 && state.Play != 1 {
		return errors.WithStackTrace(fmt.Errorf("invalid loop role %d", state.Play))
	}

	for i, b := range e.arena {
		if err := b.Check(state.Buffers[i]); err != nil {
			return err
		}
	}
	for i := range e.arena {
		if err := e.arena[i].Restore(state.Buffers[i]); err != nil {
			return err
		}
	}

	e.play = state.Play
	e.mode = state.Mode
	e.mute = state.Mute
	e.last = state.Last
	e.dirty = false
	e.SetWindow(state.Punch, state.Width)

	e.offset = state.Offset
	if n := e.Length(); n > 0 {
		e.offset = utils.Mod(e.offset, n)
	}
	e.cursor = e.playBuffer().Reposition(e.stamp(e.offset))
	return nil
}
