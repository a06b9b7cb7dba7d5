package loop

import (
	"testing"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/timeline"
	"github.com/stretchr/testify/require"
)

const noteType atom.URID = 3

func note(key byte) atom.Event {
	return atom.Event{Atom: atom.Atom{Type: noteType, Body: []byte{0x90, key, 0x7f}}}
}

func stamps(b *timeline.Buffer) []float64 {
	var out []float64
	it := b.IterateFrom(b.Begin())
	for it.Next() {
		out = append(out, b.Time(it.Cursor()))
	}
	return out
}

func outFrames(seq *atom.Sequence) []int64 {
	var out []int64
	for c := seq.Begin(); !seq.IsEnd(c); c = seq.Next(c) {
		out = append(out, seq.Event(c).Frames)
	}
	return out
}

func newOutput() (*atom.Sequence, *atom.Forge) {
	seq := atom.NewSequence(4096, atom.UnitFrames)
	return seq, atom.NewForge(seq)
}

// recordPass records notes at the given offsets and stops at end.
func recordPass(t *testing.T, e *Engine, end int64, offsets ...int64) {
	e.Start(ModeRecord)
	var at int64
	for _, o := range offsets {
		e.Advance(nil, at, o)
		at = o
		require.True(t, e.Record(note(byte(o))))
	}
	e.Advance(nil, at, end)
	e.Stop()
}

func TestSwapInvariant(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	for _, s := range []int64{5, 100} {
		ev := note(0)
		ev.Frames = s
		e.PlayBuffer().Append(ev)
	}
	for _, s := range []int64{10, 50, 200} {
		ev := note(0)
		ev.Frames = s
		e.RecordBuffer().Append(ev)
	}

	e.offset = 60
	e.Swap()

	require.Equal(t, []float64{5}, stamps(e.RecordBuffer()))
	require.Equal(t, []float64{10, 50, 200}, stamps(e.PlayBuffer()))
	require.Equal(t, 200.0, e.PlayBuffer().Time(e.cursor))
}

func TestSwapWithNothingAhead(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	ev := note(0)
	ev.Frames = 10
	e.RecordBuffer().Append(ev)

	e.offset = 60
	e.Swap()
	require.Equal(t, timeline.NilCursor, e.cursor)
}

func TestRecordThenPlay(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 1000, 100, 300)

	out, forge := newOutput()
	e.Start(ModePlay)
	require.Equal(t, int64(1000), e.Length())
	require.Equal(t, []float64{100, 300}, stamps(e.PlayBuffer()))

	e.Advance(forge, 0, 512)
	require.Equal(t, []int64{100, 300}, outFrames(out))

	forge.Reset(out)
	e.Advance(forge, 0, 512)
	require.Empty(t, outFrames(out))
	require.Equal(t, int64(24), e.Offset())

	forge.Reset(out)
	e.Advance(forge, 0, 512)
	require.Equal(t, []int64{76, 276}, outFrames(out))
}

func TestStartWithoutRecordingRewinds(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 400, 100)
	e.Start(ModePlay)

	out, forge := newOutput()
	e.Advance(forge, 0, 200)
	require.Equal(t, []int64{100}, outFrames(out))
	e.Stop()

	e.Start(ModePlay)
	require.Equal(t, int64(0), e.Offset())
	forge.Reset(out)
	e.Advance(forge, 0, 200)
	require.Equal(t, []int64{100}, outFrames(out))
}

func TestOverdubCarries(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 200, 100)

	out, forge := newOutput()
	e.Start(ModeOverdub)
	e.Advance(forge, 0, 150)
	require.Equal(t, []int64{100}, outFrames(out))
	require.True(t, e.Record(note(1)))

	e.Advance(nil, 150, 200)
	require.Equal(t, int64(0), e.Offset())
	require.Equal(t, []float64{100, 150}, stamps(e.PlayBuffer()))
	require.Empty(t, stamps(e.RecordBuffer()))
}

func TestReplaceDropsPlayedMaterial(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 200, 100)

	e.Start(ModeReplace)
	e.Advance(nil, 0, 150)
	require.True(t, e.Record(note(1)))
	e.Advance(nil, 150, 200)

	require.Equal(t, []float64{150}, stamps(e.PlayBuffer()))
}

func TestStoppedRecordingKeepsLength(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	e.Start(ModeRecord)
	e.Advance(nil, 0, 40)
	require.Equal(t, int64(0), e.Length())
	require.True(t, e.Record(note(1)))
	e.Advance(nil, 40, 120)

	e.Stop()
	require.Equal(t, ModeRecord, e.Mode())
	require.Equal(t, int64(120), e.Length())
	require.Equal(t, float64(100), e.Position())

	e.Start(ModePlay)
	from, to := e.LastInput()
	require.Equal(t, int64(40), from)
	require.Equal(t, int64(41), to)
}

func TestSubstituteRegion(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 200, 100, 150)

	e.Start(ModeSubstitute)
	e.SetRegion(120, 180)

	out, forge := newOutput()
	e.Advance(forge, 0, 160)
	require.Equal(t, []int64{100, 150}, outFrames(out))
	require.True(t, e.Record(note(2)))

	e.Advance(nil, 160, 190)
	require.False(t, e.Record(note(3)))

	e.Advance(nil, 190, 200)
	require.Equal(t, []float64{100, 160}, stamps(e.PlayBuffer()))
}

func TestBeatWindowWraps(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitBeats)
	e.SetTempo(24000, 96000)
	e.SetWindow(PunchBeat, 1)
	require.Equal(t, int64(24000), e.Window())

	e.SetMode(ModeReplace)
	e.SetRolling(true)
	require.True(t, e.Record(note(0)))
	e.Advance(nil, 0, 12000)
	require.True(t, e.Record(note(1)))

	out, forge := newOutput()
	e.Advance(forge, 12000, 30000)
	require.Equal(t, []float64{0, 0.5}, stamps(e.PlayBuffer()))
	require.Equal(t, []int64{24000}, outFrames(out))
	require.Equal(t, int64(6000), e.Offset())
	require.InDelta(t, 25.0, e.Position(), 1e-9)
}

func TestTempoRecomputesWindow(t *testing.T) {
	t.Parallel()

	e := New(256, atom.UnitBeats)
	e.SetTempo(24000, 96000)
	e.SetWindow(PunchBar, 2)
	require.Equal(t, int64(192000), e.Window())

	e.SetTempo(12000, 48000)
	require.Equal(t, int64(96000), e.Window())

	punch, width := e.Punch()
	require.Equal(t, PunchBar, punch)
	require.Equal(t, int64(2), width)

	e.SetWindow(PunchBar, 0)
	require.Equal(t, int64(0), e.Window())
}

func TestSeekWrapsAndTruncates(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	e.SetTempo(1000, 4000)
	e.SetWindow(PunchBar, 1)
	e.SetMode(ModeReplace)
	e.SetRolling(true)

	for _, at := range []int64{100, 2000, 3000} {
		e.Advance(nil, e.Offset(), at)
		require.True(t, e.Record(note(0)))
	}

	e.Seek(6500)
	require.Equal(t, int64(2500), e.Offset())
	require.Equal(t, []float64{100, 2000}, stamps(e.RecordBuffer()))

	e.Seek(-500)
	require.Equal(t, int64(3500), e.Offset())
}

func TestRecordOverflowIsCounted(t *testing.T) {
	t.Parallel()

	e := New(24, atom.UnitFrames)
	e.Start(ModeRecord)
	require.True(t, e.Record(note(0)))
	require.False(t, e.Record(note(1)))
	require.Equal(t, 1, e.Dropped())
	require.Equal(t, 100.0, e.RecordUsed())
}

func TestIdleEngineDoesNothing(t *testing.T) {
	t.Parallel()

	e := New(256, atom.UnitFrames)
	require.False(t, e.Record(note(0)))

	e.Start(ModePlay)
	require.False(t, e.Record(note(0)))

	e.Stop()
	e.Advance(nil, 0, 100)
	require.Equal(t, int64(0), e.Offset())
}

func TestMuteKeepsCarrying(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 200, 50)

	out, forge := newOutput()
	e.Start(ModeOverdub)
	e.SetMute(true)
	e.Advance(forge, 0, 200)
	require.Empty(t, outFrames(out))
	require.Equal(t, []float64{50}, stamps(e.PlayBuffer()))
}

func TestSerializeRestore(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 500, 10, 20)
	e.Start(ModeOverdub)
	e.Advance(nil, 0, 15)
	e.SetMute(true)

	blob, err := e.Serialize()
	require.NoError(t, err)

	restored := New(1024, atom.UnitFrames)
	require.NoError(t, restored.Restore(blob))
	require.Equal(t, ModeOverdub, restored.Mode())
	require.True(t, restored.Muted())
	require.Equal(t, int64(15), restored.Offset())
	require.Equal(t, int64(500), restored.Length())
	require.Equal(t, stamps(e.PlayBuffer()), stamps(restored.PlayBuffer()))
	require.Equal(t, stamps(e.RecordBuffer()), stamps(restored.RecordBuffer()))
	require.Equal(t, 20.0, restored.PlayBuffer().Time(restored.cursor))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	t.Parallel()

	e := New(1024, atom.UnitFrames)
	recordPass(t, e, 500, 10)

	require.Error(t, e.Restore([]byte("garbage")))
	require.Equal(t, []float64{10}, stamps(e.RecordBuffer()))

	small := New(8, atom.UnitFrames)
	blob, err := e.Serialize()
	require.NoError(t, err)
	require.Error(t, small.Restore(blob))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, m := range []Mode{ModePlay, ModeRecord, ModeReplace, ModeOverdub, ModeSubstitute} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	_, err := ParseMode("scratch")
	require.Error(t, err)
}
