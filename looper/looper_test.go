package looper

import (
	"testing"

	"github.com/robmorgan/orbit/loop"
	"github.com/robmorgan/orbit/orbittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

func newTestLooper(t *testing.T) (*orbittest.Host, *Looper) {
	h := orbittest.NewHost(t)
	l, err := New(h.Config, h.Features)
	require.NoError(t, err)
	l.Activate()
	return h, l
}

// recordTwoNotes records a loop of 2000 frames with notes at 100 and 1500.
func recordTwoNotes(t *testing.T, h *orbittest.Host, l *Looper) (midi.Message, midi.Message) {
	a := midi.NoteOn(0, 60, 100)
	b := midi.NoteOn(0, 64, 100)

	l.Controls = Controls{Mode: loop.ModeRecord, Rolling: true}
	require.Empty(t, h.Run(t, l, 1000, h.Note(100, a)))
	require.Empty(t, h.Run(t, l, 1000, h.Note(500, b)))

	l.Controls.Rolling = false
	h.Run(t, l, 1000)
	require.Equal(t, int64(2000), l.Engine().Length())
	return a, b
}

func TestRecordThenPlay(t *testing.T) {
	t.Parallel()

	h, l := newTestLooper(t)
	a, b := recordTwoNotes(t, h, l)

	l.Controls = Controls{Mode: loop.ModePlay, Rolling: true}
	out := h.MIDIEvents(h.Run(t, l, 1000))
	require.Equal(t, []orbittest.MIDI{{Frames: 100, Message: a}}, out)
	assert.Equal(t, float64(50), l.Status()["position"])

	out = h.MIDIEvents(h.Run(t, l, 1000))
	require.Equal(t, []orbittest.MIDI{{Frames: 500, Message: b}}, out)

	// the loop repeats
	out = h.MIDIEvents(h.Run(t, l, 1000))
	require.Equal(t, []orbittest.MIDI{{Frames: 100, Message: a}}, out)
}

func TestPausedLoopIsSilent(t *testing.T) {
	t.Parallel()

	h, l := newTestLooper(t)
	recordTwoNotes(t, h, l)

	require.Empty(t, h.Run(t, l, 5000))
	require.Equal(t, float64(0), l.Status()["position"])
}

func TestSaveRestore(t *testing.T) {
	t.Parallel()

	h, l := newTestLooper(t)
	a, _ := recordTwoNotes(t, h, l)
	l.Controls.Mode = loop.ModePlay
	l.Controls.Rolling = true
	h.Run(t, l, 10)

	blob, err := l.Save()
	require.NoError(t, err)

	h2, l2 := newTestLooper(t)
	require.NoError(t, l2.Restore(blob))
	require.Equal(t, loop.ModePlay, l2.Controls.Mode)
	require.Equal(t, int64(2000), l2.Engine().Length())

	l2.Controls.Rolling = true
	out := h2.MIDIEvents(h2.Run(t, l2, 1000))
	require.Equal(t, []orbittest.MIDI{{Frames: 100, Message: a}}, out)

	require.Error(t, l2.Restore([]byte("garbage")))
}

func TestSubstituteRerecordsLastInput(t *testing.T) {
	t.Parallel()

	h, l := newTestLooper(t)
	a, b := recordTwoNotes(t, h, l)

	c := midi.NoteOn(0, 67, 100)
	d := midi.NoteOn(0, 69, 100)
	l.Controls = Controls{Mode: loop.ModeOverdub, Rolling: true}
	h.Run(t, l, 1000)
	h.Run(t, l, 1000, h.Note(200, c), h.Note(800, d))
	from, to := l.Engine().LastInput()
	require.Equal(t, int64(1200), from)
	require.Equal(t, int64(1801), to)

	l.Controls.Rolling = false
	h.Run(t, l, 1000)

	e := midi.NoteOn(0, 71, 100)
	f := midi.NoteOn(0, 72, 100)
	l.Controls = Controls{Mode: loop.ModeSubstitute, Rolling: true}
	out := h.MIDIEvents(h.Run(t, l, 1000))
	require.Equal(t, []orbittest.MIDI{{Frames: 100, Message: a}}, out)
	start, end := l.Engine().Region()
	require.Equal(t, int64(1200), start)
	require.Equal(t, int64(1801), end)

	out = h.MIDIEvents(h.Run(t, l, 1000, h.Note(300, e), h.Note(900, f)))
	require.Equal(t, []orbittest.MIDI{
		{Frames: 200, Message: c},
		{Frames: 500, Message: b},
		{Frames: 800, Message: d},
	}, out)
	require.Equal(t, int64(2000), l.Engine().Length())

	out = h.MIDIEvents(h.Run(t, l, 2000))
	require.Equal(t, []orbittest.MIDI{{Frames: 100, Message: a}, {Frames: 1300, Message: e}}, out)
}

func TestStatusReportsCapacity(t *testing.T) {
	t.Parallel()

	h, l := newTestLooper(t)
	l.Controls = Controls{Mode: loop.ModeRecord, Rolling: true}
	h.Run(t, l, 100, h.Note(0, midi.NoteOn(0, 60, 100)))

	status := l.Status()
	assert.Greater(t, status["record_capacity"], 0.0)
	assert.Equal(t, 0.0, status["play_capacity"])
	assert.Equal(t, 100.0, status["position"])
}

func TestParams(t *testing.T) {
	t.Parallel()

	_, l := newTestLooper(t)
	require.NoError(t, l.SetParam("mode", 3))
	require.Equal(t, loop.ModeOverdub, l.Controls.Mode)
	require.NoError(t, l.SetParam("state", 1))
	require.True(t, l.Controls.Rolling)
	require.Error(t, l.SetParam("mode", 9))
	require.Error(t, l.SetParam("speed", 1))
}
