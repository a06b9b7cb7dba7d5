package timecapsule

import (
	"io"
	"testing"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/orbittest"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
)

var (
	first  = midi.NoteOn(0, 60, 100)
	second = midi.NoteOff(0, 60)
)

func newTestTimecapsule(t *testing.T) (*orbittest.Host, *Timecapsule) {
	h := orbittest.NewHost(t)
	tc, err := New(h.Config, h.Features)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, tc.Close()) })
	return h, tc
}

// recordTwoNotes records notes a quarter and a half beat into the
// transport, then stops and rewinds it.
func recordTwoNotes(t *testing.T, h *orbittest.Host, tc *Timecapsule) {
	tc.Controls.Record = true
	tc.Activate()

	out := h.Run(t, tc, 30000,
		h.Position(0, orbittest.Rolling(48000)),
		h.Note(6000, first),
		h.Note(12000, second),
	)
	require.Empty(t, out)
	require.Equal(t, 3, h.Scheduler.WorkAll())

	tc.Controls.Record = false
	h.Run(t, tc, 512, h.Position(0, rhythm.NewPosition(48000)))
	h.Scheduler.WorkAll()
}

func TestRecordWritesArchive(t *testing.T) {
	t.Parallel()

	h, tc := newTestTimecapsule(t)
	recordTwoNotes(t, h, tc)

	r, err := Open(tc.Path())
	require.NoError(t, err)
	defer r.Close()

	var beats []float64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, atom.URIMidiEvent, rec.URI)
		beats = append(beats, rec.Beats)
	}
	require.Equal(t, []float64{0.25, 0.5}, beats)
}

func TestPlaybackFollowsTransport(t *testing.T) {
	t.Parallel()

	h, tc := newTestTimecapsule(t)
	recordTwoNotes(t, h, tc)

	// starting the transport repositions playback to its beat
	require.Empty(t, h.Run(t, tc, 1000, h.Position(0, orbittest.Rolling(48000))))
	h.Scheduler.WorkAll()

	out := h.MIDIEvents(h.Run(t, tc, 30000))
	require.Equal(t, []orbittest.MIDI{
		{Frames: 5000, Message: first},
		{Frames: 11000, Message: second},
	}, out)
	assert.Equal(t, float64(0), tc.Status()["draining"])
}

func TestMuteSilencesPlayback(t *testing.T) {
	t.Parallel()

	h, tc := newTestTimecapsule(t)
	recordTwoNotes(t, h, tc)

	require.NoError(t, tc.SetParam("mute", 1))
	h.Run(t, tc, 1000, h.Position(0, orbittest.Rolling(48000)))
	h.Scheduler.WorkAll()
	require.Empty(t, h.Run(t, tc, 30000))
}

func TestRepositionDiscardsStaleResults(t *testing.T) {
	t.Parallel()

	h, tc := newTestTimecapsule(t)
	recordTwoNotes(t, h, tc)

	h.Run(t, tc, 1000, h.Position(0, orbittest.Rolling(48000)))
	h.Scheduler.WorkAll()
	gen := tc.Status()["generation"]

	// the transport restarts before the queued results were played
	h.Run(t, tc, 100, h.Position(0, rhythm.NewPosition(48000)))
	h.Run(t, tc, 100, h.Position(0, orbittest.Rolling(48000)))
	require.Greater(t, tc.Status()["generation"], gen)
	require.Equal(t, float64(1), tc.Status()["draining"])

	// nothing from the old generation leaks out while draining
	require.Empty(t, h.Run(t, tc, 30000))

	h.Scheduler.WorkAll()
	out := h.MIDIEvents(h.Run(t, tc, 30000))
	require.Len(t, out, 2)
	require.Equal(t, float64(0), tc.Status()["draining"])
}

func TestRequiresFeatures(t *testing.T) {
	t.Parallel()

	h := orbittest.NewHost(t)

	f := h.Features
	f.Schedule = nil
	_, err := New(h.Config, f)
	require.Error(t, err)

	f = h.Features
	f.Unmap = nil
	_, err = New(h.Config, f)
	require.Error(t, err)

	f = h.Features
	f.MakePath = nil
	m, err := Descriptor().New(h.Config, f)
	require.Error(t, err)
	require.Nil(t, m)
}

func TestParams(t *testing.T) {
	t.Parallel()

	_, tc := newTestTimecapsule(t)
	require.NoError(t, tc.SetParam("record", 1))
	require.True(t, tc.Controls.Record)
	require.Error(t, tc.SetParam("loop", 1))
	require.Equal(t, []string{"mute", "record"}, tc.Params())
}
