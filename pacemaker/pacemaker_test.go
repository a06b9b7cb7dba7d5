package pacemaker

import (
	"testing"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/orbittest"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPacemaker(t *testing.T) (*orbittest.Host, *Pacemaker, *rhythm.Tracker) {
	h := orbittest.NewHost(t)
	p, err := New(h.Config, h.Features)
	require.NoError(t, err)
	tr, err := rhythm.New(h.Map, h.Config.SampleRate, 0, nil)
	require.NoError(t, err)
	return h, p, tr
}

// follow feeds the pacemaker output to tr the way a downstream module sees it.
func follow(tr *rhythm.Tracker, out []atom.Event, nsamples int64) {
	var last int64
	for _, ev := range out {
		ev := ev
		tr.Advance(&ev.Atom, last, ev.Frames)
		last = ev.Frames
	}
	tr.Advance(nil, last, nsamples)
}

func TestAnnouncesOnlyChanges(t *testing.T) {
	t.Parallel()

	h, p, tr := newTestPacemaker(t)

	out := h.Run(t, p, 512)
	require.Len(t, out, 1)
	require.Equal(t, int64(0), out[0].Frames)
	follow(tr, out, 512)
	assert.False(t, tr.IsRolling())
	assert.Equal(t, float64(120), tr.GetTempo())
	assert.Equal(t, float64(4), tr.GetBeatsPerBar())

	require.Empty(t, h.Run(t, p, 512))
}

func TestRollsAndCountsBars(t *testing.T) {
	t.Parallel()

	h, p, tr := newTestPacemaker(t)
	require.NoError(t, p.SetParam("rolling", 1))

	out := h.Run(t, p, 48000)
	require.Len(t, out, 1)
	follow(tr, out, 48000)
	require.True(t, tr.IsRolling())

	for i := 0; i < 3; i++ {
		require.Empty(t, h.Run(t, p, 48000))
		follow(tr, nil, 48000)
	}

	pos := p.Position()
	assert.Equal(t, int64(2), pos.Bar)
	assert.Equal(t, float64(0), pos.BarBeat)
	assert.Equal(t, int64(192000), pos.Frame)

	// the follower agrees up to the deferred crossing at the block end
	assert.Equal(t, int64(192000), tr.GetFrame())
	assert.InDelta(t, 8, tr.Beats(), 1e-9)
}

func TestTempoChangeKeepsBarPhase(t *testing.T) {
	t.Parallel()

	h, p, tr := newTestPacemaker(t)
	require.NoError(t, p.SetParam("rolling", 1))
	h.Run(t, p, 48000)

	require.NoError(t, p.SetParam("beats_per_minute", 60))
	out := h.Run(t, p, 512)
	require.Len(t, out, 1)
	follow(tr, out, 0)
	assert.Equal(t, float64(2), tr.GetBarBeat())
	assert.Equal(t, float64(60), tr.GetTempo())

	// half a bar at 120 BPM is half a bar at 60 BPM
	assert.InDelta(t, 2+512.0/48000, p.Position().BarBeat, 1e-9)
}

func TestRewindOnStart(t *testing.T) {
	t.Parallel()

	for _, rewind := range []bool{true, false} {
		rewind := rewind
		t.Run(map[bool]string{true: "rewind", false: "resume"}[rewind], func(t *testing.T) {
			t.Parallel()

			h, p, _ := newTestPacemaker(t)
			p.Controls.Rewind = rewind
			p.Controls.Rolling = true
			h.Run(t, p, 120000)

			p.Controls.Rolling = false
			h.Run(t, p, 512)
			p.Controls.Rolling = true
			h.Run(t, p, 0)

			pos := p.Position()
			if rewind {
				assert.Equal(t, int64(0), pos.Bar)
				assert.Equal(t, int64(0), pos.Frame)
				assert.Equal(t, float64(0), pos.BarBeat)
			} else {
				assert.Equal(t, int64(1), pos.Bar)
				assert.Equal(t, int64(120000), pos.Frame)
				assert.InDelta(t, 1, pos.BarBeat, 1e-9)
			}
		})
	}
}

func TestParams(t *testing.T) {
	t.Parallel()

	_, p, _ := newTestPacemaker(t)
	require.Error(t, p.SetParam("beat_unit", 0))
	require.Error(t, p.SetParam("swing", 1))
	require.NoError(t, p.SetParam("beats_per_bar", 3))
	require.Equal(t, 3, p.Controls.BeatsPerBar)
	require.Len(t, p.Params(), 5)
	require.Contains(t, p.Status(), "bar")
}
