package host

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/worker"
	"github.com/stretchr/testify/require"
)

func TestURIDMap(t *testing.T) {
	t.Parallel()

	m := NewURIDMap()
	a := m.Map(atom.URIMidiEvent)
	b := m.Map(atom.URITimePosition)
	require.NotEqual(t, atom.URID(0), a)
	require.NotEqual(t, a, b)
	require.Equal(t, a, m.Map(atom.URIMidiEvent))
	require.Equal(t, atom.URID(0), m.Map(""))

	require.Equal(t, atom.URIMidiEvent, m.Unmap(a))
	require.Equal(t, "", m.Unmap(99))
	require.Equal(t, 2, m.Count())
}

func TestURIDMapConcurrent(t *testing.T) {
	t.Parallel()

	m := NewURIDMap()
	var wg sync.WaitGroup
	ids := make([]atom.URID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = m.Map(atom.URITimeSpeed)
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}

func TestRequireFeatures(t *testing.T) {
	t.Parallel()

	var f Features
	_, err := f.RequireMap()
	require.Error(t, err)
	require.Contains(t, err.Error(), "urid:map")
	_, err = f.RequireUnmap()
	require.Error(t, err)
	_, err = f.RequireSchedule()
	require.Error(t, err)
	_, err = f.RequireMakePath()
	require.Error(t, err)
	require.NotNil(t, f.Logger())
	require.False(t, f.Tracing())

	m := NewURIDMap()
	f = Features{Map: m, Unmap: m, Schedule: &ManualScheduler{}, MakePath: DirPathMaker{Dir: t.TempDir()}}
	_, err = f.RequireMap()
	require.NoError(t, err)
	_, err = f.RequireUnmap()
	require.NoError(t, err)
	_, err = f.RequireSchedule()
	require.NoError(t, err)
	_, err = f.RequireMakePath()
	require.NoError(t, err)
}

func TestDirPathMaker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := DirPathMaker{Dir: dir}.MakePath("caps/take.gz")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "caps", "take.gz"), path)
	require.DirExists(t, filepath.Join(dir, "caps"))

	_, err = DirPathMaker{Dir: dir}.MakePath("")
	require.Error(t, err)
}

// echo copies every input event to its output one frame later.
type echo struct {
	active bool
}

func (e *echo) Activate()   { e.active = true }
func (e *echo) Deactivate() { e.active = false }
func (e *echo) Close() error {
	return nil
}

func (e *echo) Run(in, out *atom.Sequence, nsamples int64) {
	forge := atom.NewForge(out)
	for c := in.Begin(); !in.IsEnd(c); c = in.Next(c) {
		ev := in.Event(c)
		if ev.Frames+1 < nsamples {
			ev.Frames++
			forge.Write(ev)
		}
	}
	forge.Finish()
}

func newEcho(config.OrbitConfig, Features) (Module, error) {
	return &echo{}, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "echo", URI: "urn:orbit:echo", New: newEcho}))
	require.NoError(t, r.Register(Descriptor{Name: "alpha", URI: "urn:orbit:alpha", New: newEcho}))
	require.Error(t, r.Register(Descriptor{Name: "echo", URI: "urn:orbit:echo2", New: newEcho}))
	require.Error(t, r.Register(Descriptor{Name: "broken"}))

	require.Equal(t, []string{"alpha", "echo"}, r.Names())
	require.Equal(t, 2, r.Count())

	d, err := r.Lookup("urn:orbit:echo")
	require.NoError(t, err)
	require.Equal(t, "echo", d.Name)

	m, err := r.Instantiate("echo", config.GetOrbitConfig(), Features{})
	require.NoError(t, err)
	require.IsType(t, &echo{}, m)

	_, err = r.Instantiate("missing", config.GetOrbitConfig(), Features{})
	require.Error(t, err)
}

func TestBlockRun(t *testing.T) {
	t.Parallel()

	b := NewBlock(1024, 1024)
	m := &echo{}
	out, err := b.Run(m, 64,
		atom.Event{Frames: 0, Atom: atom.Atom{Type: 1, Body: []byte{1}}},
		atom.Event{Frames: 63, Atom: atom.Atom{Type: 1, Body: []byte{2}}},
	)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(1), out[0].Frames)
	require.Equal(t, []byte{1}, out[0].Atom.Body)

	_, err = b.Run(m, 64, atom.Event{Frames: 64})
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := atom.NewSequence(1024, atom.UnitFrames)
	b := atom.NewSequence(1024, atom.UnitFrames)
	for _, f := range []int64{0, 10, 30} {
		a.Append(atom.Event{Frames: f, Atom: atom.Atom{Type: 1}})
	}
	for _, f := range []int64{5, 10, 40} {
		b.Append(atom.Event{Frames: f, Atom: atom.Atom{Type: 2}})
	}

	dst := atom.NewSequence(1024, atom.UnitFrames)
	require.True(t, Merge(dst, a, b))

	var frames []int64
	var types []atom.URID
	for _, ev := range Events(dst) {
		frames = append(frames, ev.Frames)
		types = append(types, ev.Atom.Type)
	}
	require.Equal(t, []int64{0, 5, 10, 10, 30, 40}, frames)
	require.Equal(t, []atom.URID{1, 2, 1, 2, 1, 2}, types)

	small := atom.NewSequence(16, atom.UnitFrames)
	require.False(t, Merge(small, a, b))
}

func TestWorkerPool(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx)

	w := worker.New(func(job worker.Job, r worker.Responder) {
		r.Respond(job)
	}, worker.Options{Name: "pool", Idle: time.Millisecond})
	pool.Schedule(w)

	require.True(t, w.Submit(worker.NewJob(worker.JobRead, 1, 0)))
	require.Eventually(t, func() bool {
		return w.Drain(func(worker.Job) bool { return true }) == 1
	}, time.Second, time.Millisecond)

	cancel()
	pool.Wait()

	require.True(t, w.Submit(worker.NewJob(worker.JobRead, 2, 0)))
	require.Equal(t, 1, pool.Flush())
}

func TestManualScheduler(t *testing.T) {
	t.Parallel()

	s := &ManualScheduler{}
	handled := 0
	w := worker.New(func(worker.Job, worker.Responder) { handled++ }, worker.Options{Name: "manual"})
	s.Schedule(w)

	w.Submit(worker.NewJob(worker.JobWrite, 0, 0))
	w.Submit(worker.NewJob(worker.JobWrite, 0, 0))
	require.Equal(t, 0, handled)
	require.Equal(t, 2, s.WorkAll())
	require.Equal(t, 2, handled)
}

// pulse emits one event at the start of every block.
type pulse struct {
	echo
}

func (p *pulse) Run(in, out *atom.Sequence, nsamples int64) {
	forge := atom.NewForge(out)
	forge.WriteAtom(0, atom.Atom{Type: 7, Body: []byte{1}})
	forge.Finish()
}

func TestChain(t *testing.T) {
	t.Parallel()

	src := &pulse{}
	c := NewChain(src, 1024)
	first, second := &echo{}, &echo{}
	c.Add("first", first)
	c.Add("second", second)
	c.Activate()
	require.True(t, first.active)
	require.True(t, src.active)

	require.True(t, c.Run(64))
	require.Len(t, Events(c.Transport()), 1)

	stages := c.Stages()
	require.Len(t, stages, 2)
	require.Equal(t, "second", stages[1].Name)

	var frames []int64
	for _, ev := range Events(stages[0].Out) {
		frames = append(frames, ev.Frames)
	}
	require.Equal(t, []int64{1}, frames)

	frames = frames[:0]
	for _, ev := range Events(stages[1].Out) {
		frames = append(frames, ev.Frames)
	}
	require.Equal(t, []int64{1, 2}, frames)

	c.Deactivate()
	require.False(t, second.active)
	require.NoError(t, c.Close())
}
