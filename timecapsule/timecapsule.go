// Package timecapsule records the event stream to a compressed archive on
// disk and plays it back against the host transport. All file access
// happens on a worker so the processing path never blocks.
package timecapsule

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/robmorgan/orbit/worker"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#timecapsule"

// ArchiveName is the file the archive is kept in, relative to the host's
// state directory.
const ArchiveName = "seq.gz"

// Controls are sampled at the start of every block.
type Controls struct {
	Mute   bool
	Record bool
}

type Timecapsule struct {
	tracker *rhythm.Tracker
	worker  *worker.Worker
	guard   worker.Guard
	forge   atom.Forge
	log     *logrus.Entry
	trace   bool

	Controls Controls
	applied  Controls

	rolling    bool
	reposition bool
	dropped    int

	// frame of the last event played in this block
	played int64

	disk *disk
}

// disk is the worker side state. It is only touched by the worker handler
// and by Close.
type disk struct {
	mu     sync.Mutex
	path   string
	mapper atom.Mapper
	unmap  atom.Unmapper
	log    *logrus.Entry

	gen     uint64
	from    float64
	reader  *Reader
	writer  *Writer
	pending *worker.Job
	drain   *worker.Job
}

// Descriptor registers the timecapsule with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "timecapsule",
		URI:         URI,
		Description: "record to and play back from a disk archive",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			t, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Timecapsule, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}
	unmap, err := f.RequireUnmap()
	if err != nil {
		return nil, err
	}
	sched, err := f.RequireSchedule()
	if err != nil {
		return nil, err
	}
	paths, err := f.RequireMakePath()
	if err != nil {
		return nil, err
	}
	path, err := paths.MakePath(ArchiveName)
	if err != nil {
		return nil, err
	}

	tc := &Timecapsule{
		log:   f.Logger(),
		trace: f.Tracing(),
		disk: &disk{
			path:   path,
			mapper: mapper,
			unmap:  unmap,
			log:    f.Logger().WithField("archive", path),
		},
	}
	tc.tracker, err = rhythm.New(mapper, cfg.SampleRate, rhythm.MaskSpeed, tc.handle)
	if err != nil {
		return nil, err
	}
	tc.worker = worker.New(tc.disk.work, worker.Options{
		Name:         "timecapsule",
		RingCapacity: cfg.RingCapacity,
		Idle:         cfg.WorkerIdle,
		Log:          f.Logger(),
	})
	sched.Schedule(tc.worker)

	return tc, nil
}

// Activate asks the worker to load the archive for playback.
func (tc *Timecapsule) Activate() {
	tc.reposition = true
	tc.log.WithField("record", tc.Controls.Record).Debug("Timecapsule activated")
}

func (tc *Timecapsule) Deactivate() {}

// Close finishes the archive. The worker must no longer be running.
func (tc *Timecapsule) Close() error {
	return tc.disk.close()
}

// Path is where the archive is kept.
func (tc *Timecapsule) Path() string {
	return tc.disk.path
}

func (tc *Timecapsule) Run(in, out *atom.Sequence, nsamples int64) {
	tc.forge.Reset(out)
	tc.played = 0

	if tc.Controls != tc.applied {
		if tc.Controls.Record != tc.applied.Record {
			tc.reposition = true
		}
		tc.applied = tc.Controls
	}
	if tc.reposition {
		tc.requestReposition()
	}

	var last int64
	for c := in.Begin(); !in.IsEnd(c); c = in.Next(c) {
		ev := in.Event(c)
		transport := tc.tracker.Advance(&ev.Atom, last, ev.Frames)
		if tc.rolling {
			if !transport && tc.applied.Record {
				tc.record(ev.Atom)
			}
			if tc.playing() {
				tc.play(ev.Frames)
			}
		}
		last = ev.Frames
	}
	tc.tracker.Advance(nil, last, nsamples)
	if tc.rolling && tc.playing() {
		tc.play(nsamples)
	}

	if !tc.forge.Finish() && tc.trace {
		tc.log.Trace("Timecapsule output overflow")
	}
}

func (tc *Timecapsule) playing() bool {
	return !tc.applied.Record && !tc.applied.Mute
}

func (tc *Timecapsule) handle(t *rhythm.Tracker, frames int64, field rhythm.Field) {
	if field != rhythm.FieldSpeed {
		return
	}
	tc.rolling = t.IsRolling()
	// playback follows the transport from wherever it starts
	if tc.rolling && !tc.applied.Record {
		tc.requestReposition()
	}
}

// requestReposition opens a new generation. Until its drain marker comes
// back every result still in flight is discarded.
func (tc *Timecapsule) requestReposition() {
	kind := worker.JobRepositionPlay
	if tc.applied.Record {
		kind = worker.JobRepositionRec
	}
	gen := tc.guard.Next()
	if !tc.worker.Submit(worker.NewJob(kind, gen, tc.tracker.Beats())) {
		// retried with the next block
		tc.reposition = true
		return
	}
	tc.guard.Commit(gen)
	tc.reposition = false
}

func (tc *Timecapsule) record(a atom.Atom) {
	job := worker.NewJob(worker.JobWrite, tc.guard.Generation(), tc.tracker.Beats())
	if !job.SetAtom(a) || !tc.worker.Submit(job) {
		tc.dropped++
		if tc.trace {
			tc.log.WithField("size", a.Size()).Trace("Timecapsule dropped event")
		}
	}
}

// play writes every archived event that became due before frame to.
func (tc *Timecapsule) play(to int64) {
	now := tc.tracker.Beats()
	fpb := tc.tracker.FramesPerBeat()

	n := tc.worker.Drain(func(job worker.Job) bool {
		if !tc.guard.Accept(job) {
			return true
		}
		if job.Beats >= now {
			return false
		}
		at := to - int64(math.Round((now-job.Beats)*fpb))
		if at < tc.played {
			at = tc.played
		}
		tc.forge.WriteAtom(at, job.Atom())
		tc.played = at
		return true
	})
	if n > 0 {
		tc.worker.Submit(worker.NewJob(worker.JobRead, tc.guard.Generation(), now))
	}
}

func (tc *Timecapsule) Params() []string {
	return []string{"mute", "record"}
}

func (tc *Timecapsule) SetParam(name string, value float64) error {
	switch name {
	case "mute":
		tc.Controls.Mute = value != 0
	case "record":
		tc.Controls.Record = value != 0
	default:
		return fmt.Errorf("timecapsule has no parameter %q", name)
	}
	return nil
}

func (tc *Timecapsule) Status() map[string]float64 {
	draining := 0.0
	if tc.guard.Draining() {
		draining = 1
	}
	return map[string]float64{
		"generation": float64(tc.guard.Generation()),
		"draining":   draining,
		"dropped":    float64(tc.dropped),
	}
}

// work runs on the worker goroutine.
func (d *disk) work(job worker.Job, r worker.Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch job.Kind {
	case worker.JobRepositionPlay:
		d.closeFiles()
		d.startGeneration(job)
		reader, err := Open(d.path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			d.log.WithError(err).Warn("Cannot open archive for playback")
		default:
			d.reader = reader
		}
		d.fill(r)
	case worker.JobRead:
		d.fill(r)
	case worker.JobRepositionRec:
		d.closeFiles()
		d.startGeneration(job)
		writer, err := Create(d.path)
		if err != nil {
			d.log.WithError(err).Error("Cannot create archive")
		}
		d.writer = writer
		d.fill(r)
	case worker.JobWrite:
		if d.writer == nil {
			return
		}
		uri := d.unmap.Unmap(job.Type)
		if uri == "" {
			return
		}
		a := job.Atom()
		if err := d.writer.Write(Record{Beats: job.Beats, URI: uri, Body: a.Body}); err != nil {
			d.log.WithError(err).Error("Cannot archive event")
			d.closeFiles()
		}
	}
}

func (d *disk) startGeneration(job worker.Job) {
	d.gen = job.Gen
	d.from = job.Beats
	d.pending = nil
	drain := worker.NewJob(worker.JobDrain, job.Gen, job.Beats)
	d.drain = &drain
	d.log.WithFields(logrus.Fields{
		"kind":  job.Kind,
		"gen":   job.Gen,
		"beats": job.Beats,
	}).Debug("Repositioned archive")
}

// fill hands archived events to the processing side until the response
// ring is full. The event that did not fit is kept for the next read.
func (d *disk) fill(r worker.Responder) {
	if d.drain != nil {
		if !r.Respond(*d.drain) {
			return
		}
		d.drain = nil
	}

	for {
		if d.pending == nil {
			job, ok := d.next()
			if !ok {
				return
			}
			d.pending = &job
		}
		if !r.Respond(*d.pending) {
			return
		}
		d.pending = nil
	}
}

// next reads the next playable record for the current generation.
func (d *disk) next() (worker.Job, bool) {
	for d.reader != nil {
		rec, err := d.reader.Next()
		if err != nil {
			if err != io.EOF {
				d.log.WithError(err).Warn("Archive ends early")
			}
			d.reader.Close()
			d.reader = nil
			break
		}
		if rec.Beats < d.from {
			continue
		}
		job := worker.NewJob(worker.JobWrite, d.gen, rec.Beats)
		if !job.SetAtom(atom.Atom{Type: d.mapper.Map(rec.URI), Body: rec.Body}) {
			continue
		}
		return job, true
	}
	return worker.Job{}, false
}

func (d *disk) closeFiles() error {
	var err error
	if d.reader != nil {
		err = d.reader.Close()
		d.reader = nil
	}
	if d.writer != nil {
		if werr := d.writer.Close(); werr != nil {
			err = werr
		}
		d.writer = nil
	}
	return err
}

func (d *disk) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeFiles()
}
