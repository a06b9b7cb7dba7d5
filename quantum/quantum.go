// Package quantum delays events to the next beat boundary while the
// transport rolls.
package quantum

import (
	"fmt"
	"math"

	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/rhythm"
	"github.com/robmorgan/orbit/worker"
	"github.com/sirupsen/logrus"
)

const URI = "http://open-music-kontrollers.ch/lv2/orbit#quantum"

// Mode selects the beat an event is moved to.
type Mode int

const (
	// ModeFloor plays the event on the beat after the one it arrived in.
	ModeFloor Mode = iota
	// ModeRound plays the event one beat after the nearest beat.
	ModeRound
	// ModeCeil plays the event on the next whole beat.
	ModeCeil
)

func (m Mode) quantize(beats float64) float64 {
	switch m {
	case ModeRound:
		return math.Round(beats) + 1
	case ModeCeil:
		return math.Ceil(beats)
	default:
		return math.Floor(beats) + 1
	}
}

type Quantum struct {
	urids   *atom.URIDs
	tracker *rhythm.Tracker
	forge   atom.Forge
	queue   *worker.Ring[worker.Job]
	log     *logrus.Entry
	trace   bool

	// Mode is read for every queued event.
	Mode Mode

	rolling bool
	dropped int
}

// Descriptor registers quantum with a host.
func Descriptor() host.Descriptor {
	return host.Descriptor{
		Name:        "quantum",
		URI:         URI,
		Description: "quantize events to beat boundaries",
		New: func(cfg config.OrbitConfig, f host.Features) (host.Module, error) {
			q, err := New(cfg, f)
			if err != nil {
				return nil, err
			}
			return q, nil
		},
	}
}

func New(cfg config.OrbitConfig, f host.Features) (*Quantum, error) {
	mapper, err := f.RequireMap()
	if err != nil {
		return nil, err
	}

	q := &Quantum{
		queue: worker.NewRing[worker.Job](cfg.RingCapacity),
		log:   f.Logger(),
		trace: f.Tracing(),
	}
	q.tracker, err = rhythm.New(mapper, cfg.SampleRate, rhythm.MaskSpeed|rhythm.MaskBarBeatWhole, q.handle)
	if err != nil {
		return nil, err
	}
	q.urids = q.tracker.URIDs()
	return q, nil
}

func (q *Quantum) Activate() {
	q.log.WithField("mode", q.Mode).Debug("Quantum activated")
}

func (q *Quantum) Deactivate() {}

func (q *Quantum) Close() error {
	return nil
}

func (q *Quantum) Run(in, out *atom.Sequence, nsamples int64) {
	q.forge.Reset(out)

	var last int64
	for c := in.Begin(); !in.IsEnd(c); c = in.Next(c) {
		ev := in.Event(c)
		if !q.tracker.Advance(&ev.Atom, last, ev.Frames) {
			if q.rolling {
				q.enqueue(ev.Atom)
			} else {
				q.forge.Write(ev)
			}
		}
		last = ev.Frames
	}
	q.tracker.Advance(nil, last, nsamples)

	if !q.forge.Finish() && q.trace {
		q.log.Trace("Quantum output overflow")
	}
}

func (q *Quantum) enqueue(a atom.Atom) {
	job := worker.NewJob(worker.JobWrite, 0, q.Mode.quantize(q.tracker.Beats()))
	if !job.SetAtom(a) || !q.queue.TrySend(job) {
		q.dropped++
		if q.trace {
			q.log.WithField("size", a.Size()).Trace("Quantum queue full")
		}
	}
}

func (q *Quantum) handle(t *rhythm.Tracker, frames int64, field rhythm.Field) {
	switch field {
	case rhythm.FieldSpeed:
		q.rolling = t.IsRolling()
		if !q.rolling {
			q.flush(frames, math.Inf(1))
		}
	case rhythm.FieldBarBeat:
		q.flush(frames, t.Beats())
	}
}

// flush emits every queued event due at or before beats.
func (q *Quantum) flush(frames int64, beats float64) {
	for {
		job, ok := q.queue.Peek()
		if !ok || job.Beats > beats+1e-9 {
			return
		}
		q.forge.WriteAtom(frames, job.Atom())
		q.queue.TryRecv()
	}
}

// Pending is the number of events waiting for their beat.
func (q *Quantum) Pending() int {
	return q.queue.Len()
}

func (q *Quantum) Params() []string {
	return []string{"mode"}
}

func (q *Quantum) SetParam(name string, value float64) error {
	if name != "mode" {
		return fmt.Errorf("quantum has no parameter %q", name)
	}
	m := Mode(value)
	if m < ModeFloor || m > ModeCeil {
		return fmt.Errorf("quantum mode %v out of range", value)
	}
	q.Mode = m
	return nil
}

func (q *Quantum) Status() map[string]float64 {
	return map[string]float64{
		"pending": float64(q.Pending()),
		"dropped": float64(q.dropped),
	}
}
