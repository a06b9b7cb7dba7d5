package host

import (
	"fmt"

	"github.com/robmorgan/orbit/atom"
)

// Block feeds modules one processing block at a time, the way an audio host
// does, and keeps the input and output sequences between calls.
type Block struct {
	In  *atom.Sequence
	Out *atom.Sequence
}

func NewBlock(inCapacity, outCapacity int) *Block {
	return &Block{
		In:  atom.NewSequence(inCapacity, atom.UnitFrames),
		Out: atom.NewSequence(outCapacity, atom.UnitFrames),
	}
}

// Run sends events, which must be time ordered, to m and returns copies of
// the events m produced.
func (b *Block) Run(m Module, nsamples int64, events ...atom.Event) ([]atom.Event, error) {
	b.In.Clear()
	for _, ev := range events {
		if ev.Frames < 0 || ev.Frames >= nsamples {
			return nil, fmt.Errorf("event at frame %d lies outside a block of %d frames", ev.Frames, nsamples)
		}
		if !b.In.Append(ev) {
			return nil, fmt.Errorf("input sequence full after %d bytes", b.In.Size())
		}
	}
	return b.RunSequence(m, nsamples), nil
}

// RunSequence runs m on whatever b.In holds.
func (b *Block) RunSequence(m Module, nsamples int64) []atom.Event {
	m.Run(b.In, b.Out, nsamples)
	return Events(b.Out)
}

// Events copies every event out of seq.
func Events(seq *atom.Sequence) []atom.Event {
	var out []atom.Event
	for c := seq.Begin(); !seq.IsEnd(c); c = seq.Next(c) {
		ev := seq.Event(c)
		ev.Atom = atom.Raw(ev.Atom.Type, ev.Atom.Body)
		out = append(out, ev)
	}
	return out
}

// Merge writes the events of every source into dst in frame order. Events
// with the same frame keep source order. It reports false if dst filled up.
func Merge(dst *atom.Sequence, srcs ...*atom.Sequence) bool {
	dst.Clear()
	cursors := make([]atom.Cursor, len(srcs))
	for i, s := range srcs {
		cursors[i] = s.Begin()
	}
	for {
		pick := -1
		var best int64
		for i, s := range srcs {
			if s.IsEnd(cursors[i]) {
				continue
			}
			if f := s.Event(cursors[i]).Frames; pick < 0 || f < best {
				pick, best = i, f
			}
		}
		if pick < 0 {
			return true
		}
		if !dst.Append(srcs[pick].Event(cursors[pick])) {
			return false
		}
		cursors[pick] = srcs[pick].Next(cursors[pick])
	}
}
