package atom

// Forge writes one block of output events. After the first failed append
// every further write is ignored and Finish empties the sequence, so the
// host always receives a valid sequence.
type Forge struct {
	seq      *Sequence
	overflow bool
}

// NewForge clears seq and starts writing into it.
func NewForge(seq *Sequence) *Forge {
	f := &Forge{}
	f.Reset(seq)
	return f
}

// Reset clears seq and starts a new block on it.
func (f *Forge) Reset(seq *Sequence) {
	f.seq = seq
	f.overflow = false
	if seq != nil {
		seq.Clear()
	}
}

// Write appends ev, reporting false once the block has overflowed.
func (f *Forge) Write(ev Event) bool {
	if f.overflow || f.seq == nil {
		return false
	}
	if !f.seq.Append(ev) {
		f.overflow = true
		return false
	}
	return true
}

// WriteAtom appends a at frame.
func (f *Forge) WriteAtom(frames int64, a Atom) bool {
	return f.Write(Event{Frames: frames, Atom: a})
}

func (f *Forge) Overflowed() bool {
	return f.overflow
}

// Finish closes the block. On overflow the sequence is emptied and false
// is returned.
func (f *Forge) Finish() bool {
	if f.overflow {
		if f.seq != nil {
			f.seq.Clear()
		}
		return false
	}
	return true
}
