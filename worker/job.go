package worker

import (
	"fmt"

	"github.com/robmorgan/orbit/atom"
)

// MaxPayload is the largest atom body a Job can carry.
const MaxPayload = 256

// Kind tells the worker, or the processing side, what a Job asks for.
type Kind uint8

const (
	// JobDrain marks the point after which results belong to the newest
	// generation.
	JobDrain Kind = iota
	JobRepositionPlay
	JobRead
	JobRepositionRec
	JobWrite
)

var kindNames = []string{"drain", "reposition_play", "read", "reposition_rec", "write"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Job is a fixed size message between the processing path and a worker.
// The payload lives inline so passing a Job never allocates.
type Job struct {
	Kind  Kind
	Gen   uint64
	Beats float64
	Type  atom.URID
	Size  uint16
	Data  [MaxPayload]byte
}

// NewJob returns a job without payload.
func NewJob(kind Kind, gen uint64, beats float64) Job {
	return Job{Kind: kind, Gen: gen, Beats: beats}
}

// SetAtom copies a into the job. It reports false when a is too large.
func (j *Job) SetAtom(a atom.Atom) bool {
	if len(a.Body) > MaxPayload {
		return false
	}
	j.Type = a.Type
	j.Size = uint16(len(a.Body))
	copy(j.Data[:], a.Body)
	return true
}

// Atom returns the payload. The body aliases j.
func (j *Job) Atom() atom.Atom {
	return atom.Atom{Type: j.Type, Body: j.Data[:j.Size]}
}
