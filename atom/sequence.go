package atom

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Unit is the time stamp unit of a Sequence.
type Unit uint8

const (
	UnitFrames Unit = iota
	UnitBeats
)

func (u Unit) String() string {
	switch u {
	case UnitFrames:
		return "frames"
	case UnitBeats:
		return "beats"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

const eventHeaderSize = 16

// Event is an atom with a time stamp. Only the field matching the unit of
// the sequence it lives in is meaningful.
type Event struct {
	Frames int64
	Beats  float64
	Atom   Atom
}

// Size is the number of bytes the event occupies inside a Sequence.
func (e Event) Size() int {
	return eventHeaderSize + pad8(len(e.Atom.Body))
}

// Cursor addresses an event inside a Sequence by byte offset.
type Cursor int

// NilCursor is the position past the last event.
const NilCursor Cursor = -1

// Sequence is a fixed capacity run of time stamped events, stored back to
// back as encoded records. Time stamps are expected to be non-decreasing.
type Sequence struct {
	unit Unit
	buf  []byte
	size int
}

// NewSequence allocates a sequence able to hold capacity bytes of records.
func NewSequence(capacity int, unit Unit) *Sequence {
	return &Sequence{
		unit: unit,
		buf:  make([]byte, capacity),
	}
}

func (s *Sequence) Unit() Unit {
	return s.unit
}

// Size is the number of bytes in use.
func (s *Sequence) Size() int {
	return s.size
}

func (s *Sequence) Capacity() int {
	return len(s.buf)
}

func (s *Sequence) Remaining() int {
	return len(s.buf) - s.size
}

// Bytes returns the encoded records. The slice aliases the sequence.
func (s *Sequence) Bytes() []byte {
	return s.buf[:s.size]
}

// Append encodes ev at the end of the sequence. If the record does not fit
// the sequence is left untouched and false is returned.
func (s *Sequence) Append(ev Event) bool {
	n := ev.Size()
	if n > len(s.buf)-s.size || uint64(len(ev.Atom.Body)) > math.MaxUint32 {
		return false
	}

	p := s.buf[s.size : s.size+n]
	if s.unit == UnitBeats {
		binary.LittleEndian.PutUint64(p, math.Float64bits(ev.Beats))
	} else {
		binary.LittleEndian.PutUint64(p, uint64(ev.Frames))
	}
	binary.LittleEndian.PutUint32(p[8:], uint32(ev.Atom.Type))
	binary.LittleEndian.PutUint32(p[12:], uint32(len(ev.Atom.Body)))
	copy(p[eventHeaderSize:], ev.Atom.Body)
	for i := eventHeaderSize + len(ev.Atom.Body); i < n; i++ {
		p[i] = 0
	}
	s.size += n
	return true
}

// Begin returns the cursor of the first event.
func (s *Sequence) Begin() Cursor {
	return s.CursorAt(0)
}

// CursorAt converts a byte offset into a cursor, NilCursor at or past the end.
func (s *Sequence) CursorAt(offset int) Cursor {
	if offset < 0 || offset >= s.size {
		return NilCursor
	}
	return Cursor(offset)
}

// IsEnd reports whether c is past the last event.
func (s *Sequence) IsEnd(c Cursor) bool {
	return c < 0 || int(c) >= s.size
}

// Next returns the cursor following c.
func (s *Sequence) Next(c Cursor) Cursor {
	if s.IsEnd(c) {
		return NilCursor
	}
	size := binary.LittleEndian.Uint32(s.buf[c+12:])
	return s.CursorAt(int(c) + eventHeaderSize + pad8(int(size)))
}

// Event decodes the event at c. The body aliases the sequence.
func (s *Sequence) Event(c Cursor) Event {
	if s.IsEnd(c) {
		return Event{}
	}
	p := s.buf[c:]
	var ev Event
	stamp := binary.LittleEndian.Uint64(p)
	if s.unit == UnitBeats {
		ev.Beats = math.Float64frombits(stamp)
	} else {
		ev.Frames = int64(stamp)
	}
	size := int(binary.LittleEndian.Uint32(p[12:]))
	ev.Atom = Atom{
		Type: URID(binary.LittleEndian.Uint32(p[8:])),
		Body: p[eventHeaderSize : eventHeaderSize+size : eventHeaderSize+size],
	}
	return ev
}

// Time returns the time stamp at c in the sequence's unit.
func (s *Sequence) Time(c Cursor) float64 {
	if s.IsEnd(c) {
		return math.Inf(1)
	}
	stamp := binary.LittleEndian.Uint64(s.buf[c:])
	if s.unit == UnitBeats {
		return math.Float64frombits(stamp)
	}
	return float64(int64(stamp))
}

// TruncateAt drops the event at c and everything after it.
func (s *Sequence) TruncateAt(c Cursor) {
	if s.IsEnd(c) {
		return
	}
	s.size = int(c)
}

// Clear empties the sequence, keeping its capacity.
func (s *Sequence) Clear() {
	s.size = 0
}

// Len walks the sequence and counts its events.
func (s *Sequence) Len() int {
	n := 0
	for c := s.Begin(); c != NilCursor; c = s.Next(c) {
		n++
	}
	return n
}

// Load replaces the content with previously serialized records. The data is
// validated completely before the sequence is modified.
func (s *Sequence) Load(data []byte) error {
	if len(data) > len(s.buf) {
		return fmt.Errorf("%d bytes of events exceed capacity %d", len(data), len(s.buf))
	}
	if err := ValidateRecords(data, s.unit); err != nil {
		return err
	}
	copy(s.buf, data)
	s.size = len(data)
	return nil
}

// ValidateRecords checks that data is a well formed, time ordered run of
// encoded events stamped in unit.
func ValidateRecords(data []byte, unit Unit) error {
	var last float64
	for off := 0; off < len(data); {
		if len(data)-off < eventHeaderSize {
			return fmt.Errorf("truncated event header at offset %d", off)
		}
		size := int(binary.LittleEndian.Uint32(data[off+12:]))
		n := eventHeaderSize + pad8(size)
		if n < eventHeaderSize || n > len(data)-off {
			return fmt.Errorf("event at offset %d overruns data", off)
		}
		stamp := binary.LittleEndian.Uint64(data[off:])
		var t float64
		if unit == UnitBeats {
			t = math.Float64frombits(stamp)
			if math.IsNaN(t) {
				return fmt.Errorf("event at offset %d has an invalid time stamp", off)
			}
		} else {
			t = float64(int64(stamp))
		}
		if off > 0 && t < last {
			return fmt.Errorf("event at offset %d goes back in time", off)
		}
		last = t
		off += n
	}
	return nil
}
