package timeline

import (
	"encoding/binary"
	"fmt"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/utils"
)

// Cursor addresses one event of a Buffer.
type Cursor = atom.Cursor

// NilCursor is returned when no event satisfies a lookup.
const NilCursor = atom.NilCursor

var blobMagic = [4]byte{'o', 'r', 'b', 't'}

const (
	blobVersion    = 1
	blobHeaderSize = 12
)

// Buffer is a capacity bounded, time ordered run of events with a memoized
// playback cursor.
type Buffer struct {
	seq *atom.Sequence

	// last Reposition result; offset is where scanning resumes
	memoValid  bool
	memoTarget float64
	memoOffset int
}

// New allocates a buffer of capacity bytes whose events are stamped in unit.
func New(capacity int, unit atom.Unit) *Buffer {
	return &Buffer{seq: atom.NewSequence(capacity, unit)}
}

func (b *Buffer) Unit() atom.Unit {
	return b.seq.Unit()
}

func (b *Buffer) Size() int {
	return b.seq.Size()
}

func (b *Buffer) Capacity() int {
	return b.seq.Capacity()
}

// Used is the filled share of the capacity in percent.
func (b *Buffer) Used() float64 {
	return utils.Percent(b.seq.Size(), b.seq.Capacity())
}

// Len counts the stored events.
func (b *Buffer) Len() int {
	return b.seq.Len()
}

// Append stores ev after the last event. Time stamps are expected to be
// non-decreasing. When ev does not fit nothing changes and false is
// returned.
func (b *Buffer) Append(ev atom.Event) bool {
	return b.seq.Append(ev)
}

// Reposition returns the first event whose time stamp is at or after target,
// or NilCursor. Monotonic targets resume scanning from the previous result.
func (b *Buffer) Reposition(target float64) Cursor {
	c := b.seq.Begin()
	if b.memoValid && target >= b.memoTarget {
		c = b.seq.CursorAt(b.memoOffset)
	}
	for c != NilCursor && b.seq.Time(c) < target {
		c = b.seq.Next(c)
	}

	b.memoValid = true
	b.memoTarget = target
	if c == NilCursor {
		b.memoOffset = b.seq.Size()
	} else {
		b.memoOffset = int(c)
	}
	return c
}

func (b *Buffer) Begin() Cursor {
	return b.seq.Begin()
}

func (b *Buffer) Next(c Cursor) Cursor {
	return b.seq.Next(c)
}

// Event returns the event at c; its body aliases the buffer.
func (b *Buffer) Event(c Cursor) atom.Event {
	return b.seq.Event(c)
}

// Time is the time stamp at c in the buffer's unit.
func (b *Buffer) Time(c Cursor) float64 {
	return b.seq.Time(c)
}

// Truncate drops every event stamped at or after position.
func (b *Buffer) Truncate(position float64) {
	c := b.Reposition(position)
	b.seq.TruncateAt(c)
	b.memoValid = false
}

// Clear drops every event, keeping the capacity.
func (b *Buffer) Clear() {
	b.seq.Clear()
	b.memoValid = false
}

// Serialize returns an opaque copy of the buffer content.
func (b *Buffer) Serialize() []byte {
	body := b.seq.Bytes()
	blob := make([]byte, blobHeaderSize+len(body))
	copy(blob, blobMagic[:])
	blob[4] = blobVersion
	blob[5] = byte(b.seq.Unit())
	binary.LittleEndian.PutUint32(blob[8:], uint32(len(body)))
	copy(blob[blobHeaderSize:], body)
	return blob
}

// Restore replaces the content with a blob produced by Serialize. Invalid
// blobs leave the buffer untouched.
func (b *Buffer) Restore(blob []byte) error {
	if err := b.Check(blob); err != nil {
		return err
	}
	if err := b.seq.Load(blob[blobHeaderSize:]); err != nil {
		return errors.WithStackTraceAndPrefix(err, "restoring timeline")
	}
	b.memoValid = false
	return nil
}

// Check reports whether Restore would accept blob.
func (b *Buffer) Check(blob []byte) error {
	if len(blob) < blobHeaderSize {
		return errors.WithStackTrace(fmt.Errorf("timeline blob too short: %d bytes", len(blob)))
	}
	if [4]byte{blob[0], blob[1], blob[2], blob[3]} != blobMagic || blob[4] != blobVersion {
		return errors.WithStackTrace(fmt.Errorf("not a timeline blob"))
	}
	if atom.Unit(blob[5]) != b.seq.Unit() {
		return errors.WithStackTrace(fmt.Errorf("timeline blob is stamped in %s, buffer uses %s", atom.Unit(blob[5]), b.seq.Unit()))
	}
	n := int(binary.LittleEndian.Uint32(blob[8:]))
	if n != len(blob)-blobHeaderSize {
		return errors.WithStackTrace(fmt.Errorf("timeline blob length %d does not match payload %d", n, len(blob)-blobHeaderSize))
	}
	if n > b.seq.Capacity() {
		return errors.WithStackTrace(fmt.Errorf("timeline blob of %d bytes exceeds capacity %d", n, b.seq.Capacity()))
	}
	if err := atom.ValidateRecords(blob[blobHeaderSize:], b.seq.Unit()); err != nil {
		return errors.WithStackTraceAndPrefix(err, "checking timeline")
	}
	return nil
}

// Iterator walks a buffer forward from a cursor.
type Iterator struct {
	b       *Buffer
	next    Cursor
	current Cursor
}

// IterateFrom returns an iterator whose first Next lands on c.
func (b *Buffer) IterateFrom(c Cursor) Iterator {
	return Iterator{b: b, next: c, current: NilCursor}
}

// Next advances to the following event and reports whether there is one.
func (it *Iterator) Next() bool {
	if it.next == NilCursor {
		it.current = NilCursor
		return false
	}
	it.current = it.next
	it.next = it.b.Next(it.current)
	return true
}

func (it *Iterator) Event() atom.Event {
	return it.b.Event(it.current)
}

func (it *Iterator) Cursor() Cursor {
	return it.current
}
