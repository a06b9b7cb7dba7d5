package atom

import (
	"encoding/binary"
	"math"
)

const (
	objectHeaderSize   = 8
	propertyHeaderSize = 16
)

// ObjectType returns the object type of an Object atom.
func (u *URIDs) ObjectType(a Atom) (URID, bool) {
	if !a.Is(u.Object) || len(a.Body) < objectHeaderSize {
		return 0, false
	}
	return URID(binary.LittleEndian.Uint32(a.Body)), true
}

// IsObject reports whether a is an Object atom of type otype.
func (u *URIDs) IsObject(a Atom, otype URID) bool {
	t, ok := u.ObjectType(a)
	return ok && t == otype
}

// QueryEntry is one slot of a Query table.
type QueryEntry struct {
	Key   URID
	Value Atom
	Found bool
}

// Query looks up the properties of obj named by entries in a single pass.
// Found and Value are reset on every entry first; Value aliases obj's body.
// A malformed property ends the walk. It returns the number of entries found.
func Query(obj Atom, entries []QueryEntry) int {
	for i := range entries {
		entries[i].Found = false
		entries[i].Value = Atom{}
	}
	if len(obj.Body) < objectHeaderSize {
		return 0
	}

	found := 0
	body := obj.Body[objectHeaderSize:]
	for len(body) >= propertyHeaderSize && found < len(entries) {
		key := URID(binary.LittleEndian.Uint32(body))
		typ := URID(binary.LittleEndian.Uint32(body[8:]))
		size := int(binary.LittleEndian.Uint32(body[12:]))
		if size > len(body)-propertyHeaderSize {
			break
		}
		for i := range entries {
			if entries[i].Key == key && !entries[i].Found {
				entries[i].Value = Atom{Type: typ, Body: body[propertyHeaderSize : propertyHeaderSize+size]}
				entries[i].Found = true
				found++
				break
			}
		}
		next := propertyHeaderSize + pad8(size)
		if next > len(body) {
			break
		}
		body = body[next:]
	}
	return found
}

// ForEachProperty calls fn for every property of obj until fn returns false.
func ForEachProperty(obj Atom, fn func(key URID, value Atom) bool) {
	if len(obj.Body) < objectHeaderSize {
		return
	}
	body := obj.Body[objectHeaderSize:]
	for len(body) >= propertyHeaderSize {
		key := URID(binary.LittleEndian.Uint32(body))
		typ := URID(binary.LittleEndian.Uint32(body[8:]))
		size := int(binary.LittleEndian.Uint32(body[12:]))
		if size > len(body)-propertyHeaderSize {
			return
		}
		if !fn(key, Atom{Type: typ, Body: body[propertyHeaderSize : propertyHeaderSize+size]}) {
			return
		}
		next := propertyHeaderSize + pad8(size)
		if next > len(body) {
			return
		}
		body = body[next:]
	}
}

// ObjectBuilder writes Object atoms into memory allocated once up front.
type ObjectBuilder struct {
	urids    *URIDs
	buf      []byte
	size     int
	overflow bool
}

// NewObjectBuilder allocates a builder able to hold capacity body bytes.
func NewObjectBuilder(urids *URIDs, capacity int) *ObjectBuilder {
	return &ObjectBuilder{
		urids: urids,
		buf:   make([]byte, capacity),
	}
}

// Begin discards any previous object and starts a new one of type otype.
func (b *ObjectBuilder) Begin(otype URID) {
	b.size = 0
	b.overflow = len(b.buf) < objectHeaderSize
	if b.overflow {
		return
	}
	binary.LittleEndian.PutUint32(b.buf, uint32(otype))
	binary.LittleEndian.PutUint32(b.buf[4:], 0)
	b.size = objectHeaderSize
}

func (b *ObjectBuilder) property(key, typ URID, size int) []byte {
	if b.overflow {
		return nil
	}
	total := propertyHeaderSize + pad8(size)
	if total > len(b.buf)-b.size {
		b.overflow = true
		return nil
	}
	p := b.buf[b.size : b.size+total]
	binary.LittleEndian.PutUint32(p, uint32(key))
	binary.LittleEndian.PutUint32(p[4:], 0)
	binary.LittleEndian.PutUint32(p[8:], uint32(typ))
	binary.LittleEndian.PutUint32(p[12:], uint32(size))
	for i := propertyHeaderSize + size; i < total; i++ {
		p[i] = 0
	}
	b.size += total
	return p[propertyHeaderSize : propertyHeaderSize+size]
}

// Property appends an arbitrary atom under key.
func (b *ObjectBuilder) Property(key URID, value Atom) bool {
	dst := b.property(key, value.Type, len(value.Body))
	if dst == nil {
		return false
	}
	copy(dst, value.Body)
	return true
}

func (b *ObjectBuilder) Int(key URID, v int32) bool {
	dst := b.property(key, b.urids.Int, 4)
	if dst == nil {
		return false
	}
	binary.LittleEndian.PutUint32(dst, uint32(v))
	return true
}

func (b *ObjectBuilder) Long(key URID, v int64) bool {
	dst := b.property(key, b.urids.Long, 8)
	if dst == nil {
		return false
	}
	binary.LittleEndian.PutUint64(dst, uint64(v))
	return true
}

func (b *ObjectBuilder) Float(key URID, v float32) bool {
	dst := b.property(key, b.urids.Float, 4)
	if dst == nil {
		return false
	}
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	return true
}

func (b *ObjectBuilder) Double(key URID, v float64) bool {
	dst := b.property(key, b.urids.Double, 8)
	if dst == nil {
		return false
	}
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	return true
}

// Atom returns the finished object. The body aliases the builder and is
// only valid until the next Begin. ok is false if any write overflowed.
func (b *ObjectBuilder) Atom() (Atom, bool) {
	if b.overflow {
		return Atom{}, false
	}
	return Atom{Type: b.urids.Object, Body: b.buf[:b.size]}, true
}
