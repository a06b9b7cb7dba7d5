package atom

import (
	"encoding/binary"
	"math"
)

// Atom is a typed value. Body aliases whatever memory the atom was decoded
// from; copy it before keeping it past the current block.
type Atom struct {
	Type URID
	Body []byte
}

// Size is the number of body bytes.
func (a Atom) Size() int {
	return len(a.Body)
}

// Is reports whether the atom has type t.
func (a Atom) Is(t URID) bool {
	return a.Type == t && t != 0
}

// IntAtom encodes v as an Int atom.
func (u *URIDs) IntAtom(v int32) Atom {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, uint32(v))
	return Atom{Type: u.Int, Body: body}
}

func (u *URIDs) LongAtom(v int64) Atom {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, uint64(v))
	return Atom{Type: u.Long, Body: body}
}

func (u *URIDs) FloatAtom(v float32) Atom {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, math.Float32bits(v))
	return Atom{Type: u.Float, Body: body}
}

func (u *URIDs) DoubleAtom(v float64) Atom {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, math.Float64bits(v))
	return Atom{Type: u.Double, Body: body}
}

func (u *URIDs) BoolAtom(v bool) Atom {
	var i int32
	if v {
		i = 1
	}
	a := u.IntAtom(i)
	a.Type = u.Bool
	return a
}

// Raw wraps an opaque payload of type t. The payload is copied.
func Raw(t URID, body []byte) Atom {
	return Atom{Type: t, Body: append([]byte(nil), body...)}
}

// AsInt returns the value of an Int atom.
func (u *URIDs) AsInt(a Atom) (int32, bool) {
	if !a.Is(u.Int) || len(a.Body) < 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(a.Body)), true
}

// AsLong returns the value of a Long atom.
func (u *URIDs) AsLong(a Atom) (int64, bool) {
	if !a.Is(u.Long) || len(a.Body) < 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(a.Body)), true
}

// AsFloat returns the value of a Float atom.
func (u *URIDs) AsFloat(a Atom) (float32, bool) {
	if !a.Is(u.Float) || len(a.Body) < 4 {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(a.Body)), true
}

// AsDouble returns the value of a Double atom.
func (u *URIDs) AsDouble(a Atom) (float64, bool) {
	if !a.Is(u.Double) || len(a.Body) < 8 {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(a.Body)), true
}

// AsBool returns the value of a Bool atom.
func (u *URIDs) AsBool(a Atom) (bool, bool) {
	if !a.Is(u.Bool) || len(a.Body) < 4 {
		return false, false
	}
	return binary.LittleEndian.Uint32(a.Body) != 0, true
}

// pad8 rounds n up to the next multiple of 8.
func pad8(n int) int {
	return (n + 7) &^ 7
}
