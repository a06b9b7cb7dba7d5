package rhythm

import (
	"fmt"
	"math"
)

// Position is the musical and physical transport state of a host.
type Position struct {
	BarBeat         float64
	Bar             int64
	Beat            float64
	BeatUnit        uint32
	BeatsPerBar     float64
	BeatsPerMinute  float64
	Frame           int64
	FramesPerSecond float64
	Speed           float64
}

// NewPosition returns the state assumed before the host reports anything:
// 4/4 at 120 BPM, stopped, at the given sample rate.
func NewPosition(rate float64) Position {
	return Position{
		BeatUnit:        4,
		BeatsPerBar:     4,
		BeatsPerMinute:  120,
		FramesPerSecond: rate,
	}
}

// Rolling reports whether the transport moves forward.
func (p Position) Rolling() bool {
	return p.Speed > 0
}

// Valid reports whether the tempo fields can produce derived durations.
func (p Position) Valid() bool {
	return p.BeatsPerMinute > 0 && p.BeatUnit > 0 && p.FramesPerSecond > 0
}

// FramesPerBeat is the length of one beat in frames.
func (p Position) FramesPerBeat() float64 {
	return beatsToFrames(1, p.BeatsPerMinute, p.BeatUnit, p.FramesPerSecond)
}

// FramesPerBar is the length of one bar in frames.
func (p Position) FramesPerBar() float64 {
	return p.FramesPerBeat() * p.BeatsPerBar
}

// Beats is the absolute musical time in beats derived from bar and bar beat.
func (p Position) Beats() float64 {
	return float64(p.Bar)*p.BeatsPerBar + p.BarBeat
}

// Marker renders the position as "bar.beat", both one-based.
func (p Position) Marker() string {
	return fmt.Sprintf("%d.%d", p.Bar+1, markerNumber(p.BarBeat))
}

// beatsToFrames calculates frames for given beats, tempo, beat unit and rate
func beatsToFrames(beats, bpm float64, unit uint32, fps float64) float64 {
	return beats * 60 / (bpm * float64(unit) / 4) * fps
}

// markerNumber calculates the one-based marker number containing ratio
func markerNumber(ratio float64) int {
	return int(math.Floor(ratio)) + 1
}

// markerPhase calculates the phase of ratio within its marker
func markerPhase(ratio float64) float64 {
	return ratio - math.Floor(ratio)
}

// isWhole reports whether v sits on an integer, within float32 resolution.
func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-6
}
