package rhythm

// Snapshot is an interface for probing details about the transport established by a host.
type Snapshot interface {
	// GetTempo gets the tempo in beats per minute.
	GetTempo() float64

	// GetBeatUnit gets the note value that counts as one beat.
	GetBeatUnit() uint32

	// GetBeatsPerBar gets the bar length in beats.
	GetBeatsPerBar() float64

	// GetFramesPerSecond gets the sample rate the transport is measured in.
	GetFramesPerSecond() float64

	// GetSpeed gets the transport speed, zero when stopped.
	GetSpeed() float64

	// IsRolling checks whether the transport moves forward.
	IsRolling() bool

	// GetFrame gets the transport's frame counter.
	GetFrame() int64

	// GetBeatInterval gets the beat length in frames.
	GetBeatInterval() float64

	// GetBarInterval gets the bar length in frames.
	GetBarInterval() float64

	// GetBeat gets the absolute musical time in beats.
	GetBeat() float64

	// GetBar gets the zero-based bar number.
	GetBar() int64

	// GetBarBeat gets the fractional beat position within the bar.
	GetBarBeat() float64

	// GetBeatPhase gets the phase within the current beat.
	GetBeatPhase() float64

	// GetBarPhase gets the phase within the current bar.
	GetBarPhase() float64

	// GetBeatWithinBar returns the one-based beat number relative to the start of the bar.
	GetBeatWithinBar() int

	// IsDownBeat checks whether the current beat is the first beat in its bar.
	IsDownBeat() bool

	// GetMarker returns the position as "bar.beat".
	GetMarker() string

	// DistanceFromBeat determines how far in frames the transport is from its closest beat.
	DistanceFromBeat() float64

	// DistanceFromBar determines how far in frames the transport is from its closest bar boundary.
	DistanceFromBar() float64
}

var _ Snapshot = (*Tracker)(nil)

func (t *Tracker) GetTempo() float64           { return t.pos.BeatsPerMinute }
func (t *Tracker) GetBeatUnit() uint32         { return t.pos.BeatUnit }
func (t *Tracker) GetBeatsPerBar() float64     { return t.pos.BeatsPerBar }
func (t *Tracker) GetFramesPerSecond() float64 { return t.pos.FramesPerSecond }
func (t *Tracker) GetSpeed() float64           { return t.pos.Speed }
func (t *Tracker) IsRolling() bool             { return t.pos.Rolling() }
func (t *Tracker) GetFrame() int64             { return t.pos.Frame }
func (t *Tracker) GetBeatInterval() float64    { return t.framesPerBeat }
func (t *Tracker) GetBarInterval() float64     { return t.framesPerBar }
func (t *Tracker) GetBeat() float64            { return t.pos.Beat }
func (t *Tracker) GetBar() int64               { return t.pos.Bar }
func (t *Tracker) GetBarBeat() float64         { return t.pos.BarBeat }
func (t *Tracker) GetMarker() string           { return t.pos.Marker() }

func (t *Tracker) GetBeatPhase() float64 {
	return markerPhase(t.pos.BarBeat)
}

func (t *Tracker) GetBarPhase() float64 {
	if t.pos.BeatsPerBar <= 0 {
		return 0
	}
	return markerPhase(t.pos.BarBeat / t.pos.BeatsPerBar)
}

func (t *Tracker) GetBeatWithinBar() int {
	return markerNumber(t.pos.BarBeat)
}

func (t *Tracker) IsDownBeat() bool {
	return t.GetBeatWithinBar() == 1
}

func (t *Tracker) DistanceFromBeat() float64 {
	return distance(t.GetBeatPhase(), t.framesPerBeat)
}

func (t *Tracker) DistanceFromBar() float64 {
	return distance(t.GetBarPhase(), t.framesPerBar)
}

// distance converts a phase into the frames to the nearest boundary.
func distance(phase, interval float64) float64 {
	if phase > 0.5 {
		return (1 - phase) * interval
	}
	return phase * interval
}
