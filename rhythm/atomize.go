package rhythm

import "github.com/robmorgan/orbit/atom"

// Atomize writes pos as a complete time:Position object. The returned atom
// aliases b.
func Atomize(b *atom.ObjectBuilder, u *atom.URIDs, pos Position) (atom.Atom, bool) {
	b.Begin(u.TimePosition)
	b.Float(u.TimeBarBeat, float32(pos.BarBeat))
	b.Long(u.TimeBar, pos.Bar)
	b.Double(u.TimeBeat, pos.Beat)
	b.Int(u.TimeBeatUnit, int32(pos.BeatUnit))
	b.Float(u.TimeBeatsPerBar, float32(pos.BeatsPerBar))
	b.Float(u.TimeBeatsPerMinute, float32(pos.BeatsPerMinute))
	b.Long(u.TimeFrame, pos.Frame)
	b.Float(u.TimeFramesPerSecond, float32(pos.FramesPerSecond))
	b.Float(u.TimeSpeed, float32(pos.Speed))
	return b.Atom()
}
