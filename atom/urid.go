package atom

// URID is the integer identifier a host assigns to a URI.
type URID uint32

// Mapper maps URIs to URIDs. Implementations must return the same URID for
// the same URI for the lifetime of the host and never return 0 for a
// non-empty URI.
type Mapper interface {
	Map(uri string) URID
}

// Unmapper maps URIDs back to their URIs.
type Unmapper interface {
	Unmap(urid URID) string
}

const (
	URIObject = "http://lv2plug.in/ns/ext/atom#Object"
	URIInt    = "http://lv2plug.in/ns/ext/atom#Int"
	URILong   = "http://lv2plug.in/ns/ext/atom#Long"
	URIFloat  = "http://lv2plug.in/ns/ext/atom#Float"
	URIDouble = "http://lv2plug.in/ns/ext/atom#Double"
	URIBool   = "http://lv2plug.in/ns/ext/atom#Bool"
	URIChunk  = "http://lv2plug.in/ns/ext/atom#Chunk"

	URIMidiEvent = "http://lv2plug.in/ns/ext/midi#MidiEvent"

	URITimePosition        = "http://lv2plug.in/ns/ext/time#Position"
	URITimeBarBeat         = "http://lv2plug.in/ns/ext/time#barBeat"
	URITimeBar             = "http://lv2plug.in/ns/ext/time#bar"
	URITimeBeat            = "http://lv2plug.in/ns/ext/time#beat"
	URITimeBeatUnit        = "http://lv2plug.in/ns/ext/time#beatUnit"
	URITimeBeatsPerBar     = "http://lv2plug.in/ns/ext/time#beatsPerBar"
	URITimeBeatsPerMinute  = "http://lv2plug.in/ns/ext/time#beatsPerMinute"
	URITimeFrame           = "http://lv2plug.in/ns/ext/time#frame"
	URITimeFramesPerSecond = "http://lv2plug.in/ns/ext/time#framesPerSecond"
	URITimeSpeed           = "http://lv2plug.in/ns/ext/time#speed"

	URIDrain = "http://open-music-kontrollers.ch/lv2/orbit#drain"
)

// URIDs holds the mapped identifiers every orbit component needs. It is
// filled once at instantiation so the processing path never maps strings.
type URIDs struct {
	Object URID
	Int    URID
	Long   URID
	Float  URID
	Double URID
	Bool   URID
	Chunk  URID

	MidiEvent URID

	TimePosition        URID
	TimeBarBeat         URID
	TimeBar             URID
	TimeBeat            URID
	TimeBeatUnit        URID
	TimeBeatsPerBar     URID
	TimeBeatsPerMinute  URID
	TimeFrame           URID
	TimeFramesPerSecond URID
	TimeSpeed           URID

	Drain URID
}

// MapURIDs maps the full vocabulary through m.
func MapURIDs(m Mapper) *URIDs {
	return &URIDs{
		Object: m.Map(URIObject),
		Int:    m.Map(URIInt),
		Long:   m.Map(URILong),
		Float:  m.Map(URIFloat),
		Double: m.Map(URIDouble),
		Bool:   m.Map(URIBool),
		Chunk:  m.Map(URIChunk),

		MidiEvent: m.Map(URIMidiEvent),

		TimePosition:        m.Map(URITimePosition),
		TimeBarBeat:         m.Map(URITimeBarBeat),
		TimeBar:             m.Map(URITimeBar),
		TimeBeat:            m.Map(URITimeBeat),
		TimeBeatUnit:        m.Map(URITimeBeatUnit),
		TimeBeatsPerBar:     m.Map(URITimeBeatsPerBar),
		TimeBeatsPerMinute:  m.Map(URITimeBeatsPerMinute),
		TimeFrame:           m.Map(URITimeFrame),
		TimeFramesPerSecond: m.Map(URITimeFramesPerSecond),
		TimeSpeed:           m.Map(URITimeSpeed),

		Drain: m.Map(URIDrain),
	}
}
