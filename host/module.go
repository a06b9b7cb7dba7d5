package host

import "github.com/robmorgan/orbit/atom"

// Module is a processing unit driven one block at a time.
type Module interface {
	Activate()
	// Run consumes the time ordered events of in and fills out for a block
	// of nsamples frames. It must not block or allocate.
	Run(in, out *atom.Sequence, nsamples int64)
	Deactivate()
	Close() error
}

// Stateful modules can persist and restore their state.
type Stateful interface {
	Save() ([]byte, error)
	Restore(blob []byte) error
}

// Parameterized modules expose named control inputs. Controls are sampled
// once per block.
type Parameterized interface {
	Params() []string
	SetParam(name string, value float64) error
}

// Reporter modules expose control outputs.
type Reporter interface {
	Status() map[string]float64
}
