package host

import "github.com/robmorgan/orbit/atom"

// Stage is one module in a Chain together with its output sequence.
type Stage struct {
	Name   string
	Module Module
	Out    *atom.Sequence
}

// Chain runs a transport source followed by modules in series. Every stage
// receives the transport merged with the output of the stage before it.
type Chain struct {
	source    Module
	transport *atom.Sequence
	none      *atom.Sequence
	in        *atom.Sequence
	stages    []Stage
	capacity  int
}

// NewChain creates a chain whose sequences hold capacity bytes each.
func NewChain(source Module, capacity int) *Chain {
	return &Chain{
		source:    source,
		transport: atom.NewSequence(capacity, atom.UnitFrames),
		none:      atom.NewSequence(0, atom.UnitFrames),
		in:        atom.NewSequence(2*capacity, atom.UnitFrames),
		capacity:  capacity,
	}
}

// Add appends m to the end of the chain.
func (c *Chain) Add(name string, m Module) {
	c.stages = append(c.stages, Stage{
		Name:   name,
		Module: m,
		Out:    atom.NewSequence(c.capacity, atom.UnitFrames),
	})
}

func (c *Chain) Stages() []Stage {
	return c.stages
}

// Transport is the source output of the last block.
func (c *Chain) Transport() *atom.Sequence {
	return c.transport
}

func (c *Chain) Activate() {
	c.source.Activate()
	for _, s := range c.stages {
		s.Module.Activate()
	}
}

// Run processes one block through every stage. It reports false when a
// merged input did not fit, in which case that stage saw a truncated input.
func (c *Chain) Run(nsamples int64) bool {
	c.source.Run(c.none, c.transport, nsamples)

	ok := true
	prev := c.none
	for _, s := range c.stages {
		if !Merge(c.in, c.transport, prev) {
			ok = false
		}
		s.Module.Run(c.in, s.Out, nsamples)
		prev = s.Out
	}
	return ok
}

func (c *Chain) Deactivate() {
	for _, s := range c.stages {
		s.Module.Deactivate()
	}
	c.source.Deactivate()
}

// Close closes every module and returns the first error.
func (c *Chain) Close() error {
	err := c.source.Close()
	for _, s := range c.stages {
		if cerr := s.Module.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
