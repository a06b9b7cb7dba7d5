package worker

// Guard discards results that a newer request has made stale. Every
// reposition request opens a new generation and puts the guard into the
// draining state until the worker echoes that generation's drain marker.
type Guard struct {
	gen      uint64
	draining bool
}

// Next is the generation the next request should carry.
func (g *Guard) Next() uint64 {
	return g.gen + 1
}

// Commit starts generation gen after its request was accepted.
func (g *Guard) Commit(gen uint64) {
	g.gen = gen
	g.draining = true
}

func (g *Guard) Generation() uint64 {
	return g.gen
}

func (g *Guard) Draining() bool {
	return g.draining
}

// Accept reports whether job carries current data. A drain marker of the
// current generation ends draining and is itself never accepted.
func (g *Guard) Accept(job Job) bool {
	if job.Kind == JobDrain {
		if job.Gen == g.gen {
			g.draining = false
		}
		return false
	}
	return !g.draining && job.Gen == g.gen
}
