package cmd

import (
	"github.com/robmorgan/orbit/beatbox"
	"github.com/robmorgan/orbit/cargoship"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/looper"
	"github.com/robmorgan/orbit/monitor"
	"github.com/robmorgan/orbit/pacemaker"
	"github.com/robmorgan/orbit/quantum"
	"github.com/robmorgan/orbit/subspace"
	"github.com/robmorgan/orbit/timecapsule"
)

// newRegistry knows every module shipped with orbit.
func newRegistry() (*host.Registry, error) {
	r := host.NewRegistry()
	for _, d := range []host.Descriptor{
		beatbox.Descriptor(),
		cargoship.Descriptor(),
		looper.Descriptor(),
		monitor.Descriptor(),
		pacemaker.Descriptor(),
		quantum.Descriptor(),
		subspace.Descriptor(),
		timecapsule.Descriptor(),
	} {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
