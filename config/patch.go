package config

import "fmt"

// PatchedModule stores config info for one module instance in the processing chain
type PatchedModule struct {
	Name   string             `yaml:"name"`
	Module string             `yaml:"module"`
	Params map[string]float64 `yaml:"params"`
}

// Validate checks that the patch entry names a module.
func (p PatchedModule) Validate() error {
	if p.Module == "" {
		return fmt.Errorf("patch entry %q does not name a module", p.Name)
	}
	return nil
}

// DefaultPatch is the chain used when no config file provides one: a beat
// click generator followed by a transport monitor.
func DefaultPatch() []PatchedModule {
	return []PatchedModule{
		{
			Name:   "click",
			Module: "beatbox",
			Params: map[string]float64{
				"beat_note": 36,
				"bar_note":  48,
			},
		},
		{
			Name:   "monitor",
			Module: "monitor",
		},
	}
}
