package host

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/robmorgan/orbit/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Constructor instantiates a module.
type Constructor func(cfg config.OrbitConfig, f Features) (Module, error)

// Descriptor describes one module type.
type Descriptor struct {
	Name        string
	URI         string
	Description string
	New         Constructor
}

// Registry holds the module types a host can instantiate.
type Registry struct {
	Descriptors map[string]Descriptor
}

// Create a new Registry object with no modules.
func NewRegistry() *Registry {
	return &Registry{
		Descriptors: make(map[string]Descriptor),
	}
}

// Register adds d under its short name.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" || d.New == nil {
		return fmt.Errorf("module descriptor %q is incomplete", d.URI)
	}
	if _, found := r.Descriptors[d.Name]; found {
		return fmt.Errorf("the registry already contains a module with the name: %s", d.Name)
	}
	r.Descriptors[d.Name] = d
	return nil
}

// Lookup finds a descriptor by short name or URI.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	if d, found := r.Descriptors[id]; found {
		return d, nil
	}
	for _, d := range r.Descriptors {
		if d.URI == id {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("the registry does not contain a module with the id: %s", id)
}

// Instantiate creates a module instance with its own instance id.
func (r *Registry) Instantiate(id string, cfg config.OrbitConfig, f Features) (Module, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}

	instance := uuid.New().String()
	fields := logrus.Fields{"module": d.Name, "instance": instance}
	if f.Log != nil {
		f.Log = f.Log.WithFields(fields)
	}

	m, err := d.New(cfg, f)
	if err != nil {
		f.Logger().WithFields(fields).WithError(err).Error("Module refused to instantiate")
		return nil, err
	}
	f.Logger().WithFields(fields).Debug("Instantiated module")
	return m, nil
}

// Names returns the registered short names in order.
func (r *Registry) Names() []string {
	names := maps.Keys(r.Descriptors)
	slices.Sort(names)
	return names
}

// Count returns the number of registered modules
func (r *Registry) Count() int {
	return len(r.Descriptors)
}
