package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSampleRate       = 48000.0
	DefaultBlockSize        = 512
	DefaultTimelineCapacity = 0x1000000
	DefaultOutputCapacity   = 0x2000
	DefaultRingCapacity     = 4096
	DefaultWorkerIdle       = 25 * time.Millisecond
)

// GetOrbitConfig returns the default configuration
func GetOrbitConfig() OrbitConfig {
	val, _ := NewOrbitConfig()
	return val
}

// OrbitConfig represents options that configure the global behavior of the program
type OrbitConfig struct {
	// SampleRate is the host sample rate in frames per second.
	SampleRate float64 `yaml:"sample_rate"`

	// BlockSize is the number of frames per processing block.
	BlockSize int64 `yaml:"block_size"`

	// TimelineCapacity is the byte capacity of each timeline buffer.
	TimelineCapacity int `yaml:"timeline_capacity"`

	// OutputCapacity is the byte capacity of a module's output sequence.
	OutputCapacity int `yaml:"output_capacity"`

	// RingCapacity is the number of jobs a worker ring can hold.
	RingCapacity int `yaml:"ring_capacity"`

	// WorkerIdle is how long an idle worker waits before polling again.
	WorkerIdle time.Duration `yaml:"worker_idle"`

	// ArchiveDir is where timecapsule archives are created.
	ArchiveDir string `yaml:"archive_dir"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`

	// Patch is the chain of modules run after the transport generator.
	Patch []PatchedModule `yaml:"patch"`
}

// Create a new OrbitConfig object with reasonable defaults for real usage
func NewOrbitConfig() (OrbitConfig, error) {
	return OrbitConfig{
		SampleRate:       DefaultSampleRate,
		BlockSize:        DefaultBlockSize,
		TimelineCapacity: DefaultTimelineCapacity,
		OutputCapacity:   DefaultOutputCapacity,
		RingCapacity:     DefaultRingCapacity,
		WorkerIdle:       DefaultWorkerIdle,
		ArchiveDir:       os.TempDir(),
		LogLevel:         "info",
	}, nil
}

// Load reads a YAML file and overlays it on the defaults.
func Load(path string) (OrbitConfig, error) {
	cfg, err := NewOrbitConfig()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WithStackTrace(err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WithStackTraceAndPrefix(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every size and rate is usable.
func (c OrbitConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample_rate must be positive, got %v", c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	case c.TimelineCapacity <= 0:
		return fmt.Errorf("timeline_capacity must be positive, got %d", c.TimelineCapacity)
	case c.OutputCapacity <= 0:
		return fmt.Errorf("output_capacity must be positive, got %d", c.OutputCapacity)
	case c.RingCapacity <= 0:
		return fmt.Errorf("ring_capacity must be positive, got %d", c.RingCapacity)
	case c.WorkerIdle <= 0:
		return fmt.Errorf("worker_idle must be positive, got %v", c.WorkerIdle)
	}
	for _, p := range c.Patch {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
