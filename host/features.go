package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/logger"
	"github.com/robmorgan/orbit/worker"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingMap      = errors.New("host does not support urid:map")
	ErrMissingUnmap    = errors.New("host does not support urid:unmap")
	ErrMissingSchedule = errors.New("host does not support worker:schedule")
	ErrMissingMakePath = errors.New("host does not support state:makePath")
)

// Scheduler runs a worker's loop on behalf of a module.
type Scheduler interface {
	Schedule(w *worker.Worker)
}

// PathMaker turns a file name into a writable path.
type PathMaker interface {
	MakePath(name string) (string, error)
}

// Features are the capabilities a host offers to module instances. Any of
// them may be missing; modules that need one refuse to instantiate.
type Features struct {
	Map      atom.Mapper
	Unmap    atom.Unmapper
	Schedule Scheduler
	Log      *logrus.Entry
	MakePath PathMaker
}

func (f Features) RequireMap() (atom.Mapper, error) {
	if f.Map == nil {
		return nil, goerrors.WithStackTrace(ErrMissingMap)
	}
	return f.Map, nil
}

func (f Features) RequireUnmap() (atom.Unmapper, error) {
	if f.Unmap == nil {
		return nil, goerrors.WithStackTrace(ErrMissingUnmap)
	}
	return f.Unmap, nil
}

func (f Features) RequireSchedule() (Scheduler, error) {
	if f.Schedule == nil {
		return nil, goerrors.WithStackTrace(ErrMissingSchedule)
	}
	return f.Schedule, nil
}

func (f Features) RequireMakePath() (PathMaker, error) {
	if f.MakePath == nil {
		return nil, goerrors.WithStackTrace(ErrMissingMakePath)
	}
	return f.MakePath, nil
}

// Logger returns the host log, falling back to the project logger.
func (f Features) Logger() *logrus.Entry {
	if f.Log != nil {
		return f.Log
	}
	return logger.GetProjectLogger()
}

// Tracing reports whether the processing path may emit trace messages.
func (f Features) Tracing() bool {
	return f.Log != nil
}

// DirPathMaker creates paths below a directory.
type DirPathMaker struct {
	Dir string
}

func (d DirPathMaker) MakePath(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid state file name %q", name)
	}
	path := filepath.Join(d.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", goerrors.WithStackTrace(err)
	}
	return path, nil
}
