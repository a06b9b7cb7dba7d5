package logger

import (
	"sync"

	"github.com/gruntwork-io/go-commons/logging"
	"github.com/sirupsen/logrus"
)

var (
	projectLoggerOnce sync.Once
	projectLogger     *logrus.Entry
)

// GetProjectLogger returns the logger shared by every orbit package.
func GetProjectLogger() *logrus.Entry {
	projectLoggerOnce.Do(func() {
		projectLogger = logging.GetLogger("orbit").WithField("project", "orbit")
	})
	return projectLogger
}

// SetLevel parses a logrus level name and applies it to the project logger
// and to loggers created after it.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logging.SetGlobalLogLevel(lvl)
	GetProjectLogger().Logger.SetLevel(lvl)
	return nil
}
