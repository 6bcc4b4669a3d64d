// Package logging wraps logrus the way the rest of the corpus does:
// a thin struct embedding *logrus.Logger, JSON-formatted, component-tagged
// via WithField instead of bespoke printf wrappers.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with the defaults this runtime expects.
type Logger struct {
	*logrus.Logger
}

// New creates a logger at the given level ("debug", "info", "warn", "error").
func New(level string) *Logger {
	log := logrus.New()

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetOutput(os.Stdout)

	return &Logger{log}
}

// Component returns a child entry tagged with the owning subsystem, used
// the way the teacher tags debug messages by component name.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}

// RateLimited returns true once every n calls for the given counter,
// implementing the "one log per 100 errors" rate-limit rule from
// spec.md §7 without pulling in a dedicated rate-limiting library.
type RateLimited struct {
	n     uint64
	count uint64
}

// NewRateLimited builds a counter that allows through every nth call.
func NewRateLimited(n uint64) *RateLimited {
	if n == 0 {
		n = 1
	}
	return &RateLimited{n: n}
}

// Allow increments the counter and reports whether this call should log.
func (r *RateLimited) Allow() bool {
	r.count++
	return (r.count-1)%r.n == 0
}
