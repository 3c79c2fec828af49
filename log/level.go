// Package log is a module-aware wrapper around logrus. Warnings and
// errors are always emitted; informational and debug output is emitted
// only for modules enabled with EnableDebugModules.
package log

import (
	"io"

	"gopkg.in/Sirupsen/logrus.v0"
)

// Level is a logrus severity level.
type Level = logrus.Level

// Severity levels, from most to least severe.
const (
	PanicLevel = logrus.PanicLevel
	FatalLevel = logrus.FatalLevel
	ErrorLevel = logrus.ErrorLevel
	WarnLevel  = logrus.WarnLevel
	InfoLevel  = logrus.InfoLevel
	DebugLevel = logrus.DebugLevel
)

// Fields is a set of key/value pairs attached to an entry.
type Fields logrus.Fields

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	logrus.SetLevel(DebugLevel)
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	logrus.SetOutput(w)
}

// AddHook installs a logrus hook on the standard logger.
func AddHook(h logrus.Hook) {
	logrus.AddHook(h)
}
