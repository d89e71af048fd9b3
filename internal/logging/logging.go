// Package logging builds the logrus loggers used by the CLI and the API server.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const DefaultLevel = "warn"

// New returns a text logger writing to out at the given level. An empty
// level selects DefaultLevel; "json" as a format suffix (e.g. "info,json")
// switches to the JSON formatter.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	level = strings.TrimSpace(strings.ToLower(level))
	jsonOutput := false
	if base, format, ok := strings.Cut(level, ","); ok {
		level = strings.TrimSpace(base)
		switch strings.TrimSpace(format) {
		case "json":
			jsonOutput = true
		case "text", "":
		default:
			return nil, fmt.Errorf("unknown log format %q", format)
		}
	}
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	if jsonOutput {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	}
	return log, nil
}

// Discard returns a logger that drops everything. Used when no logger is wired.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log *logrus.Logger) *logrus.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
