package charmadapter

import (
	"io"

	"github.com/charmbracelet/log"
)

type Adapter struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// NewWithLevel builds a timestamped charm logger with the given prefix.
func NewWithLevel(w io.Writer, prefix string, level log.Level) *Adapter {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})
	return New(logger)
}

func (a *Adapter) Info(msg string, keysAndValues ...any) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *Adapter) Error(msg string, keysAndValues ...any) {
	a.logger.Error(msg, keysAndValues...)
}

func (a *Adapter) Debug(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *Adapter) Warn(msg string, keysAndValues ...any) {
	a.logger.Warn(msg, keysAndValues...)
}
