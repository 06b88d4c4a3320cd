// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/QYUbit/ticksim/internal/config"
	"github.com/QYUbit/ticksim/pkg/axlog"
	charmadapter "github.com/QYUbit/ticksim/pkg/axlog/charm_adapter"
	slogadapter "github.com/QYUbit/ticksim/pkg/axlog/slog_adapter"
)

func New(w io.Writer, cfg config.Config, prefix string) (axlog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch cfg.LogFormat {
	case "text":
		return slogadapter.NewText(w, level), nil
	case "json":
		return slogadapter.NewJSON(w, level), nil
	case "charm":
		return charmadapter.NewWithLevel(w, prefix, charmLevel(level)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
}

func charmLevel(level slog.Level) log.Level {
	switch {
	case level <= slog.LevelDebug:
		return log.DebugLevel
	case level <= slog.LevelInfo:
		return log.InfoLevel
	case level <= slog.LevelWarn:
		return log.WarnLevel
	}
	return log.ErrorLevel
}
