package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger. The json format carries source
// locations for log aggregation; the default pretty format is a plain text
// handler that also emits debug records outside production.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With(slog.String("service", "centinela"))
}
