//go:build go1.21

// Package slog adapts a *slog.Logger to cachette.Logger.
package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/cachette"
	"github.com/unkn0wn-root/cachette/internal/logfields"
)

var _ cachette.Logger = Logger{}

type Logger struct {
	L *stdslog.Logger
	// Redact, when set, is applied to cache keys and namespaces.
	Redact func(string) string
}

func (s Logger) Debug(msg string, f cachette.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f cachette.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f cachette.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f cachette.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(level stdslog.Level, msg string, f cachette.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	prepared := logfields.Prepare(f, s.Redact)
	attrs := make([]stdslog.Attr, len(prepared))
	for i, p := range prepared {
		attrs[i] = stdslog.Any(p.Key, p.Value)
	}
	s.L.LogAttrs(ctx, level, msg, attrs...)
}
