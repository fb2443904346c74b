// Package zap adapts a *zap.Logger to cachette.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/cachette"
	"github.com/unkn0wn-root/cachette/internal/logfields"
)

var _ cachette.Logger = ZapLogger{}

type ZapLogger struct {
	L *zap.Logger
	// Redact, when set, is applied to cache keys and namespaces.
	Redact func(string) string
}

func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l} }

func (z ZapLogger) Debug(msg string, f cachette.Fields) { z.L.Debug(msg, z.fields(f)...) }
func (z ZapLogger) Info(msg string, f cachette.Fields)  { z.L.Info(msg, z.fields(f)...) }
func (z ZapLogger) Warn(msg string, f cachette.Fields)  { z.L.Warn(msg, z.fields(f)...) }
func (z ZapLogger) Error(msg string, f cachette.Fields) { z.L.Error(msg, z.fields(f)...) }

func (z ZapLogger) fields(f cachette.Fields) []zap.Field {
	prepared := logfields.Prepare(f, z.Redact)
	if prepared == nil {
		return nil
	}
	out := make([]zap.Field, len(prepared))
	for i, p := range prepared {
		if err, ok := p.Value.(error); ok && p.Key == "err" {
			out[i] = zap.Error(err)
			continue
		}
		out[i] = zap.Any(p.Key, p.Value)
	}
	return out
}
