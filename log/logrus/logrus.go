// Package logrus adapts a *logrus.Entry to cachette.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/cachette"
	"github.com/unkn0wn-root/cachette/internal/logfields"
)

var _ cachette.Logger = LogrusLogger{}

type LogrusLogger struct {
	E *logrus.Entry
	// Redact, when set, is applied to cache keys and namespaces.
	Redact func(string) string
}

func New(l *logrus.Logger) LogrusLogger { return LogrusLogger{E: logrus.NewEntry(l)} }

func (l LogrusLogger) Debug(msg string, f cachette.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f cachette.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f cachette.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f cachette.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f cachette.Fields) *logrus.Entry {
	prepared := logfields.Prepare(f, l.Redact)
	if prepared == nil {
		return l.E
	}
	fields := make(logrus.Fields, len(prepared))
	for _, p := range prepared {
		k := p.Key
		if k == "err" {
			k = logrus.ErrorKey
		}
		fields[k] = p.Value
	}
	return l.E.WithFields(fields)
}
