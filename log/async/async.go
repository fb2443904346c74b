// Package async wraps a cachette.Logger so that backend hot paths never wait
// on a slow log sink. Records go through a bounded queue drained by a fixed
// set of workers; when the queue is full the record is dropped.
package async

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/cachette"
)

var _ cachette.Logger = (*Logger)(nil)

type Logger struct {
	inner   cachette.Logger
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// New starts workers goroutines (default 1) behind a queue of qlen records
// (default 1024).
func New(inner cachette.Logger, workers, qlen int) *Logger {
	if inner == nil {
		inner = cachette.NopLogger{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	l := &Logger{inner: inner, q: make(chan func(), qlen)}
	l.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer l.wg.Done()
			for f := range l.q {
				f()
			}
		}()
	}
	return l
}

// Close drains queued records and stops the workers. Records logged after
// Close are counted as dropped.
func (l *Logger) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.q)
		l.mu.Unlock()
		l.wg.Wait()
	})
}

// Dropped reports how many records were discarded.
func (l *Logger) Dropped() uint64 { return l.dropped.Load() }

func (l *Logger) try(f func()) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.q <- f:
	default:
		l.dropped.Add(1)
	}
}

// Fields maps are copied so callers may reuse them.
func clone(f cachette.Fields) cachette.Fields {
	if f == nil {
		return nil
	}
	c := make(cachette.Fields, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

func (l *Logger) Debug(msg string, f cachette.Fields) {
	f = clone(f)
	l.try(func() { l.inner.Debug(msg, f) })
}

func (l *Logger) Info(msg string, f cachette.Fields) {
	f = clone(f)
	l.try(func() { l.inner.Info(msg, f) })
}

func (l *Logger) Warn(msg string, f cachette.Fields) {
	f = clone(f)
	l.try(func() { l.inner.Warn(msg, f) })
}

func (l *Logger) Error(msg string, f cachette.Fields) {
	f = clone(f)
	l.try(func() { l.inner.Error(msg, f) })
}
