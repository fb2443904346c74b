package cachette

import "github.com/unkn0wn-root/cachette/backend"

// Fields is a minimal structured field map for logs.
type Fields = backend.Fields

// Logger is a tiny leveled logger. Provide an adapter around your logging
// stack (see log/zap, log/logrus, log/slog; log/async keeps slow sinks off
// the hot path). Nil disables logging.
type Logger = backend.Logger

type NopLogger = backend.NopLogger
