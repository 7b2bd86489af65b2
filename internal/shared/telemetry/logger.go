package telemetry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
	once   sync.Once
)

// Init builds the process logger for the given environment. Production
// environments log JSON at info level; everything else uses zap's development
// config. Calling Init again replaces the logger.
func Init(env string) error {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "prod", "production", "staging":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	zl, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return err
	}
	mu.Lock()
	logger = zl.Sugar()
	mu.Unlock()
	return nil
}

// SetLogger swaps the underlying logger, mainly for tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	logger = l.WithOptions(zap.AddCallerSkip(2)).Sugar()
	mu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	current().Infow(msg, keyvals(fields)...)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	current().Warnw(msg, keyvals(fields)...)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	current().Errorw(msg, keyvals(fields)...)
}

func current() *zap.SugaredLogger {
	once.Do(func() {
		mu.RLock()
		ready := logger != nil
		mu.RUnlock()
		if ready {
			return
		}
		if err := Init(os.Getenv("ENV")); err != nil {
			mu.Lock()
			logger = zap.NewNop().Sugar()
			mu.Unlock()
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func keyvals(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}
