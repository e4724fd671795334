// Package telemetry wraps zerolog the way ehrlich-b-go-ublk/internal/logging
// wraps stdlib log: a package-level default logger plus leveled helpers,
// but backed by a real structured-logging library instead of stdlib log.
package telemetry

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	current zerolog.Logger
)

func init() {
	current = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}

// Default returns the current default logger.
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &current
}

// SetDefault replaces the default logger, e.g. once --print-cmd-trace
// requires Debug-level output.
func SetDefault(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// SetLevel adjusts the default logger's minimum level in place.
func SetLevel(lvl zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	current = current.Level(lvl)
}

// Named returns a child logger tagged with component=name, the convention
// the controller and each cache instance use to label their lines.
func Named(name string) zerolog.Logger {
	return Default().With().Str("component", name).Logger()
}
