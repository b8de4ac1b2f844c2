// Package logging настраивает slog для всего процесса.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New возвращает JSON-логгер с уровнем из конфига. Неизвестное
// значение уровня трактуется как info.
func New(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch strings.ToLower(level) {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
