package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewParsesLevel(t *testing.T) {
	ctx := context.Background()

	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"мусор": slog.LevelInfo,
	}
	for in, want := range cases {
		l := New(in)
		require.True(t, l.Enabled(ctx, want), in)
		if want > slog.LevelDebug {
			require.False(t, l.Enabled(ctx, want-4), in)
		}
	}
}
