package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog builds the logger handed to the influx and database managers. It
// writes uncolored console lines to w and, when provider is set, adds the
// mission attributes to every event.
func NewZerolog(w io.Writer, level string, provider ContextProvider) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	if provider == nil {
		return logger
	}
	return logger.Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
		for _, a := range provider() {
			e.Str(a.Key, a.Value.String())
		}
	}))
}
