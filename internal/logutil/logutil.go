package logutil

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cloud.google.com/go/compute/metadata"
)

// TraceBurst is the number of trace events let through per second. Trace
// events are emitted for every frame of every layer.
const TraceBurst = 200

// ConfigureLogger sets up the global logger. Events below level are dropped,
// an unknown level falls back to info.
func ConfigureLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Stack().Logger()
	if metadata.OnGCE() {
		log.Logger = log.Hook(ErrorHook{})
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = Sample(log.Logger, ParseLevel(level))
}

// ParseLevel returns the zerolog level named by level, info if it's empty or unknown.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Sample drops events below level and rate limits trace events.
func Sample(l zerolog.Logger, level zerolog.Level) zerolog.Logger {
	return l.Level(level).Sample(&zerolog.LevelSampler{
		TraceSampler: &zerolog.BurstSampler{
			Burst:  TraceBurst,
			Period: time.Second,
		},
	})
}

type ErrorHook struct{}

func (h ErrorHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	e.Str("severity", level.String())
}
