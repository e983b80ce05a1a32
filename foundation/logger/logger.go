// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a Sugared Logger that writes to stdout and
// provides human readable timestamps.
func New(service string, outputPaths ...string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	if len(outputPaths) > 0 {
		config.OutputPaths = outputPaths
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

// EventHandler adapts the logger to the event handler signature the
// blockchain packages accept. Every event is also handed to the sinks.
func EventHandler(log *zap.SugaredLogger, sinks ...func(string)) func(v string, args ...any) {
	return func(v string, args ...any) {
		s := sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")

		for _, sink := range sinks {
			sink(s)
		}
	}
}
