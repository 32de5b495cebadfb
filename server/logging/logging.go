// Package logging builds the process-wide zerolog logger from configuration.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zeeshan-mehdi/ARISXR/server/config"
)

// New returns a logger writing to stderr. Unknown levels fall back to info;
// any format other than "json" gets the console writer.
func New(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.Level(level).With().Timestamp().Logger()
}
