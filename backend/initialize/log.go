package initialize

import (
	"io"
	"os"
	"time"

	"flyvemdm/backend/config"
	"flyvemdm/backend/global"

	"github.com/rs/zerolog"
)

func init() {
	// console output until the configuration is known
	global.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}

// SetupLogger switches global.Logger to the configured level and format.
func SetupLogger(cfg config.Log) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if cfg.JSON {
		out = os.Stdout
	}
	global.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
