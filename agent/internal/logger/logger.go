package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

// Init sends the log to path when set, to stdout otherwise.
func Init(path, level string) error {
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stdout}
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w = file
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	L = zerolog.New(w).Level(lvl).With().Timestamp().Str("component", "agent").Logger()
	return nil
}
