package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the process-wide zerolog logger and installs the global
// level. level is a zerolog level name (trace through panic, info when
// unparseable). format selects the writer: "pretty" renders a console
// writer, anything else emits JSON lines.
//
// Logs always go to stderr. The agent CLI shares its terminal between the
// command prompt on stdout and log output, so the two streams must not
// interleave.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var writer io.Writer = os.Stderr
	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}
