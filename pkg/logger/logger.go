package logx

import (
	"io"
	"os"
	"strings"

	"etapabot/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

// LoggerOpts selects the output format and destination. Output defaults to
// stderr; the chat client points it at a file because the terminal is taken.
type LoggerOpts struct {
	Environment core.Environment
	Output      io.Writer
	Level       string
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

func Init(otps ...LoggerOpts) {
	opts := safe(otps...)
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	if opts.Environment.IsProduction() {
		log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	} else {
		writer := zerolog.NewConsoleWriter()
		writer.Out = out
		writer.NoColor = out != os.Stderr && out != os.Stdout
		log.Logger = zerolog.New(writer).With().Timestamp().Caller().Logger().Level(zerolog.DebugLevel)
	}

	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(lvl)); err == nil {
			log.Logger = log.Logger.Level(parsed)
		}
	}
}

// Disable drops every event. Used by the chat client when no log file is set.
func Disable() {
	log.Logger = zerolog.Nop()
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
