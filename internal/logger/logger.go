// Package logger configures the global zerolog logger from command line options.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger holds logging options, embedded into command options as a flags group.
type Logger struct {
	// Output defaults to stderr.
	Output io.Writer `no-flag:"true"`

	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" choice:"disabled" default:"info"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format" choice:"text" choice:"json" default:"text"`
	Color  string `long:"log-color"  env:"LOG_COLOR"  description:"Colorize text output" choice:"auto" choice:"always" choice:"never" default:"auto"`
}

// Setup applies the options to the global logger.
func (l Logger) Setup() {
	out := l.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if l.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    !l.colored(out),
		TimeFormat: time.DateTime,
	}).With().Timestamp().Logger()
}

func (l Logger) colored(out io.Writer) bool {
	switch l.Color {
	case "always":
		return true
	case "never":
		return false
	}

	f, ok := out.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
