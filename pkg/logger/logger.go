package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level        string `split_words:"true" default:"info"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"shoptalk"`
}

// Init configures the global zerolog logger. Call once at startup; the
// autoload subpackage does this from environment config via a blank import.
func Init(cfg Config) {
	var w io.Writer = os.Stdout
	if cfg.PrettyFormat {
		w = zerolog.NewConsoleWriter()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp().Caller().Stack()
	if svc := strings.TrimSpace(cfg.Service); svc != "" {
		ctx = ctx.Str("service", svc)
	}
	log.Logger = ctx.Logger()
}
