package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologConfig holds configuration for the zerolog-backed Logger.
type ZerologConfig struct {
	Level   string
	Format  string // json or console
	Output  io.Writer
	Service string
}

// NewZerolog returns a Logger backed by zerolog. The zero value of cfg yields
// a JSON logger at info level writing to stdout.
func NewZerolog(cfg ZerologConfig) Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var zl zerolog.Logger
	if cfg.Format == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		})
	} else {
		zl = zerolog.New(output)
	}

	ctx := zl.Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return zerologLogger{zl: ctx.Logger()}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l zerologLogger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l zerologLogger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l zerologLogger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l zerologLogger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func (l zerologLogger) With(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			ctx = ctx.Str(f.Key(), v)
		case int:
			ctx = ctx.Int(f.Key(), v)
		case int64:
			ctx = ctx.Int64(f.Key(), v)
		case error:
			ctx = ctx.AnErr(f.Key(), v)
		default:
			ctx = ctx.Interface(f.Key(), v)
		}
	}
	return zerologLogger{zl: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			ev = ev.Str(f.Key(), v)
		case int:
			ev = ev.Int(f.Key(), v)
		case int64:
			ev = ev.Int64(f.Key(), v)
		case error:
			ev = ev.AnErr(f.Key(), v)
		default:
			ev = ev.Interface(f.Key(), v)
		}
	}
	ev.Msg(msg)
}
