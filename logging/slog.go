// Package logging configures the process-wide slog logger: JSON to stdout,
// optionally fanned out to Sentry for warnings and above.
package logging

import (
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

type Config struct {
	Level        slog.Level
	AddSource    bool
	SentryConfig sentry.ClientOptions
}

func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// Init installs the configured logger as the slog default.
func Init(c Config) error {
	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     c.Level,
			AddSource: c.AddSource,
		}),
	}

	if c.SentryConfig.Dsn != "" {
		if err := sentry.Init(c.SentryConfig); err != nil {
			return err
		}
		handlers = append(handlers, slogsentry.Option{
			Level:     slog.LevelWarn,
			AddSource: c.AddSource,
		}.NewSentryHandler())
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
	return nil
}
