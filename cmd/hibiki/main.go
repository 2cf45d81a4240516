package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmoraru/hibiki/common/environment"
	"github.com/dmoraru/hibiki/common/version"
	"github.com/dmoraru/hibiki/internal/hibiki/app"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

func main() {
	// A local .env is a convenience for development; absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded configuration from .env")
	}

	setupLogging()

	fmt.Printf("Hibiki %s\n", version.Info())

	cfg := loadConfig()

	ctx := context.Background()
	bot, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Hibiki: %v\n", err)
		os.Exit(1)
	}
	defer bot.Stop()

	if err := bot.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Hibiki: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig assembles the application configuration from the environment.
func loadConfig() *app.Config {
	return &app.Config{
		Homeserver:   environment.StringOr("HIBIKI_MATRIX_HOMESERVER", ""),
		UserID:       environment.StringOr("HIBIKI_MATRIX_USER_ID", ""),
		AccessToken:  environment.StringOr("HIBIKI_MATRIX_ACCESS_TOKEN", ""),
		OperatorMXID: environment.StringOr("HIBIKI_OPERATOR_MXID", ""),
		Rooms:        environment.StringSliceOr("HIBIKI_MATRIX_ROOMS", nil),

		DBPath:          environment.StringOr("HIBIKI_DATABASE_PATH", "./hibiki.db"),
		AuditPath:       environment.StringOr("HIBIKI_AUDIT_PATH", "./hibiki-audit.jsonl"),
		ScriptsDir:      environment.StringOr("HIBIKI_SCRIPTS_DIR", ""),
		ShellPolicyPath: environment.StringOr("HIBIKI_SHELL_POLICY", ""),
		SandboxImage:    environment.StringOr("HIBIKI_SANDBOX_IMAGE", ""),

		OpenAI: nlp.Config{
			APIKey:  environment.StringOr("HIBIKI_OPENAI_API_KEY", ""),
			BaseURL: environment.StringOr("HIBIKI_OPENAI_BASE_URL", ""),
			Model:   environment.StringOr("HIBIKI_OPENAI_MODEL", ""),
			Timeout: environment.DurationOr("HIBIKI_OPENAI_TIMEOUT", 30*time.Second),
		},

		CalendarCredentials: environment.StringOr("HIBIKI_CALENDAR_CREDENTIALS", ""),
		CalendarToken:       environment.StringOr("HIBIKI_CALENDAR_TOKEN", ""),
		CalendarID:          environment.StringOr("HIBIKI_CALENDAR_ID", ""),

		Timezone:  environment.StringOr("HIBIKI_TIMEZONE", ""),
		RateLimit: environment.IntOr("HIBIKI_RATE_LIMIT", nlp.DefaultRateLimit),
	}
}

// setupLogging configures slog from HIBIKI_LOG_LEVEL and HIBIKI_LOG_FORMAT.
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(environment.StringOr("HIBIKI_LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if environment.StringOr("HIBIKI_LOG_FORMAT", "text") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
