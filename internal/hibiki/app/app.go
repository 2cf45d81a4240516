// Package app wires Hibiki together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/dmoraru/hibiki/common/version"
	"github.com/dmoraru/hibiki/internal/hibiki/audit"
	"github.com/dmoraru/hibiki/internal/hibiki/calendar"
	"github.com/dmoraru/hibiki/internal/hibiki/catalog"
	"github.com/dmoraru/hibiki/internal/hibiki/commands"
	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/execute"
	"github.com/dmoraru/hibiki/internal/hibiki/matrix"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
	"github.com/dmoraru/hibiki/internal/hibiki/proc"
	"github.com/dmoraru/hibiki/internal/hibiki/resolve"
	"github.com/dmoraru/hibiki/internal/hibiki/store"
)

// CommandPrefix is the prefix for explicit commands.
const CommandPrefix = "/hibiki"

// Config is the full application configuration, assembled from the
// environment by cmd/hibiki.
type Config struct {
	Homeserver   string
	UserID       string
	AccessToken  string
	OperatorMXID string
	Rooms        []string

	DBPath          string
	AuditPath       string
	ScriptsDir      string
	ShellPolicyPath string
	// SandboxImage, when set, runs scripts and shell commands in throwaway
	// containers of this image instead of directly on the host.
	SandboxImage string

	OpenAI nlp.Config

	CalendarCredentials string
	CalendarToken       string
	CalendarID          string

	Timezone  string
	RateLimit int
}

// Validate checks the fields without which the bot cannot start.
func (c *Config) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"HIBIKI_MATRIX_HOMESERVER", c.Homeserver},
		{"HIBIKI_MATRIX_USER_ID", c.UserID},
		{"HIBIKI_MATRIX_ACCESS_TOKEN", c.AccessToken},
		{"HIBIKI_OPERATOR_MXID", c.OperatorMXID},
		{"HIBIKI_OPENAI_API_KEY", c.OpenAI.APIKey},
		{"HIBIKI_SCRIPTS_DIR", c.ScriptsDir},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// App is the assembled bot.
type App struct {
	config *Config

	store    *store.Store
	trail    *audit.Trail
	matrix   *matrix.Client
	engine   *dispatch.Engine
	catalog  *catalog.Catalog
	router   *commands.Router
	handlers *commands.Handlers
}

// New builds the application from cfg.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	trail, err := audit.Open(cfg.AuditPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open audit trail: %w", err)
	}

	interp := nlp.New(cfg.OpenAI)

	cal := newCalendarClient(ctx, cfg)

	cat := catalog.New(cfg.ScriptsDir, st, interp)
	if _, _, err := cat.Refresh(ctx); err != nil {
		slog.Warn("initial script catalogue refresh failed", "error", err)
	}

	runner, mountPath, err := newRunner(cfg)
	if err != nil {
		trail.Close()
		st.Close()
		return nil, err
	}

	policy, err := resolve.LoadShellPolicy(cfg.ShellPolicyPath)
	if err != nil {
		trail.Close()
		st.Close()
		return nil, err
	}

	engine := dispatch.NewEngine(dispatch.Config{
		Interpreter: interp,
		Resolvers: map[nlp.Intent]dispatch.Resolver{
			nlp.IntentCalendar:      resolve.NewCalendar(interp, cal, loc),
			nlp.IntentScript:        resolve.NewScript(interp, cat),
			nlp.IntentServerCommand: resolve.NewShell(interp, policy),
		},
		Executors: map[dispatch.Domain]dispatch.Executor{
			dispatch.DomainCalendar: execute.NewCalendar(cal, loc),
			dispatch.DomainScript:   execute.NewScript(runner, interp, mountPath),
			dispatch.DomainShell:    execute.NewShell(runner, interp),
		},
		Trail:   trail,
		Limiter: nlp.NewRateLimiter(cfg.RateLimit, 0),
	})

	mx, err := matrix.New(&matrix.Config{
		Homeserver:   cfg.Homeserver,
		UserID:       cfg.UserID,
		AccessToken:  cfg.AccessToken,
		OperatorMXID: cfg.OperatorMXID,
		Rooms:        cfg.Rooms,
		Store:        st,
	})
	if err != nil {
		trail.Close()
		st.Close()
		return nil, err
	}

	handlers := &commands.Handlers{
		Engine:    engine,
		Catalog:   cat,
		Calendar:  cal,
		Trail:     trail,
		Location:  loc,
		StartedAt: time.Now(),
	}
	router := commands.NewRouter(CommandPrefix)
	handlers.RegisterAll(router)

	return &App{
		config:   cfg,
		store:    st,
		trail:    trail,
		matrix:   mx,
		engine:   engine,
		catalog:  cat,
		router:   router,
		handlers: handlers,
	}, nil
}

// Run starts the bot and blocks until the context is cancelled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	slog.Info("starting hibiki",
		"version", version.Info(),
		"user", a.config.UserID,
		"operator", a.config.OperatorMXID,
		"scripts", len(a.catalog.Snapshot()))

	if err := a.matrix.Start(ctx, a.handleMessage); err != nil {
		return fmt.Errorf("start matrix client: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	return nil
}

// Stop tears the application down.
func (a *App) Stop() {
	a.matrix.Stop()
	if err := a.trail.Close(); err != nil {
		slog.Error("failed to close audit trail", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

// handleMessage routes one operator message: explicit commands first, then
// the conversational engine. Every handled message gets exactly one reply.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMessage()
	if content == nil {
		return
	}
	text := content.Body
	roomID := evt.RoomID.String()

	// Typing indicator while the message is being interpreted or executed.
	if err := a.matrix.SetTyping(roomID, true, 30*time.Second); err == nil {
		defer a.matrix.SetTyping(roomID, false, 0)
	}

	response, err := a.router.Route(ctx, text, evt)
	if err != nil {
		if errors.Is(err, commands.ErrNotACommand) {
			response = a.engine.HandleMessage(ctx, evt.Sender.String(), text)
		} else {
			response = fmt.Sprintf("❌ %s", err)
		}
	}
	if response == "" {
		return
	}

	if err := a.matrix.SendFormattedMessage(roomID, markdownToHTML(response), response); err != nil {
		slog.Error("failed to send reply", "room", roomID, "error", err)
	}
}

// newCalendarClient builds the calendar backend. Missing configuration or a
// token needing reauthorization does not stop the bot: calendar actions then
// report the condition instead.
func newCalendarClient(ctx context.Context, cfg *Config) calendar.Client {
	if cfg.CalendarCredentials == "" {
		return unavailableCalendar{err: errors.New("calendar: not configured")}
	}
	client, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
		CredentialsPath: cfg.CalendarCredentials,
		TokenPath:       cfg.CalendarToken,
		CalendarID:      cfg.CalendarID,
	})
	if err != nil {
		slog.Warn("calendar backend unavailable", "error", err)
		return unavailableCalendar{err: err}
	}
	return client
}

// newRunner picks the process runner: a Docker sandbox when an image is
// configured, the host otherwise.
func newRunner(cfg *Config) (proc.Runner, string, error) {
	if cfg.SandboxImage == "" {
		return &proc.Local{Dir: cfg.ScriptsDir}, "", nil
	}
	sandbox, err := proc.NewSandbox(cfg.SandboxImage, cfg.ScriptsDir)
	if err != nil {
		return nil, "", fmt.Errorf("create sandbox runner: %w", err)
	}
	slog.Info("scripts and commands run sandboxed", "image", cfg.SandboxImage)
	return sandbox, sandbox.MountPath(), nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// unavailableCalendar satisfies calendar.Client when no working backend
// exists; every call reports the construction error.
type unavailableCalendar struct {
	err error
}

func (u unavailableCalendar) ListEvents(context.Context, time.Time, time.Time, int) ([]calendar.Event, error) {
	return nil, u.err
}

func (u unavailableCalendar) CreateEvent(context.Context, string, time.Time, time.Time) (string, error) {
	return "", u.err
}

func (u unavailableCalendar) DeleteEvent(context.Context, string) error {
	return u.err
}
