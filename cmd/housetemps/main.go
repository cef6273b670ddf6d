package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/housetemps/internal/api"
	"github.com/lox/housetemps/internal/dashboard"
	"github.com/lox/housetemps/internal/store"
)

const appName = "housetemps"

var version = "dev"

type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,help='Path to a .env file to load before parsing flags.'"`

	DSN             string        `name:"dsn" env:"PGS,DATABASE_URL" default:"data/housetemps.db" help:"Database connection string: a postgres:// URL or a SQLite path."`
	AppEnv          string        `name:"app-env" env:"APP_ENV" default:"dev" enum:"dev,prod" help:"Deployment environment (${enum})."`
	LogLevel        string        `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level (${enum})."`
	QueryTimeout    time.Duration `name:"query-timeout" env:"QUERY_TIMEOUT" default:"10s" help:"Per-query timeout."`
	RetryMaxElapsed time.Duration `name:"retry-max-elapsed" env:"RETRY_MAX_ELAPSED" default:"30s" help:"Give up retrying a connection error after this long."`
	RetryMaxTries   uint64        `name:"retry-max-tries" env:"RETRY_MAX_TRIES" default:"4" help:"Attempts, including the first, at a query that hits a connection error."`
	MaxOpenConns    int           `name:"max-open-conns" env:"DB_MAX_OPEN_CONNS" default:"10" help:"Connection pool size."`
	MaxIdleConns    int           `name:"max-idle-conns" env:"DB_MAX_IDLE_CONNS" default:"5" help:"Idle connections kept in the pool."`
	ConnMaxLifetime time.Duration `name:"conn-max-lifetime" env:"DB_CONN_MAX_LIFETIME" default:"30m" help:"Maximum lifetime of a pooled connection."`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Serve the dashboard and refresh it on a timer."`
	Refresh RefreshCmd `cmd:"" help:"Run every panel pipeline once and print the outcome."`
	Migrate MigrateCmd `cmd:"" help:"Create the reading tables in a local database."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name(appName),
		kong.Description("Home temperature and humidity dashboard."),
		kong.UsageOnError(),
	)

	logger := newLogger(cli.Globals)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(logger)
	if err := kctx.Run(&cli.Globals); err != nil {
		logger.Error("exiting", "cmd", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newLogger(g Globals) *slog.Logger {
	level := parseLogLevel(g.LogLevel)
	if g.AppEnv == "dev" {
		h := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", g.AppEnv,
	)
}

func openStore(ctx context.Context, g *Globals, logger *slog.Logger) (*store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		DSN:             g.DSN,
		MaxOpenConns:    g.MaxOpenConns,
		MaxIdleConns:    g.MaxIdleConns,
		ConnMaxLifetime: g.ConnMaxLifetime,
		QueryTimeout:    g.QueryTimeout,
		RetryMaxElapsed: g.RetryMaxElapsed,
		RetryMaxTries:   g.RetryMaxTries,
	}, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "dialect", st.Dialect())
	return st, nil
}

type ServeCmd struct {
	Addr            string        `name:"addr" env:"ADDR" default:":8080" help:"HTTP listen address."`
	RefreshInterval time.Duration `name:"refresh-interval" env:"REFRESH_INTERVAL" default:"5m" help:"Time between panel refreshes, clamped to 5m..30m."`
	Concurrency     int           `name:"concurrency" env:"REFRESH_CONCURRENCY" default:"4" help:"Panels refreshed in parallel."`
	NoRefresh       bool          `name:"no-refresh" help:"Serve without the refresh scheduler (for local dev)."`
	Site            string        `name:"site" env:"SITE_NAME" default:"housetemps" help:"Site name on the page and share card."`
	Window          int           `name:"window" env:"MOVING_AVERAGE_WINDOW" default:"10" help:"Daily moving average window, in days."`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	st, err := openStore(ctx, g, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := dashboard.DefaultPanelConfig()
	if c.Window > 0 {
		cfg.MovingAverageWindow = c.Window
	}
	panels := dashboard.Panels(cfg)
	board := dashboard.NewBoard(panels)

	server := api.NewServer(st, board, c.Addr)
	server.SetLogger(logger)
	server.SetSiteName(c.Site)

	scheduler := dashboard.NewScheduler(st, board, panels, logger)
	scheduler.SetInterval(c.RefreshInterval)
	scheduler.SetConcurrency(c.Concurrency)
	if scheduler.Interval() != c.RefreshInterval {
		logger.Warn("refresh interval clamped", "requested", c.RefreshInterval, "using", scheduler.Interval())
	}
	server.SetRefreshInterval(scheduler.Interval())

	ogImages := server.OGImageCache()
	scheduler.SetOnTick(func(dashboard.Snapshot) {
		ogImages.Invalidate()
	})

	if !c.NoRefresh {
		go scheduler.Run(ctx)
	} else {
		logger.Info("refresh disabled (--no-refresh)")
		scheduler.Tick(ctx)
	}

	return server.Run(ctx)
}

type RefreshCmd struct {
	Now time.Time `name:"now" help:"Clock to refresh against (RFC3339), for replaying history."`
}

func (c *RefreshCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	st, err := openStore(ctx, g, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	panels := dashboard.Panels(dashboard.DefaultPanelConfig())
	board := dashboard.NewBoard(panels)
	scheduler := dashboard.NewScheduler(st, board, panels, logger)
	if !c.Now.IsZero() {
		now := c.Now
		scheduler.SetClock(func() time.Time { return now })
	}

	snap := scheduler.Tick(ctx)
	failed := 0
	for _, p := range snap.Panels {
		line := fmt.Sprintf("%-20s %-12s", p.ID, p.Status)
		if p.Output != nil && p.Output.Text != "" {
			line += " " + p.Output.Text
		}
		if p.Error != "" {
			line += " (" + p.Error + ")"
		}
		fmt.Println(line)
		if p.Status == dashboard.StatusUnavailable {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d panels unavailable", failed)
	}
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, g *Globals, logger *slog.Logger) error {
	st, err := openStore(ctx, g, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	v, err := st.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("database migrated", "version", v)
	return nil
}
