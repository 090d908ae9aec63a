/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the shift forecast engine. Builds the store,
  providers and engine from configuration and either serves the HTTP API
  or runs one maintenance task and exits.

COMMANDS:
  serve              Start the HTTP server and the evaluation scheduler
  evaluate           Evaluate the last finished week once
  patterns           Re-mine detected patterns from recorded history
  seed <scenario>    Replace recorded history with a demo scenario

GLOBAL FLAGS:
  --config     YAML configuration file (optional)
  --db         SQLite database path, overrides database.path
               Use ":memory:" for an in-memory database
  --log-level  Log level, overrides log.level

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the server stops accepting connections, waits up to
  30s for active requests, stops the scheduler and closes the database.

EXAMPLES:
  ./server serve --config=./config.yaml
  ./server serve --db=":memory:" --port=3000
  ./server seed rainy-season --db=./data/demo.db

SEE ALSO:
  - config/config.go: Configuration file format
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warp/shift-forecast/analytics"
	"github.com/warp/shift-forecast/api"
	"github.com/warp/shift-forecast/config"
	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/logging"
	"github.com/warp/shift-forecast/providers"
	"github.com/warp/shift-forecast/store/sqlite"
)

var (
	configPath string
	dbPath     string
	logLevel   string

	cfg config.Config
	log = logging.Component("main")
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Weekly revenue forecast and staffing recommendations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				loaded.Database.Path = dbPath
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			logging.SetLevel(loaded.Log.Level)
			logging.SetFormatter(loaded.Log.Format)
			cfg = loaded
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newPatternsCommand())
	rootCmd.AddCommand(newSeedCommand())

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func newServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	return cmd
}

func newEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the last finished week against recorded revenue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			report, saved, err := a.engine.RunEvaluationCycle(cmd.Context())
			if err != nil {
				return err
			}
			fields := logrus.Fields{"patterns_saved": saved}
			if report == nil {
				log.WithFields(fields).Info("no week to evaluate")
				return nil
			}
			fields["week_start"] = forecast.FormatDate(report.WeekStart)
			fields["accuracy_pct"] = report.Accuracy.AccuracyPct
			log.WithFields(fields).Info("week evaluated")
			return nil
		},
	}
}

func newPatternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Re-mine detected patterns from recorded history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			saved, err := a.engine.MinePatterns(cmd.Context())
			if err != nil {
				return err
			}
			log.WithField("patterns_saved", saved).Info("patterns mined")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <scenario>",
		Short: "Replace recorded history with a demo scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			res, err := api.SeedScenario(cmd.Context(), a.store, args[0], a.engine.Now())
			if err != nil {
				return err
			}
			if res.PatternsSaved, err = a.engine.MinePatterns(cmd.Context()); err != nil {
				return fmt.Errorf("mine patterns: %w", err)
			}
			log.WithFields(logrus.Fields{
				"scenario":       res.Scenario,
				"days_loaded":    res.DaysLoaded,
				"patterns_saved": res.PatternsSaved,
				"from":           res.From,
				"to":             res.To,
			}).Info("scenario loaded")
			return nil
		},
	}
}

// =============================================================================
// WIRING
// =============================================================================

type app struct {
	store   *sqlite.Store
	cache   *providers.RedisCache
	engine  *forecast.Engine
	comfort *analytics.Comfort
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.WithError(err).Warn("closing cache")
		}
	}
	if err := a.store.Close(); err != nil {
		log.WithError(err).Warn("closing database")
	}
}

// build opens the store and assembles the engine from cfg.
func build(ctx context.Context) (*app, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a := &app{store: store}

	if err := seedLocation(ctx, store, cfg.Engine); err != nil {
		a.close()
		return nil, err
	}

	var (
		weather  forecast.WeatherProvider = providers.NewOpenMeteo(cfg.Engine.ProviderTimeout)
		holidays forecast.HolidayProvider = providers.NewNager(cfg.Engine.ProviderTimeout)
	)
	if cfg.Redis.Addr != "" {
		cache, err := providers.NewRedisCache(ctx, providers.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, provider cache disabled")
		} else {
			a.cache = cache
			weather = &providers.CachedWeather{Next: weather, Cache: cache, TTL: cfg.Redis.TTL}
			holidays = &providers.CachedHolidays{Next: holidays, Cache: cache, TTL: cfg.Redis.TTL}
		}
	}

	a.comfort = analytics.NewComfort(store)
	a.engine = forecast.NewEngine(forecast.Dependencies{
		Records:         store,
		Settings:        store,
		Patterns:        store,
		Forecasts:       store,
		Weather:         weather,
		Holidays:        holidays,
		Events:          store,
		Comfort:         a.comfort,
		ProviderTimeout: cfg.Engine.ProviderTimeout,
		Log:             logging.Component("engine"),
	})
	return a, nil
}

// seedLocation writes the configured location and country into settings
// when the store has none, so the settings endpoint stays authoritative.
func seedLocation(ctx context.Context, store *sqlite.Store, ec config.EngineConfig) error {
	seed := map[string]string{}
	if ec.CountryCode != "" {
		seed[forecast.SettingCountryCode] = ec.CountryCode
	}
	if ec.Latitude != nil && ec.Longitude != nil {
		seed[forecast.SettingLatitude] = strconv.FormatFloat(*ec.Latitude, 'f', -1, 64)
		seed[forecast.SettingLongitude] = strconv.FormatFloat(*ec.Longitude, 'f', -1, 64)
	}
	for key, value := range seed {
		_, ok, err := store.GetSetting(ctx, key)
		if err != nil {
			return fmt.Errorf("read setting %s: %w", key, err)
		}
		if ok {
			continue
		}
		if err := store.SetSetting(ctx, key, value); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}

// =============================================================================
// SERVER
// =============================================================================

func serve(ctx context.Context) error {
	a, err := build(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	handler := api.NewHandler(a.store, a.engine, a.comfort)
	router := api.NewRouter(handler, api.DefaultRouterOptions())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler := api.NewEvaluationScheduler(a.engine)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.Interval = cfg.Scheduler.Interval
	scheduler.InitialDelay = cfg.Scheduler.InitialDelay
	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   server.Addr,
			"db":     cfg.Database.Path,
			"cached": a.cache != nil,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
