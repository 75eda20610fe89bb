package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/appointment-insights/cmd/mainconfig"
	"github.com/wolfman30/appointment-insights/internal/api/router"
	"github.com/wolfman30/appointment-insights/internal/app/bootstrap"
	"github.com/wolfman30/appointment-insights/internal/appointments"
	appconfig "github.com/wolfman30/appointment-insights/internal/config"
	"github.com/wolfman30/appointment-insights/internal/dashboard"
	"github.com/wolfman30/appointment-insights/internal/insights"
	"github.com/wolfman30/appointment-insights/internal/notify"
	"github.com/wolfman30/appointment-insights/internal/observability/metrics"
	"github.com/wolfman30/appointment-insights/internal/settings"
	"github.com/wolfman30/appointment-insights/internal/web"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting appointment dashboard",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if validateErr := cfg.Validate(); validateErr != nil {
		logger.Warn("serving setup instructions", "reason", validateErr)
		err = runSetup(ctx, cfg, logger)
	} else {
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("dashboard stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func runSetup(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	setup, err := web.SetupHandler(logger.Component("web"))
	if err != nil {
		return err
	}
	return serve(ctx, cfg, router.NewSetup(logger, setup), logger)
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dashMetrics := metrics.NewDashboardMetrics(reg)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config; AWS-backed features disabled", "error", err)
		} else {
			awsCfg = &loaded
		}
	}

	llm, closeLLM, err := bootstrap.BuildFactClient(ctx, cfg, awsCfg, logger.Component("insights"))
	if err != nil {
		return err
	}
	defer closeLLM()
	generator := insights.NewGenerator(llm, logger.Component("insights"),
		insights.WithTimeout(cfg.FactTimeout),
		insights.WithMetrics(dashMetrics),
	)

	hub := web.NewHub(logger.Component("live"), dashMetrics, cfg.CORSAllowedOrigins)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	settingsSvc := settings.NewService(bootstrap.BuildSettingsBackend(redisClient, logger), cfg.SettingsKey, logger.Component("settings"))
	settingsSvc.AddThemeApplier(hub)
	if _, err := settingsSvc.Load(ctx); err != nil {
		logger.Warn("using default settings", "error", err)
	}

	notifier := notify.NewService(settingsSvc, logger.Component("notify"), dashMetrics,
		notify.Channel{Name: "live", Sender: hub},
	)
	if email := bootstrap.BuildEmailNotifier(cfg, awsCfg, logger.Component("notify")); email != nil {
		notifier.AddChannel(notify.Channel{Name: "email", Sender: email})
	}
	if slackNotifier := bootstrap.BuildSlackNotifier(cfg, logger.Component("notify")); slackNotifier != nil {
		notifier.AddChannel(notify.Channel{Name: "slack", Sender: slackNotifier})
	}

	repo := appointments.NewRepository(pool, cfg.AppointmentsTable)
	dash := dashboard.NewService(repo, generator, logger.Component("dashboard"),
		dashboard.WithNotifier(notifier),
		dashboard.WithMetrics(dashMetrics),
		dashboard.WithRecentLimit(cfg.RecentListLimit),
	)
	defer dash.Close()
	unsubscribe := dash.Subscribe(hub.PublishModel)
	defer unsubscribe()

	if err := dash.Refresh(ctx); err != nil {
		logger.Warn("initial refresh failed", "error", err)
	}

	feed := appointments.NewChangeFeed(pool, cfg.AppointmentsChannel, logger.Component("changefeed"))
	sub, err := feed.Subscribe(ctx, func(evt appointments.ChangeEvent) {
		dash.HandleChange(hubCtx, evt)
	})
	if err != nil {
		logger.Error("change feed unavailable; live updates disabled", "error", err)
	} else {
		defer feed.Unsubscribe(sub)
	}

	resync, err := dashboard.StartResync(hubCtx, cfg.ResyncSchedule, dash, logger.Component("resync"))
	if err != nil {
		logger.Error("scheduled resync disabled", "error", err)
	} else if resync != nil {
		defer func() { <-resync.Stop().Done() }()
	}

	webHandler, err := web.NewHandler(dash, settingsSvc, hub, reg, logger.Component("web"))
	if err != nil {
		return err
	}
	handler := router.New(&router.Config{
		Logger:             logger,
		Web:                webHandler,
		Hub:                hub,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RefreshRate:        cfg.RefreshRate,
		RefreshBurst:       cfg.RefreshBurst,
	})
	return serve(ctx, cfg, handler, logger)
}

func serve(ctx context.Context, cfg *appconfig.Config, handler http.Handler, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
