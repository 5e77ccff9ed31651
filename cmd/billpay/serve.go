package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/talx-hub/gopher-billpay/internal/api/handlers"
	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/automation/flows"
	"github.com/talx-hub/gopher-billpay/internal/batch"
	"github.com/talx-hub/gopher-billpay/internal/export"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/router"
	"github.com/talx-hub/gopher-billpay/internal/service"
	"github.com/talx-hub/gopher-billpay/internal/service/watcher"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control API and the scheduled watcher",
		Long: `Start the browser session, the HTTP control API and, when a database is
configured, the watcher that runs pending orders on the configured schedules.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	browser, err := launchBrowser(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to close browser",
				slog.Any(model.KeyLoggerError, err))
		}
	}()

	batches := service.NewBatches(service.Deps{
		Session:    browser,
		Reconciler: st.reconciler(),
		Exporter:   export.New(cfg.ResultDir),
		FlowOpts:   flowOptions(),
		Driver:     batch.DefaultConfig(),
	})

	var pending *handlers.PendingHandler
	if st.orders != nil {
		pending = handlers.NewPendingHandler(st.orders, cfg.PendingLimit)
		w := watcher.New(st.orders, batches, cfg.PendingLimit, log)
		if err = w.Schedule(ctx, cfg.Schedules.Enabled()); err != nil {
			return fmt.Errorf("failed to schedule watcher: %w", err)
		}
		go w.Run(ctx)
	} else {
		pending = handlers.NewPendingHandler(nil, cfg.PendingLimit)
		if len(cfg.Schedules.Enabled()) != 0 {
			log.LogAttrs(ctx, slog.LevelWarn, "schedules ignored without DATABASE_URI")
		}
	}

	r := router.New(cfg, log)
	r.SetRouter(struct {
		*handlers.BatchHandler
		*handlers.PendingHandler
		*handlers.HealthHandler
	}{
		handlers.NewBatchHandler(batches),
		pending,
		handlers.NewHealthHandler(st.healthChecks()...),
	})

	srv := &http.Server{
		Addr:              cfg.RunAddr,
		Handler:           r.GetRouter(),
		ReadHeaderTimeout: model.DefaultTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.LogAttrs(ctx, slog.LevelInfo, "control API started", slog.String("address", cfg.RunAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			return fmt.Errorf("control API failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to shut down control API",
			slog.Any(model.KeyLoggerError, err))
	}
	if err = batches.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("batches did not stop in time: %w", err)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "stopped")
	return nil
}

// launchBrowser opens the persistent profile. A failed first navigation
// is not fatal: every flow navigates again before its first code.
func launchBrowser(ctx context.Context) (*automation.Browser, error) {
	browser, err := automation.Launch(ctx, automation.BrowserOptions{
		ProfileDir: cfg.ProfileDir,
		PortalURL:  cfg.PortalURL,
		Username:   cfg.PortalUsername,
		Password:   cfg.PortalPassword,
		Headless:   cfg.Headless,
	}, log)
	if browser == nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "failed to open portal",
			slog.Any(model.KeyLoggerError, err))
	}
	return browser, nil
}

func flowOptions() flows.Options {
	return flows.Options{
		PortalURL: cfg.PortalURL,
		PIN:       cfg.DefaultPIN,
		Pause:     cfg.StepPause,
	}
}
