package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Kerhoff/giftlist/internal/api"
	"github.com/Kerhoff/giftlist/internal/catalog"
	"github.com/Kerhoff/giftlist/internal/handlers"
	"github.com/Kerhoff/giftlist/internal/notify"
	"github.com/Kerhoff/giftlist/internal/reservation"
	"github.com/Kerhoff/giftlist/internal/service"
	"github.com/Kerhoff/giftlist/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand runs the HTTP API, the catalog sync loop and the bot.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gift list API, catalog sync and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *RootOptions) error {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	l := a.logger
	l.Info("Starting giftlist...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Catalog sync
	validator := catalog.NewImageValidator(&http.Client{}, a.cfg.ImageTimeout, l, a.metrics)
	sched := service.NewSyncScheduler(a.fetcher(), validator, l,
		service.WithSyncInterval(a.cfg.SyncInterval),
		service.WithValidationStagger(a.cfg.ValidationStagger),
		service.WithValidationWorkers(a.cfg.ValidationWorkers),
		service.WithSchedulerMetrics(a.metrics),
	)

	// Telegram bot (optional)
	var bot *telegram.Bot
	if a.cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(a.cfg.TelegramToken, l)
		if err != nil {
			return err
		}
	} else {
		l.Warn("TELEGRAM_TOKEN not set, bot disabled")
	}

	// Notifications
	channels := []notify.Channel{a.emailChannel()}
	if bot != nil {
		channels = append(channels, notify.NewTelegramChannel(bot, a.cfg.NotifyChatIDs, l))
	}
	notifier := notify.New(l, a.metrics, channels...)

	// Service layer
	mgr := reservation.NewManager(a.remote, a.claims, notifier, sched, l,
		reservation.WithManagerMetrics(a.metrics))
	svc := service.New(l, sched, mgr)

	watcher := service.NewConnectivityWatcher(sched,
		catalog.ExportURL(a.cfg.SpreadsheetID, a.cfg.SheetGID),
		a.cfg.OnlineProbeInterval, nil, l)
	svc.Start(ctx, watcher)

	if bot != nil {
		registerCommands(bot, svc, l)
		go func() {
			if err := bot.Start(ctx); err != nil {
				l.WithError(err).Error("Bot error")
			}
		}()
	}

	// HTTP API
	apiServer := api.NewServer(svc, a.sheet, a.cfg.SheetName, l)
	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + a.cfg.PrometheusPort,
		Handler:           a.metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, srv := range []*http.Server{httpServer, metricsServer} {
		srv := srv
		go func() {
			l.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.WithError(err).WithField("addr", srv.Addr).Error("HTTP server error")
				cancel()
			}
		}()
	}

	l.Info("giftlist started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, srv := range []*http.Server{httpServer, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.WithError(err).Warn("HTTP server shutdown failed")
		}
	}

	l.Info("giftlist stopped")
	return nil
}

func registerCommands(bot *telegram.Bot, svc *service.Service, l *logrus.Logger) {
	flows := handlers.NewFlowStore()

	bot.RegisterCommand("start", "", handlers.NewStartHandler(l))
	bot.RegisterCommand("help", "Como usar a lista", handlers.NewHelpHandler(l))
	bot.RegisterCommand("gifts", "Ver os presentes", handlers.NewGiftsHandler(svc, l))
	bot.RegisterCommand("status", "Estado da sincronização", handlers.NewStatusHandler(svc.Catalog, l))

	// Reservation flow
	bot.RegisterCommand("reserve", "", handlers.NewReserveHandler(svc, flows, l))
	bot.RegisterCommand("name", "", handlers.NewNameHandler(flows, l))
	bot.RegisterCommand("confirm", "", handlers.NewConfirmHandler(flows, svc.Reservations, l))
	bot.RegisterCommand("back", "", handlers.NewBackHandler(flows))
	bot.RegisterCommand("cancel", "Cancelar a reserva em andamento", handlers.NewCancelHandler(flows))
}
