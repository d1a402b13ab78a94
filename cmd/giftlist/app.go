package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/apiclient"
	"github.com/Kerhoff/giftlist/internal/catalog"
	"github.com/Kerhoff/giftlist/internal/config"
	"github.com/Kerhoff/giftlist/internal/metrics"
	"github.com/Kerhoff/giftlist/internal/notify"
	"github.com/Kerhoff/giftlist/internal/repository"
	"github.com/Kerhoff/giftlist/internal/repository/file"
	"github.com/Kerhoff/giftlist/internal/repository/postgres"
	"github.com/Kerhoff/giftlist/internal/reservation"
	"github.com/Kerhoff/giftlist/internal/sheets"
	"github.com/Kerhoff/giftlist/pkg/logger"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	db      *config.Database
	cache   repository.CatalogCacheRepository
	claims  repository.ClaimRepository
	sheet   *sheets.Updater
	remote  reservation.RemoteStore
}

func newApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger.New(cfg.LogLevel, cfg.LogFormat),
		metrics: metrics.New(),
	}

	if cfg.DatabaseURL != "" {
		a.db, err = config.NewDatabase(ctx, cfg.DatabaseURL, a.logger)
		if err != nil {
			return nil, err
		}
		if err := a.db.Migrate(cfg.MigrationsPath); err != nil {
			a.db.Close()
			return nil, err
		}
		a.cache = postgres.NewCatalogCacheRepository(a.db.DB)
		a.claims = postgres.NewClaimRepository(a.db.DB)
	} else {
		a.cache = file.NewCatalogCacheRepository(cfg.CachePath)
		a.claims = file.NewClaimRepository(cfg.ClaimsPath)
	}

	var values sheets.ValuesClient
	if cfg.SheetsConfigured() {
		client, err := sheets.NewGoogleValuesClient(ctx, cfg.SpreadsheetID, sheets.Credentials{
			Email:      cfg.GoogleServiceAccountEmail,
			PrivateKey: cfg.GooglePrivateKey,
		})
		if err != nil {
			a.logger.WithError(err).Warn("Google Sheets client unavailable, reservations stay local")
		} else {
			values = client
		}
	} else {
		a.logger.Warn("Google service account not configured, reservations stay local")
	}
	a.sheet = sheets.NewUpdater(values, cfg.SheetName, a.logger)
	a.remote = a.sheet

	if opts.APIURL != "" {
		a.remote = apiclient.New(opts.APIURL, nil, a.logger)
	}

	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) accessPaths() []catalog.AccessPath {
	export := catalog.ExportURL(a.cfg.SpreadsheetID, a.cfg.SheetGID)
	paths := []catalog.AccessPath{catalog.DirectPath(export)}
	for _, prefix := range a.cfg.RelayURLs {
		paths = append(paths, catalog.RelayPath(catalog.RelayName(prefix), prefix, export))
	}
	for _, prefix := range a.cfg.EnvelopeRelayURLs {
		paths = append(paths, catalog.EnvelopePath(catalog.RelayName(prefix), prefix, export))
	}
	return paths
}

func (a *app) fetcher() *catalog.Fetcher {
	return catalog.NewFetcher(a.accessPaths(), a.cache, a.logger,
		catalog.WithCacheTTL(a.cfg.CacheTTL),
		catalog.WithFetchTimeout(a.cfg.FetchTimeout),
		catalog.WithMetrics(a.metrics),
	)
}

// emailChannel mails the couple; without SMTP settings it only logs.
func (a *app) emailChannel() notify.Channel {
	return notify.NewEmailChannel(notify.SMTPConfig{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SMTPUsername,
		Password: a.cfg.SMTPPassword,
		From:     a.cfg.SMTPFrom,
		To:       a.cfg.NotificationEmails(),
	}, a.logger)
}
