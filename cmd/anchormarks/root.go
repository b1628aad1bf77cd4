package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nikbrunner/anchormarks/internal/config"
	"github.com/nikbrunner/anchormarks/internal/favicon"
	"github.com/nikbrunner/anchormarks/internal/importer"
	"github.com/nikbrunner/anchormarks/internal/logging"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/syncer"
	"github.com/nikbrunner/anchormarks/internal/tags"
	"github.com/nikbrunner/anchormarks/internal/userlock"
)

var (
	v      = viper.New()
	userID string
)

var rootCmd = &cobra.Command{
	Use:           "anchormarks",
	Short:         "Bookmark manager with import and browser sync",
	Long:          "anchormarks stores bookmarks per user in SQLite, imports browser exports without duplicates and keeps a browser's bookmark tree in sync.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.Warning.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("data-dir", "", "Data directory (default: ~/.config/anchormarks)")
	flags.String("db", "", "SQLite database path (default: <data-dir>/anchormarks.db)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.StringVarP(&userID, "user", "u", "default", "User the command acts for")

	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("db_path", flags.Lookup("db"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
}

// app bundles what every command needs once config is loaded.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *storage.SQLiteStorage
	locks    *userlock.Locker
	favicons *favicon.Queue
}

func openApp() (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		JSON:       cfg.Log.JSON,
	})

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &app{cfg: cfg, log: log, store: store, locks: userlock.New()}, nil
}

// startFavicons launches the favicon workers when enabled.
func (a *app) startFavicons(ctx context.Context) {
	if !a.cfg.Favicon.Enabled {
		return
	}
	a.favicons = favicon.NewQueue(a.store, favicon.Options{
		Workers: a.cfg.Favicon.Workers,
		Timeout: a.cfg.Favicon.Timeout,
		Logger:  a.log,
	})
	a.favicons.Start(ctx)
}

func (a *app) faviconQueue() importer.FaviconQueue {
	if a.favicons == nil {
		return nil
	}
	return a.favicons
}

func (a *app) importer() *importer.Importer {
	return importer.New(importer.Params{
		Store:     a.store,
		Locks:     a.locks,
		Favicons:  a.faviconQueue(),
		Logger:    a.log,
		TagPrefix: a.cfg.Import.TagPrefix,
	})
}

func (a *app) reconciler() *syncer.Reconciler {
	return syncer.New(syncer.Params{
		Store:    a.store,
		Locks:    a.locks,
		Favicons: a.faviconQueue(),
		Logger:   a.log,
	})
}

func (a *app) normalizer() *tags.Normalizer {
	return tags.NewNormalizer(a.store, a.locks, a.log)
}

func (a *app) Close() {
	if a.favicons != nil {
		a.favicons.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("close database")
	}
}
