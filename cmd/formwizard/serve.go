package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/server"
	"github.com/goliatone/go-formwizard/internal/store"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizard HTTP API",
	Long: `Serve wizard sessions, staged uploads and created companies over HTTP.

Idle sessions are swept after session_ttl and their previews released.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.addr, "addr", "a", "", "Listen address (default: :8080)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger := setup(cmd, func(v *viper.Viper) error {
		return v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	})
	defer func() { _ = logger.Sync() }()
	ctx := cmd.Context()

	defs, err := loadDefinitions(cfg)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	st, err := store.Open(ctx, cfg.Database, store.WithLogger(logger.Named("store")))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	srv, err := server.New(server.Config{
		Addr:            cfg.Addr,
		PreviewPrefix:   cfg.PreviewPrefix,
		SessionTTL:      cfg.SessionTTL,
		SweepInterval:   cfg.SweepInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, defs, st, server.WithLogger(logger.Named("http")))
	if err != nil {
		return err
	}

	logger.Info("serving wizards", zap.Strings("wizards", defs.IDs()), zap.String("addr", cfg.Addr))
	return srv.Run(ctx)
}
