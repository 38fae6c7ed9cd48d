package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	formwizard "github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/internal/store"
	"github.com/goliatone/go-formwizard/pkg/prompt"
)

var fillFlags struct {
	wizard string
}

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Complete a wizard in the terminal",
	Long: `Prompt for every step of a wizard, stage a file from disk and submit
the record to the configured database.`,
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringVarP(&fillFlags.wizard, "wizard", "w", "", "Wizard id (default: create-company)")
}

func runFill(cmd *cobra.Command, _ []string) error {
	cfg, logger := setup(cmd, func(v *viper.Viper) error {
		return v.BindPFlag("wizard", cmd.Flags().Lookup("wizard"))
	})
	defer func() { _ = logger.Sync() }()
	ctx := cmd.Context()

	defs, err := loadDefinitions(cfg)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	def, ok := defs.Wizard(cfg.Wizard)
	if !ok {
		return fmt.Errorf("unknown wizard %q (available: %v)", cfg.Wizard, defs.IDs())
	}

	st, err := store.Open(ctx, cfg.Database, store.WithLogger(logger.Named("store")))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	sess, err := formwizard.NewSession(def, st.Collaborators(), nil, logger)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	out, err := prompt.New(prompt.WithLogger(logger.Named("prompt"))).Run(ctx, sess)
	if errors.Is(err, prompt.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	if !out.Succeeded() {
		return fmt.Errorf("submission did not complete: %s", out.Message)
	}
	return nil
}
