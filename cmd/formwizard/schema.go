package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard/internal/server"
	"github.com/goliatone/go-formwizard/pkg/definition"
)

var schemaFlags struct {
	output string
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the OpenAPI document for the loaded wizards",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFlags.output, "output", "o", "", "Output file (stdout if empty)")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, logger := setup(cmd, nil)
	defer func() { _ = logger.Sync() }()

	defs, err := loadDefinitions(cfg)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}
	list := make([]definition.Definition, 0, len(defs.IDs()))
	for _, id := range defs.IDs() {
		def, _ := defs.Wizard(id)
		list = append(list, def)
	}

	doc := definition.OpenAPI("formwizard", server.Version, list...)
	if err := doc.Validate(cmd.Context()); err != nil {
		return fmt.Errorf("generated document is invalid: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if schemaFlags.output == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return err
	}
	if err := os.WriteFile(schemaFlags.output, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", schemaFlags.output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "OpenAPI document written to %s\n", schemaFlags.output)
	return nil
}
