package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/logging"
	"github.com/goliatone/go-formwizard/pkg/definition"
)

// Version set via ldflags during build
var version = "dev"

var rootFlags struct {
	config   string
	logLevel string
	dev      bool
}

var rootCmd = &cobra.Command{
	Use:     "formwizard",
	Short:   "Multi-step form wizard with staged uploads",
	Version: version,
	Long: `formwizard walks users through multi-step wizards defined in YAML or
JSON, validates each step, stages a file upload and submits the collected
record through an upload and a create collaborator backed by SQLite.

Run "formwizard serve" for the HTTP API or "formwizard fill" to complete a
wizard in the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.config, "config", "c", "", "Config file (default: ./formwizard.yml when present)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.dev, "dev", false, "Use the development logger")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads defaults, the config file and FORMWIZARD_ env vars, then
// applies any flags set on cmd.
func loadConfig(cmd *cobra.Command, bind func(v *viper.Viper) error) (*config.Config, error) {
	v, err := config.New()
	if err != nil {
		return nil, err
	}
	if err := config.ReadFile(v, rootFlags.config); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		v.Set("log_level", rootFlags.logLevel)
	}
	if cmd.Flags().Changed("dev") {
		v.Set("log_development", rootFlags.dev)
	}
	if bind != nil {
		if err := bind(v); err != nil {
			return nil, err
		}
	}
	return config.Decode(v)
}

// setup loads configuration and builds the logger. Errors before a logger
// exists are fatal.
func setup(cmd *cobra.Command, bind func(v *viper.Viper) error) (*config.Config, *zap.Logger) {
	cfg, err := loadConfig(cmd, bind)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	return cfg, logger
}

func loadDefinitions(cfg *config.Config) (*definition.Store, error) {
	if cfg.DefinitionsDir == "" {
		return definition.LoadEmbedded()
	}
	defs, err := definition.LoadFS(os.DirFS(cfg.DefinitionsDir))
	if err != nil {
		return nil, err
	}
	if defs.Empty() {
		return nil, fmt.Errorf("no wizard definitions found in %s", cfg.DefinitionsDir)
	}
	return defs, nil
}
