// Package cmd provides the docma command-line interface.
//
// Configuration System:
//
//	Tool settings are read with the following precedence:
//	1. Command-line flags (--log-level, --workers, etc.) - highest priority
//	2. DOCMA_<SECTION>_<KEY> environment variables (DOCMA_FETCH_TIMEOUT, ...)
//	3. The file named by --config or DOCMA_CONFIG_FILE
//	4. ~/.docma.yaml - lowest priority
//
// A template's own config.yaml is part of the template and is not affected by
// any of these.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jin-gizmo/docma/internal/config"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/fetcher"
	"github.com/jin-gizmo/docma/internal/importer"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/monitoring"
)

var (
	cfgFile   string
	appConfig *config.Config
	logger    logging.Logger = logging.Default()
)

var rootCmd = &cobra.Command{
	Use:   "docma",
	Short: "Compile and render document templates to HTML and PDF",
	Long: `docma compiles a template source directory into a template package and
renders packages into HTML or PDF documents.

Quick Start:
  docma compile -i src -t report.zip       Compile a template
  docma html -t report.zip -p name=ACME    Render HTML to stdout
  docma pdf -t report.zip -o report.pdf    Render a PDF
  docma info -t report.zip                 Describe a compiled template`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command with ctx. A failure is logged before it
// is returned.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		derrors.Handle(ctx, logger, err)
	}

	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.docma.yaml, can also use DOCMA_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DOCMA_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.SetConfigFile(filepath.Join(home, ".docma.yaml"))
	}
	config.Setup(viper.GetViper())

	// A missing config file is fine; a broken one is reported by setup.
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
	}
}

// setup loads the tool configuration and configures the shared services
// every command depends on.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	logging.SetDefault(logger)
	importer.Configure(cfg.Import)
	fetcher.Configure(cfg.Fetch)

	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	if appConfig == nil || appConfig.Metrics.Textfile == "" {
		return nil
	}
	if err := monitoring.WriteTextfile(appConfig.Metrics.Textfile); err != nil {
		logger.Warn(cmd.Context(), err, "Cannot write metrics", "path", appConfig.Metrics.Textfile)
	}

	return nil
}
