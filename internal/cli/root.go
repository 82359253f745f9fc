// Package cli defines the freshness command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cfmlabs/freshness-monitor/internal/app"
	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/output"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags are set at build time.
var (
	version = "dev"
	commit  = "none"
)

// env is the state shared by the commands of one invocation
type env struct {
	v   *viper.Viper
	cfg *config.Config
	app *app.App
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:                "freshness",
		Short:              "Find and review stale content.",
		Long:               `Freshness classifies site content as fresh, aging or stale and lets reviewers clear the flag.`,
		Version:            fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return e.close()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().String("config", "", "Path to config file")
	root.PersistentFlags().StringP("format", "f", string(output.FormatTable), "Output format: table or json or csv or yaml")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")
	root.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	root.PersistentFlags().String("db-backend", "", "Content database: sqlite or postgres or mysql or memory")
	root.PersistentFlags().String("db-dsn", "", "Content database connection string")
	root.PersistentFlags().String("storage-dir", "", "Directory for settings, trends and digest state")
	root.PersistentFlags().String("site-url", "", "Base URL used for edit and view links")
	if err := e.v.BindPFlags(root.PersistentFlags()); err != nil {
		logrus.Fatalf("Error binding root flags: %v", err)
	}

	root.AddCommand(
		e.statsCmd(),
		e.listCmd(),
		e.checkCmd(),
		e.reviewCmd(),
		e.exportCmd(),
		e.settingsCmd(),
		e.sendTestEmailCmd(),
		e.snapshotCmd(),
		e.trendsCmd(),
		e.migrateCmd(),
		e.syncCmd(),
		e.networkCmd(),
		e.mcpCmd(),
	)
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// initConfig reads the config file and FRESHNESS_ environment variables
func (e *env) initConfig() error {
	if configFile := e.v.GetString("config"); configFile != "" {
		e.v.SetConfigFile(configFile)
	} else {
		e.v.SetConfigName(".freshness")
		e.v.SetConfigType("yaml")
		e.v.AddConfigPath(".")
		e.v.AddConfigPath("$HOME")
	}

	e.v.SetEnvPrefix("FRESHNESS")
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	if err := e.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (e *env) setup(cmd *cobra.Command) error {
	if err := e.initConfig(); err != nil {
		return err
	}

	logrus.SetOutput(cmd.ErrOrStderr())
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logrus.SetLevel(logrus.WarnLevel)
	if e.v.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if e.v.IsSet("db-backend") {
		cfg.DBBackend = e.v.GetString("db-backend")
	}
	if e.v.IsSet("db-dsn") {
		cfg.DBDSN = e.v.GetString("db-dsn")
	}
	if e.v.IsSet("storage-dir") {
		cfg.StorageDir = e.v.GetString("storage-dir")
	}
	if e.v.IsSet("site-url") {
		cfg.SiteURL = e.v.GetString("site-url")
	}
	e.cfg = cfg
	return nil
}

// open builds the services on first use
func (e *env) open(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.New(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	e.app = nil
	return err
}

// printer creates an output printer for the formats a command accepts
func (e *env) printer(cmd *cobra.Command, allowed ...output.Format) (*output.Printer, error) {
	format, err := output.ParseFormat(e.v.GetString("format"), allowed...)
	if err != nil {
		return nil, err
	}
	p := output.NewPrinter(format)
	p.Out = cmd.OutOrStdout()
	p.Err = cmd.ErrOrStderr()
	p.Width = e.v.GetInt("width")
	if e.v.GetBool("no-color") {
		p.Colors = false
	}
	return p, nil
}
