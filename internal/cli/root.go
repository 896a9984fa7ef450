// Package cli implements the casecollector command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"CaseCollector/internal/app"
	"CaseCollector/internal/config"
	"CaseCollector/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "casecollector",
		Short:         "Collect clinical case reports from bibliographic databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (defaults to $CASE_COLLECTOR_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newPendingCmd(opts),
		newApproveCmd(opts),
		newRejectCmd(opts),
		newAutoApproveCmd(opts),
		newLogsCmd(opts),
		newStatsCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() config.Config {
	if o.configPath == "" {
		return config.Load()
	}
	return config.LoadFrom(o.configPath)
}

// open builds the application. Only serve keeps the periodic trigger; one-shot commands
// log to stderr so stdout carries the command output.
func (o *rootOptions) open(cmd *cobra.Command, periodic bool) (*app.Application, error) {
	cfg := o.loadConfig()
	if !periodic {
		cfg.Collector.Enabled = false
	}
	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}

	out := cmd.ErrOrStderr()
	if periodic {
		out = cmd.OutOrStdout()
	}
	logger := logging.NewWithWriter(out, level, cfg.Logging.Format)
	return app.Open(cmd.Context(), cfg, logger)
}

// withApp opens the application for a one-shot command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(*app.Application) error) (err error) {
	application, err := o.open(cmd, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(cmd.Context()); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	return fn(application)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
