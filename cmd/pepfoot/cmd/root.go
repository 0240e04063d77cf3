// Package cmd provides CLI command implementations
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepfoot/pkg/config"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

var (
	// Global flags
	configFile  string
	logLevel    string
	logFormat   string
	projectFile string

	// Set by the root pre-run hook
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pepfoot",
	Short: "pepfoot - peptide footprinting analysis",
	Long: `pepfoot quantifies protein footprinting experiments from LC-MS data.

It digests a protein sequence in silico, predicts the isotope envelopes of the
unmodified and modified peptides, integrates their ion chromatograms across
data files and compares the fractional modification between apo and holo
samples.

Typical workflow:
  pepfoot new demo --sequence MKWVTFISLLLLFSSAYSR --data apo1.mzML,holo1.mzML -p demo.json
  pepfoot integrate -p demo.json --file 1 --peptide 1-19 --label mod --charge 2 --rt 10.2,10.9
  pepfoot batch -p demo.json
  pepfoot group -p demo.json --apo 1 --holo 2
  pepfoot analyze -p demo.json`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if logger, err = newLogger(logLevel, logFormat); err != nil {
			return err
		}
		slog.SetDefault(logger)

		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Settings file (default $"+config.EnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&projectFile, "project", "p", "", "Project document")
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format '%s', must be text or json", format)
}

func loadProject() (*project.Project, error) {
	if projectFile == "" {
		return nil, errors.New("no project given, use --project")
	}
	return project.Load(projectFile)
}

func saveProject(p *project.Project) error {
	if err := p.Save(projectFile); err != nil {
		return err
	}
	logger.Debug("project saved", "path", projectFile, "peptides", len(p.Peptides), "files", len(p.Files))
	return nil
}

func modDatabase() (*core.ModDatabase, error) {
	return cfg.ModDatabase()
}

// integrationMethod prefers the method recorded in the project.
func integrationMethod(p *project.Project) string {
	if p != nil && p.Method != "" {
		return p.Method
	}
	return string(cfg.Integration.Method)
}
