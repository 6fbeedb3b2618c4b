package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const rootLongDescription = `tracelens rewrites method bodies so that entering, exiting, returned
values, local value changes, thrown errors and timeouts are reported to a
runtime hook type.

Units are read as YAML or msgpack trees and written back in the same
encodings, or rendered as source.`

// NewRootCmd builds the tracelens command tree. Settings resolve from flags, then GHOSTWRITER_* environment
// variables, then the config file.
func NewRootCmd() (*cobra.Command, error) {
	var configFile string
	v, err := NewViper("")
	if err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:           "tracelens",
		Short:         "Method body instrumentation for tracing runtimes",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", configFile, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./tracelens.yaml)")
	ConfigureFlags(root.PersistentFlags(), v)

	root.AddCommand(newInstrumentCmd(v), newRenderCmd())
	return root, nil
}

func newInstrumentCmd(v *viper.Viper) *cobra.Command {
	opts := InstrumentOptions{}
	var showDiff bool
	cmd := &cobra.Command{
		Use:   "instrument [paths...]",
		Short: "Instrument unit files or directories of unit files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(v)
			if err != nil {
				return err
			}
			log, err := NewLogger(v)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			opts.Inputs = args
			if showDiff {
				opts.Diff = cmd.OutOrStdout()
			}
			summary, err := RunInstrument(cmd.Context(), cfg, opts, log)
			if err != nil {
				return err
			}
			log.Debug("summary", zap.Any("skipped", summary.SkipReasons), zap.Any("hooks", summary.HookTotals))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.OutputDir, "output", "o", "instrumented", "directory receiving the instrumented units")
	flags.StringVarP(&opts.Format, "format", "f", FormatYAML, "output format: yaml, msgpack or java")
	flags.BoolVar(&showDiff, "diff", false, "print a unified diff of every changed unit")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "directory of the persistent result cache, in memory when empty")
	flags.IntVar(&opts.CacheMB, "cachemb", 64, "cache memory budget in MB")
	flags.StringVar(&opts.ReportFile, "report", "", "file to output the run summary as JSON")
	flags.StringVar(&opts.ChartFile, "chart", "", "file to output the run summary chart as PNG")
	return cmd
}

func newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [files...]",
		Short: "Render unit files as source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := ExpandInputs(args)
			if err != nil {
				return err
			}
			for _, file := range files {
				u, err := ReadUnit(file)
				if err != nil {
					return err
				}
				data, err := EncodeUnit(u, FormatJava)
				if err != nil {
					return err
				} else if _, err = cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Execute runs the root command with the process arguments.
func Execute() error {
	root, err := NewRootCmd()
	if err != nil {
		return err
	}
	return root.Execute()
}
