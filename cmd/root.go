package main

import (
	"github.com/spf13/cobra"

	"github.com/Solar-crew/solar-detector/internal/config"
	"github.com/Solar-crew/solar-detector/internal/logging"
)

// options shared by every command.
type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func rootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "solar-detector",
		Short:         "Solar site suitability scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logging.Init(cfg.Logging)
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		serveCommand(opts),
		cloudinessCommand(opts),
		scoreCommand(opts),
	)
	return rootCmd
}
