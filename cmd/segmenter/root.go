package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hls-segmenter/internal/platform/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "segmenter",
		Short:         "Cut a stream into HLS segments and maintain a live playlist",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")

	rootCmd.AddCommand(newRunCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}

// loadConfig layers a .env file, the TOML file at path and the process
// environment over the defaults.
func loadConfig(path string) (config.Config, error) {
	_ = config.Load()

	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
