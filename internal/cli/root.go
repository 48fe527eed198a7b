package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/internal/config"
	"github.com/prince1katiyar/Parking-project/internal/logging"
)

func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "parking",
		Short:         "Conversational parking slot discovery and booking",
		Long:          "parking runs an assistant that finds parking locations, searches available slots and books them through a chat conversation.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (defaults to ./parking.yaml when present)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newSeedCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
