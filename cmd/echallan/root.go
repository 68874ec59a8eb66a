package main

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"echallan-service/internal/config"
	"echallan-service/internal/logging"
)

type commandContext struct {
	configFlag *string

	once   sync.Once
	config *config.Config
	log    zerolog.Logger
	err    error
}

func (c *commandContext) ensureConfig() (*config.Config, zerolog.Logger, error) {
	c.once.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.log = logging.New(cfg.Log.Level, cfg.Log.Pretty)
	})
	return c.config, c.log, c.err
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "echallan",
		Short:         "Plate detection and e-challan issuance service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))

	return rootCmd
}
