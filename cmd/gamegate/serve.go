package main

import (
	"github.com/spf13/cobra"

	"github.com/YiuTerran/go-gamegate/app"
	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/config"
	"github.com/YiuTerran/go-gamegate/module"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gate until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Log.BuildLogger()
			defer log.Flush()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			log.Info("configured rooms: %v", cfg.Resolver.Rooms)
			module.StaticRun(a.Modules(), a.Close)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (env overrides: GAMEGATE_*)")
	return cmd
}
