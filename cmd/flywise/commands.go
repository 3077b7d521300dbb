// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/flywise/pkg/config"
	"github.com/AleutianAI/flywise/pkg/logging"
)

// cli holds the state shared by every subcommand.
type cli struct {
	configPath string
	cfg        config.Config
	logger     *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "flywise",
		Short: "FlyWise backend: flight search, miles strategies and promotions",
		Long: `FlyWise searches flights, turns a chosen flight into a miles
redemption strategy with an LLM, and collects loyalty promotions from
travel blogs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger, err = logging.Setup(cfg.Logging)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "",
		"Path to a YAML config file (environment variables override it)")

	rootCmd.AddCommand(
		newServeCmd(c),
		newScrapeCmd(c),
		newStrategyCmd(c),
		newMigrateCmd(c),
	)
	return rootCmd
}
