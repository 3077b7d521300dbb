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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flywise/services/scraper"
	"github.com/AleutianAI/flywise/services/store"
)

func newScrapeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Collect today's promotions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd, c)
			if err != nil {
				return err
			}
			defer st.Close()

			runner, err := scraper.NewRunner(c.cfg.Scraper, st)
			if err != nil {
				return err
			}
			res, err := runner.Run(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Expired promotions removed: %d\n", res.Expired)
			fmt.Fprintf(out, "Posts found today: %d\n", res.Found)
			fmt.Fprintf(out, "Saved: %d  Failed: %d  (%s)\n", res.Saved, res.Failed, res.Duration().Round(time.Millisecond))
			return err
		},
	}
}

// openStore connects to the configured database and migrates it when
// auto_migrate is set.
func openStore(cmd *cobra.Command, c *cli) (*store.Store, error) {
	st, err := store.Open(c.cfg.Database)
	if err != nil {
		return nil, err
	}
	if c.cfg.Database.AutoMigrate {
		if err := st.Migrate(cmd.Context()); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}
