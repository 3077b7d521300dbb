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
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/flywise/services/llm"
	"github.com/AleutianAI/flywise/services/strategy"
)

func newStrategyCmd(c *cli) *cobra.Command {
	var (
		flightID int64
		userID   string
	)
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Generate a miles strategy for one stored flight and print it as JSON",
		Example: `  flywise strategy --flight 42
  flywise strategy --flight 42 --user 3f1c2a9e-2b7d-4c1e-9a55-0d3b7f6a1c22`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateLLM(); err != nil {
				return err
			}
			st, err := openStore(cmd, c)
			if err != nil {
				return err
			}
			defer st.Close()

			client, err := llm.NewFromConfig(c.cfg.LLM)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(c.cfg.Scraper.TimeZone)
			if err != nil {
				return err
			}
			svc := strategy.NewService(st, client, strategy.Config{
				Model:       c.cfg.LLM.Model,
				MaxTokens:   c.cfg.LLM.MaxTokens,
				Temperature: c.cfg.LLM.Temperature,
				Location:    loc,
			})

			resp, err := svc.Generate(cmd.Context(), strategy.Request{FlightID: flightID, UserID: userID})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().Int64Var(&flightID, "flight", 0, "Flight result id (resultados_voos.id)")
	cmd.Flags().StringVar(&userID, "user", "", "User id; when set the strategy is stored for that user")
	_ = cmd.MarkFlagRequired("flight")
	return cmd
}
