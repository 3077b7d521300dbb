// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flights

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/flywise/pkg/config"
	"github.com/AleutianAI/flywise/services/cache"
)

// NewFromConfig builds the configured provider. An Amadeus provider without
// credentials falls back to the mock provider with a warning.
func NewFromConfig(cfg config.FlightsConfig, c *cache.Cache) (Provider, error) {
	switch cfg.Provider {
	case "mock":
		return NewMockProvider(uint64(time.Now().UnixNano()), nil), nil
	case "amadeus", "":
		p, err := NewAmadeusClient(AmadeusConfig{
			BaseURL:           cfg.BaseURL,
			ClientID:          cfg.ClientID,
			ClientSecret:      cfg.ClientSecret,
			Currency:          cfg.Currency,
			MaxResults:        cfg.MaxResults,
			RequestsPerSecond: cfg.RequestsPerSecond,
			AirportCacheTTL:   cfg.AirportCacheTTL,
			OfferCacheTTL:     cfg.OfferCacheTTL,
			Cache:             c,
		})
		if errors.Is(err, ErrNotConfigured) {
			slog.Warn("Amadeus credentials missing, using mock flights")
			return NewMockProvider(uint64(time.Now().UnixNano()), nil), nil
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown flight provider %q", cfg.Provider)
	}
}
