// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// enoughRatio is the share of the needed miles a balance must reach to be
// listed in HasEnoughFor.
const enoughRatio = 0.7

const noBalance = "Usuário sem saldo de milhas cadastrado."

// UserBalance is a positive balance in one program.
type UserBalance struct {
	Program string
	Points  int
}

// UserContext holds the user's balances, highest first.
type UserContext struct {
	UserID       string
	NeededMiles  int
	Balances     []UserBalance
	HasEnoughFor []UserBalance
}

// MilesStore is the slice of storage BuildUserContext needs.
type MilesStore interface {
	LatestUserMiles(ctx context.Context, userID string) (map[string]int, error)
}

// BuildUserContext loads the user's most recent wallet.
//
// Returns nil when the user has no positive balance or storage fails.
func BuildUserContext(ctx context.Context, st MilesStore, userID string, neededMiles int) *UserContext {
	miles, err := st.LatestUserMiles(ctx, userID)
	if err != nil {
		slog.Warn("Failed to load user miles", "user_id", userID, "error", err)
		return nil
	}

	balances := make([]UserBalance, 0, len(miles))
	for program, pts := range miles {
		if pts > 0 {
			balances = append(balances, UserBalance{Program: program, Points: pts})
		}
	}
	if len(balances) == 0 {
		return nil
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].Points != balances[j].Points {
			return balances[i].Points > balances[j].Points
		}
		return balances[i].Program < balances[j].Program
	})

	uc := &UserContext{UserID: userID, NeededMiles: neededMiles, Balances: balances}
	threshold := float64(neededMiles) * enoughRatio
	for _, b := range balances {
		if float64(b.Points) >= threshold {
			uc.HasEnoughFor = append(uc.HasEnoughFor, b)
		}
	}
	return uc
}

// String renders the balances block. A balance that covers the estimated
// need is marked as sufficient.
func (u *UserContext) String() string {
	if u == nil || len(u.Balances) == 0 {
		return noBalance
	}
	parts := make([]string, 0, len(u.Balances))
	for _, b := range u.Balances {
		s := fmt.Sprintf("%s: %s pts", b.Program, FormatIntBR(b.Points))
		if u.NeededMiles > 0 && b.Points >= u.NeededMiles {
			s += " ✓ suficiente"
		}
		parts = append(parts, s)
	}
	return "Saldo atual: " + strings.Join(parts, " | ")
}
