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
	"strings"
	"time"

	"github.com/AleutianAI/flywise/services/store"
)

const (
	// MaxPromos caps the promotions included in a prompt.
	MaxPromos = 5

	summaryLimit = 120
	noPromos     = "Nenhuma promoção ativa no banco."
)

// PromoContext is one promotion compressed for the prompt.
type PromoContext struct {
	Program  string // "Smiles", or "Geral" when unknown
	Type     string // "bonus_transferencia"
	Summary  string // title, or content when untitled, at most 120 runes
	Expires  string // "15/03/2025", empty when open-ended
	Source   string
	BonusPct int
	Parceiro string
}

// PromoStore is the slice of storage BuildPromoContext needs.
type PromoStore interface {
	ActivePromotions(ctx context.Context, now time.Time, programs []string, limit int) ([]store.Promocao, error)
	RecentPromotions(ctx context.Context, now time.Time, limit int) ([]store.Promocao, error)
}

// BuildPromoContext selects at most MaxPromos active promotions.
//
// # Description
//
// Promotions for the given programs come first, soonest expiry first. When
// none match, the most recent active promotions are used instead. Storage
// errors are logged and yield an empty list so the prompt still goes out.
func BuildPromoContext(ctx context.Context, st PromoStore, now time.Time, loc *time.Location, programs []string) []PromoContext {
	if len(programs) > 0 {
		specific, err := st.ActivePromotions(ctx, now, programs, MaxPromos)
		if err != nil {
			slog.Warn("Failed to load program promotions", "programs", programs, "error", err)
			return []PromoContext{}
		}
		if len(specific) > 0 {
			return mapPromos(specific, loc)
		}
	}

	recent, err := st.RecentPromotions(ctx, now, MaxPromos)
	if err != nil {
		slog.Warn("Failed to load recent promotions", "error", err)
		return []PromoContext{}
	}
	return mapPromos(recent, loc)
}

func mapPromos(rows []store.Promocao, loc *time.Location) []PromoContext {
	out := make([]PromoContext, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapPromo(r, loc))
	}
	return out
}

func mapPromo(r store.Promocao, loc *time.Location) PromoContext {
	program := r.Programa
	if program == "" {
		program = "Geral"
	}
	typ := r.Tipo
	if typ == "" {
		typ = "promocao"
	}
	summary := r.Titulo
	if summary == "" {
		summary = r.Conteudo
	}
	p := PromoContext{
		Program:  program,
		Type:     typ,
		Summary:  truncateRunes(summary, summaryLimit),
		Source:   r.Fonte,
		BonusPct: r.BonusPct,
		Parceiro: r.Parceiro,
	}
	if r.ValidUntil != nil {
		p.Expires = FormatDateBR(*r.ValidUntil, loc)
	}
	return p
}

// PromosString renders the promotions block of the prompt.
func PromosString(promos []PromoContext) string {
	if len(promos) == 0 {
		return noPromos
	}
	lines := make([]string, 0, len(promos))
	for i, p := range promos {
		parts := []string{fmt.Sprintf("%d. %s", i+1, p.Program)}
		if p.BonusPct > 0 {
			parts = append(parts, fmt.Sprintf("+%d%% bônus", p.BonusPct))
		}
		if p.Parceiro != "" {
			parts = append(parts, "via "+p.Parceiro)
		}
		parts = append(parts, "— "+p.Summary)
		if p.Expires != "" {
			parts = append(parts, fmt.Sprintf("(expira %s)", p.Expires))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}
