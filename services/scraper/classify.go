// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/flywise/pkg/loyalty"
)

// Promotion types.
const (
	TypeTransferBonus = "bonus_transferencia"
	TypePointsSale    = "compra_pontos"
	TypeTickets       = "passagens"
	TypeGeneric       = "promocao"
)

// partnerWindow is how far past the bonus mention the partner is searched.
const partnerWindow = 160

var (
	bonusPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(?:de\s+)?b[ôo]nus`),
		regexp.MustCompile(`(?i)b[ôo]nus\s+de\s+(?:até\s+)?(\d{1,3})\s*%`),
	}
	partnerPattern = regexp.MustCompile(`\b(?:[Vv]ia|[Dd][oa]|[Cc]om)\s+(\p{Lu}[\p{L}\d&]*(?:\s+\p{Lu}[\p{L}\d&]*)?)`)
	expiryPattern  = regexp.MustCompile(`(?i)até\s+(?:o\s+dia\s+)?(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?(?:,?\s+(?:às|as)\s+(\d{1,2})[h:](\d{2})?)?`)
	transferWord   = regexp.MustCompile(`(?i)transfer[eê]ncia|transferir|transfira`)
	pointsSale     = regexp.MustCompile(`(?i)compr\w*\s+(?:de\s+)?(?:pontos|milhas)`)
	ticketWords    = regexp.MustCompile(`(?i)passage(?:m|ns)|trechos?\b|ida e volta|resgates?\b`)
)

var programAliases = map[string]string{
	"azul fidelidade": loyalty.TudoAzul,
	"latampass":       loyalty.LatamPass,
	"tap miles&go":    loyalty.MilesAndGo,
}

// Classification is what the scraper infers from a post's text.
type Classification struct {
	Program    string
	Type       string
	BonusPct   int
	Partner    string
	ValidUntil *time.Time
}

// Classify reads program, bonus, partner, type and expiry from a post.
//
// # Description
//
// The title is searched before the body for every field. Expiry dates
// written without a year take the year of ref, moving to the next year when
// that would put them before ref's day. Dates without a time end at
// 23:59:59 local time.
//
// # Inputs
//
//   - title, content: Post text.
//   - ref: Publication time, used for year inference.
//   - loc: Time zone the dates are written in.
func Classify(title, content string, ref time.Time, loc *time.Location) Classification {
	texts := []string{title, content}
	var c Classification

	for _, t := range texts {
		if c.Program = detectProgram(t); c.Program != "" {
			break
		}
	}

	for _, t := range texts {
		pct, rest, ok := detectBonus(t)
		if !ok {
			continue
		}
		c.BonusPct = pct
		c.Partner = detectPartner(rest)
		break
	}

	joined := title + "\n" + content
	switch {
	case c.BonusPct > 0 && transferWord.MatchString(joined):
		c.Type = TypeTransferBonus
	case pointsSale.MatchString(joined):
		c.Type = TypePointsSale
	case ticketWords.MatchString(joined):
		c.Type = TypeTickets
	case c.BonusPct > 0:
		c.Type = TypeTransferBonus
	default:
		c.Type = TypeGeneric
	}

	for _, t := range texts {
		if until, ok := detectExpiry(t, ref, loc); ok {
			c.ValidUntil = &until
			break
		}
	}
	return c
}

// detectProgram returns the program mentioned earliest in s. Longer names win
// ties so "Miles&Smiles" is not read as "Smiles".
func detectProgram(s string) string {
	lower := strings.ToLower(s)
	best, bestPos := "", -1
	consider := func(needle, program string) {
		pos := strings.Index(lower, needle)
		if pos < 0 {
			return
		}
		if bestPos < 0 || pos < bestPos || (pos == bestPos && len(program) > len(best)) {
			best, bestPos = program, pos
		}
	}
	for _, p := range loyalty.Programs() {
		consider(strings.ToLower(p), p)
	}
	for alias, p := range programAliases {
		consider(alias, p)
	}
	return best
}

func detectBonus(s string) (pct int, rest string, ok bool) {
	for _, re := range bonusPatterns {
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		n, err := strconv.Atoi(s[loc[2]:loc[3]])
		if err != nil || n <= 0 {
			continue
		}
		return n, s[loc[1]:], true
	}
	return 0, "", false
}

func detectPartner(rest string) string {
	if len(rest) > partnerWindow {
		rest = rest[:partnerWindow]
	}
	m := partnerPattern.FindStringSubmatch(rest)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func detectExpiry(s string, ref time.Time, loc *time.Location) (time.Time, bool) {
	for _, m := range expiryPattern.FindAllStringSubmatch(s, -1) {
		if t, ok := expiryFromMatch(m, ref, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func expiryFromMatch(m []string, ref time.Time, loc *time.Location) (time.Time, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	ref = ref.In(loc)
	year := ref.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}

	hour, minute, sec := 23, 59, 59
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, sec = 0, 0
		if m[5] != "" {
			minute, _ = strconv.Atoi(m[5])
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	if !explicitYear {
		refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
		if t.Before(refDay) {
			t = t.AddDate(1, 0, 0)
		}
	}
	return t, true
}
