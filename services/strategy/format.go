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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatNumberBR renders v the way Brazilian Portuguese locales do: "." groups
// thousands, "," separates decimals, at most three decimals, no trailing zeros.
//
//	FormatNumberBR(95000)  // "95.000"
//	FormatNumberBR(1234.5) // "1.234,5"
func FormatNumberBR(v float64) string {
	neg := v < 0
	v = math.Round(math.Abs(v)*1000) / 1000

	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	if len(frac) > 3 {
		frac = frac[:3]
	}
	frac = strings.TrimRight(frac, "0")

	var b strings.Builder
	if neg && (intPart != "0" || frac != "") {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatIntBR is FormatNumberBR for integers.
func FormatIntBR(v int) string {
	return FormatNumberBR(float64(v))
}

// FormatDateBR renders t as dd/MM/yyyy in loc.
func FormatDateBR(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02/01/2006")
}

// FormatMinutes renders a duration in minutes as "2h" or "2h5min". Zero and
// negative values render as an empty string.
func FormatMinutes(m int) string {
	if m <= 0 {
		return ""
	}
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh%dmin", m/60, m%60)
}

// clockOf returns the HH:mm part of an ISO timestamp, or "" when too short.
func clockOf(iso string) string {
	if len(iso) < 16 {
		return ""
	}
	return iso[11:16]
}

// truncateRunes shortens s to limit runes, replacing the tail with "...".
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
