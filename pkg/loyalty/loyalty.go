// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loyalty maps airlines to the frequent-flyer programs that can
// redeem miles on them.
//
// # Description
//
// The table reflects the partner agreements of each program. A user who
// filters by "Smiles" should see every airline where Smiles miles can be
// spent, not just GOL. Airlines missing from the table fall back to Livelo,
// which is accepted almost everywhere through transfers.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The table is read-only after
// package initialization and every returned slice is a copy.
package loyalty

import (
	"math"
	"regexp"
	"strings"
)

// Program names as shown to users and stored in wallets.
const (
	Smiles       = "Smiles"
	LatamPass    = "LATAM Pass"
	TudoAzul     = "TudoAzul"
	Livelo       = "Livelo"
	Aeroplan     = "Aeroplan"
	AAdvantage   = "AAdvantage"
	MileagePlus  = "MileagePlus"
	FlyingBlue   = "Flying Blue"
	Lifemiles    = "Lifemiles"
	MilesAndMore = "Miles&More"
	IberiaPlus   = "Iberia Plus"
	MilesAndGo   = "Miles&Go"
	ConnectMiles = "ConnectMiles"
	ShebaMiles   = "ShebaMiles"
	MilesSmiles  = "Miles&Smiles"
	SkyMiles     = "SkyMiles"
)

// MilesPerBRL is the rough conversion used to estimate a miles price from a
// cash fare when the provider does not quote one.
const MilesPerBRL = 55

var programs = []string{
	Smiles, LatamPass, TudoAzul, Livelo, Aeroplan, AAdvantage, MileagePlus,
	FlyingBlue, Lifemiles, MilesAndMore, IberiaPlus, MilesAndGo, ConnectMiles,
	ShebaMiles, MilesSmiles, SkyMiles,
}

var topPrograms = []string{
	Smiles, LatamPass, TudoAzul, Livelo, Aeroplan, AAdvantage, FlyingBlue,
	MileagePlus, Lifemiles, MilesAndMore,
}

var fallbackPrograms = []string{Livelo}

var airlinePrograms = map[string][]string{
	// Brazil
	"LA": {LatamPass, Smiles, Livelo},
	"JJ": {LatamPass, Smiles, Livelo}, // legacy LATAM Brasil code
	"G3": {Smiles, Livelo},
	"AD": {TudoAzul, Livelo},
	// North America
	"AC": {Smiles, Aeroplan, Livelo},
	"AA": {Smiles, AAdvantage, Livelo},
	"UA": {Smiles, MileagePlus, Livelo},
	"DL": {Smiles, SkyMiles, Livelo},
	"WS": {Aeroplan, Smiles},
	// Europe
	"TP": {MilesAndGo, Smiles, Livelo},
	"IB": {IberiaPlus, Smiles, Livelo},
	"AF": {FlyingBlue, Smiles, Livelo},
	"KL": {FlyingBlue, Smiles, Livelo},
	"LH": {MilesAndMore, Smiles, Livelo},
	"LX": {MilesAndMore, Smiles, Livelo},
	"OS": {MilesAndMore, Smiles, Livelo},
	"SN": {MilesAndMore, Livelo},
	"BA": {Smiles, Livelo},
	"SK": {Smiles, Livelo},
	"AZ": {Smiles, Livelo},
	// Latin America and Caribbean
	"AV": {Lifemiles, Smiles, Livelo},
	"CM": {ConnectMiles, Smiles, Livelo},
	"AM": {Smiles, Livelo},
	"AR": {Smiles, Livelo},
	"UX": {Smiles, Livelo},
	// Africa, Middle East and Asia
	"ET": {ShebaMiles, Smiles},
	"TK": {MilesSmiles, Smiles, Livelo},
	"EK": {Smiles, Livelo},
	"QR": {Smiles, Livelo},
	"SA": {Smiles},
	"MH": {Smiles, Livelo},
	"SQ": {Smiles, Livelo},
	"JL": {Smiles, Livelo},
	"NH": {Smiles, Livelo},
	"CX": {Smiles, Livelo},
}

var airlineNames = map[string]string{
	"LA": "LATAM Airlines", "JJ": "LATAM Airlines",
	"G3": "GOL Linhas Aéreas", "AD": "Azul Linhas Aéreas",
	"AA": "American Airlines", "UA": "United Airlines", "DL": "Delta Air Lines",
	"AF": "Air France", "KL": "KLM", "LH": "Lufthansa",
	"TP": "TAP Air Portugal", "IB": "Iberia", "BA": "British Airways",
	"EK": "Emirates", "QR": "Qatar Airways", "TK": "Turkish Airlines",
	"LX": "Swiss", "OS": "Austrian Airlines", "AZ": "ITA Airways",
	"ET": "Ethiopian Airlines", "CM": "Copa Airlines", "AV": "Avianca",
	"AC": "Air Canada",
}

// IATA airline designators are two characters, letters or digits (G3, 4O),
// optionally followed by a letter. All-digit tokens are never codes.
var (
	parenCodePattern    = regexp.MustCompile(`\(([A-Z0-9]{2}[A-Z]?)\)`)
	bareCodePattern     = regexp.MustCompile(`^[A-Z0-9]{2}[A-Z]?$`)
	trailingCodePattern = regexp.MustCompile(`\s*\(([A-Z0-9]{2}[A-Z]?)\)\s*$`)
)

// Programs returns every known loyalty program.
func Programs() []string {
	return clone(programs)
}

// TopPrograms returns the programs offered as quick filters, most common in
// Brazil first.
func TopPrograms() []string {
	return clone(topPrograms)
}

// IsKnownProgram reports whether name is one of Programs().
func IsKnownProgram(name string) bool {
	for _, p := range programs {
		if p == name {
			return true
		}
	}
	return false
}

// ProgramsForAirline returns the programs that redeem on the airline.
//
// # Description
//
// Looks up the IATA code case-insensitively. Unknown or empty codes return
// the Livelo fallback.
//
// # Examples
//
//	ProgramsForAirline("ac") // ["Smiles", "Aeroplan", "Livelo"]
//	ProgramsForAirline("ZZ") // ["Livelo"]
func ProgramsForAirline(iata string) []string {
	if p, ok := airlinePrograms[strings.ToUpper(strings.TrimSpace(iata))]; ok {
		return clone(p)
	}
	return clone(fallbackPrograms)
}

// AirlineMatchesPrograms reports whether any selected program can be used on
// the airline. An empty selection matches everything.
func AirlineMatchesPrograms(iata string, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	available := ProgramsForAirline(iata)
	for _, s := range selected {
		for _, a := range available {
			if s == a {
				return true
			}
		}
	}
	return false
}

// ExtractIATA pulls the carrier code out of an airline label.
//
// # Description
//
// Accepts labels like "Air Canada (AC)", "GOL Linhas Aéreas (G3)" or a bare
// code like "AC". Anything else yields an empty string.
func ExtractIATA(companhia string) string {
	if companhia == "" {
		return ""
	}
	for _, m := range parenCodePattern.FindAllStringSubmatch(companhia, -1) {
		if hasLetter(m[1]) {
			return m[1]
		}
	}
	trimmed := strings.TrimSpace(companhia)
	if bareCodePattern.MatchString(trimmed) && hasLetter(trimmed) {
		return trimmed
	}
	return ""
}

// TrimIATA removes a trailing "(CODE)" from an airline label.
func TrimIATA(companhia string) string {
	m := trailingCodePattern.FindStringSubmatchIndex(companhia)
	if m == nil || !hasLetter(companhia[m[2]:m[3]]) {
		return strings.TrimSpace(companhia)
	}
	return strings.TrimSpace(companhia[:m[0]])
}

func hasLetter(code string) bool {
	return strings.IndexFunc(code, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
}

// AirlineName returns the display name for a carrier code, or the code itself
// when unknown.
func AirlineName(code string) string {
	if name, ok := airlineNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// EstimateMiles converts a cash fare into a rough miles price rounded to the
// nearest thousand.
func EstimateMiles(priceBRL float64) int {
	if priceBRL <= 0 {
		return 0
	}
	return int(math.Round(priceBRL*MilesPerBRL/1000)) * 1000
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
