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
	"strings"
	"time"

	"github.com/AleutianAI/flywise/pkg/loyalty"
	"github.com/AleutianAI/flywise/services/store"
)

// maxPromptPrograms caps the programs listed in the flight block.
const maxPromptPrograms = 5

// FlightContext is a flight row compressed to what the prompt needs.
type FlightContext struct {
	FlightID      int64
	Route         string // "GRU → JFK"
	AirlineIATA   string // "AC"
	AirlineName   string // "Air Canada"
	Programs      []string
	PriceBRL      float64
	PriceMilesEst int
	Stops         int
	DurationH     float64
	Outbound      string // "10:30 GRU → 23:45 JFK (12h30min, 1 conexão: YYZ)"
	ReturnFlight  string // empty for one-way
	DateLabel     string // "10/05/2025"
	IsRoundTrip   bool
	CabinClass    string
}

// BuildFlightContext compresses a stored flight row.
//
// # Description
//
// The carrier code comes from the airline label; flights without one fall
// back to Livelo. Miles are a rough estimate from the cash fare. When the
// row does not record its stop count, the segment count is used.
//
// # Inputs
//
//   - f: Flight row. Must not be nil.
//
// # Outputs
//
//   - FlightContext: Always populated; missing fields use "?" or zero values.
func BuildFlightContext(f *store.ResultadoVoo) FlightContext {
	det := f.Detalhes
	iata := loyalty.ExtractIATA(f.Companhia)

	programs := []string{loyalty.Livelo}
	if iata != "" {
		programs = loyalty.ProgramsForAirline(iata)
	}

	price := 0.0
	if f.PrecoBRL != nil {
		price = *f.PrecoBRL
	}
	duration := 0
	if f.DuracaoMin != nil {
		duration = *f.DuracaoMin
	}

	stops := stopCount(det.Paradas, f.Segmentos)
	out := formatLeg(f.Partida, f.Chegada, f.Origem, f.Destino, duration, stops, stopCodes(f.Segmentos))

	ret := ""
	if det.ReturnPartida != "" {
		retStops := stopCount(det.ReturnParadas, det.ReturnSegmentos)
		ret = formatLeg(det.ReturnPartida, det.ReturnChegada, det.ReturnOrigem, det.ReturnDestino,
			det.ReturnDuracaoMin, retStops, stopCodes(det.ReturnSegmentos))
	}

	cabin := f.CabinClass
	if cabin == "" {
		cabin = "economy"
	}

	return FlightContext{
		FlightID:      f.ID,
		Route:         fmt.Sprintf("%s → %s", orUnknown(f.Origem), orUnknown(f.Destino)),
		AirlineIATA:   iata,
		AirlineName:   airlineLabel(f.Companhia, iata),
		Programs:      programs,
		PriceBRL:      price,
		PriceMilesEst: loyalty.EstimateMiles(price),
		Stops:         stops,
		DurationH:     math.Round(float64(duration)/60*10) / 10,
		Outbound:      out,
		ReturnFlight:  ret,
		DateLabel:     dateLabel(f.Partida),
		IsRoundTrip:   det.ReturnPartida != "",
		CabinClass:    cabin,
	}
}

// String renders the flight block of the prompt.
func (c FlightContext) String() string {
	lines := []string{
		fmt.Sprintf("Rota: %s | %s (%s)", c.Route, c.AirlineName, c.AirlineIATA),
		fmt.Sprintf("Data: %s | Cabine: %s", c.DateLabel, c.CabinClass),
		fmt.Sprintf("Preço cash: R$ %s | Milhas est.: ~%s pts", FormatNumberBR(c.PriceBRL), FormatIntBR(c.PriceMilesEst)),
		"Ida: " + c.Outbound,
	}
	if c.ReturnFlight != "" {
		lines = append(lines, "Volta: "+c.ReturnFlight)
	}
	programs := c.Programs
	if len(programs) > maxPromptPrograms {
		programs = programs[:maxPromptPrograms]
	}
	lines = append(lines, "Programas aceitos: "+strings.Join(programs, ", "))
	return strings.Join(lines, "\n")
}

// formatLeg renders "10:30 GRU → 23:45 JFK (12h30min, 1 conexão: YYZ)".
func formatLeg(dep, arr, from, to string, durationMin, stops int, codes string) string {
	var parts []string
	if t := clockOf(dep); t != "" {
		parts = append(parts, t)
	}
	if from != "" {
		parts = append(parts, from)
	}
	parts = append(parts, "→")
	if t := clockOf(arr); t != "" {
		parts = append(parts, t)
	}
	if to != "" {
		parts = append(parts, to)
	}

	stopStr := "direto"
	if stops > 0 {
		stopStr = fmt.Sprintf("%d conexão", stops)
		if codes != "" {
			stopStr += ": " + codes
		}
	}
	detail := stopStr
	if dur := FormatMinutes(durationMin); dur != "" {
		detail = dur + ", " + stopStr
	}
	parts = append(parts, "("+detail+")")
	return strings.Join(parts, " ")
}

// stopCodes joins the destinations of every segment but the last with "·".
func stopCodes(segs []store.Segment) string {
	if len(segs) < 2 {
		return ""
	}
	var codes []string
	for _, s := range segs[:len(segs)-1] {
		if s.Destino != "" {
			codes = append(codes, s.Destino)
		}
	}
	return strings.Join(codes, "·")
}

func stopCount(recorded *int, segs []store.Segment) int {
	if recorded != nil {
		return *recorded
	}
	if len(segs) > 1 {
		return len(segs) - 1
	}
	return 0
}

// airlineLabel strips a trailing "(XX)" code from the stored label since the
// prompt prints the code separately.
func airlineLabel(companhia, iata string) string {
	name := loyalty.TrimIATA(companhia)
	if name == "" || name == iata {
		if iata == "" {
			return "?"
		}
		return loyalty.AirlineName(iata)
	}
	return name
}

func dateLabel(partida string) string {
	if len(partida) < 10 {
		return ""
	}
	d, err := time.Parse("2006-01-02", partida[:10])
	if err != nil {
		return ""
	}
	return d.Format("02/01/2006")
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
