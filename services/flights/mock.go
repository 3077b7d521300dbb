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
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/flywise/pkg/loyalty"
	"github.com/AleutianAI/flywise/services/store"
)

const mockProvider = "mock"

type mockAirline struct {
	short      string
	name       string
	code       string
	color      string
	priceBase  float64
	priceRange float64
	miles      int
	taxes      float64
	durationM  int
	offsetH    int
	program    string
}

var mockAirlines = []mockAirline{
	{short: "LATAM", name: "LATAM Airlines", code: "LA", color: "#D42B2B", priceBase: 1800, priceRange: 800,
		miles: 55000, taxes: 380, durationM: 175, offsetH: 6, program: loyalty.LatamPass},
	{short: "GOL", name: "GOL Linhas Aéreas", code: "G3", color: "#F97316", priceBase: 1500, priceRange: 600,
		miles: 42000, taxes: 290, durationM: 165, offsetH: 10, program: loyalty.Smiles},
	{short: "Azul", name: "Azul Linhas Aéreas", code: "AD", color: "#1D4ED8", priceBase: 2100, priceRange: 900,
		miles: 65000, taxes: 420, durationM: 185, offsetH: 14, program: loyalty.TudoAzul},
}

var mockAirports = []Airport{
	{IATACode: "GRU", Name: "Guarulhos Intl", CityName: "São Paulo", CountryCode: "BR"},
	{IATACode: "CGH", Name: "Congonhas", CityName: "São Paulo", CountryCode: "BR"},
	{IATACode: "VCP", Name: "Viracopos", CityName: "Campinas", CountryCode: "BR"},
	{IATACode: "GIG", Name: "Galeão Intl", CityName: "Rio de Janeiro", CountryCode: "BR"},
	{IATACode: "SDU", Name: "Santos Dumont", CityName: "Rio de Janeiro", CountryCode: "BR"},
	{IATACode: "BSB", Name: "Brasília Intl", CityName: "Brasília", CountryCode: "BR"},
	{IATACode: "CNF", Name: "Confins Intl", CityName: "Belo Horizonte", CountryCode: "BR"},
	{IATACode: "SSA", Name: "Salvador Intl", CityName: "Salvador", CountryCode: "BR"},
	{IATACode: "REC", Name: "Guararapes Intl", CityName: "Recife", CountryCode: "BR"},
	{IATACode: "FOR", Name: "Pinto Martins Intl", CityName: "Fortaleza", CountryCode: "BR"},
	{IATACode: "POA", Name: "Salgado Filho Intl", CityName: "Porto Alegre", CountryCode: "BR"},
	{IATACode: "FLN", Name: "Hercílio Luz Intl", CityName: "Florianópolis", CountryCode: "BR"},
	{IATACode: "LIS", Name: "Humberto Delgado", CityName: "Lisboa", CountryCode: "PT"},
	{IATACode: "MIA", Name: "Miami Intl", CityName: "Miami", CountryCode: "US"},
	{IATACode: "JFK", Name: "John F Kennedy Intl", CityName: "New York", CountryCode: "US"},
	{IATACode: "CDG", Name: "Charles de Gaulle", CityName: "Paris", CountryCode: "FR"},
	{IATACode: "EZE", Name: "Ministro Pistarini", CityName: "Buenos Aires", CountryCode: "AR"},
	{IATACode: "SCL", Name: "Arturo Merino Benítez", CityName: "Santiago", CountryCode: "CL"},
}

// MockProvider returns synthetic LATAM, GOL and Azul fares. Each airline
// yields a cash offer and a miles offer departing 45 minutes later.
//
// # Thread Safety
//
// Safe for concurrent use.
type MockProvider struct {
	mu       sync.Mutex
	rng      *rand.Rand
	location *time.Location
}

// NewMockProvider creates a mock provider. The same seed yields the same
// prices. Times are rendered in loc; nil means America/Sao_Paulo.
func NewMockProvider(seed uint64, loc *time.Location) *MockProvider {
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/Sao_Paulo")
		if err != nil {
			loc = time.UTC
		}
	}
	return &MockProvider{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		location: loc,
	}
}

// Name implements Provider.
func (m *MockProvider) Name() string { return mockProvider }

// SearchAirports matches keyword against city, name and code.
func (m *MockProvider) SearchAirports(_ context.Context, keyword string) ([]Airport, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	out := []Airport{}
	if len([]rune(keyword)) < 2 {
		return out, nil
	}
	for _, a := range mockAirports {
		if strings.Contains(strings.ToLower(a.CityName), keyword) ||
			strings.Contains(strings.ToLower(a.Name), keyword) ||
			strings.EqualFold(a.IATACode, keyword) {
			a.Label = fmt.Sprintf("%s (%s) — %s", a.CityName, a.IATACode, a.CountryCode)
			out = append(out, a)
			if len(out) == airportLimit {
				break
			}
		}
	}
	recordSearch(mockProvider, "airports", nil)
	return out, nil
}

// SearchFlights implements Provider.
func (m *MockProvider) SearchFlights(_ context.Context, p SearchParams) ([]FlightOffer, error) {
	base, err := time.ParseInLocation("2006-01-02", p.DepartureDate, m.location)
	if err != nil {
		recordSearch(mockProvider, "flights", err)
		return nil, fmt.Errorf("invalid departure date %q: %w", p.DepartureDate, err)
	}
	base = base.Add(6 * time.Hour)
	passengers := p.Adults
	if passengers <= 0 {
		passengers = 1
	}
	origem := strings.ToUpper(strings.TrimSpace(p.Origin))
	destino := strings.ToUpper(strings.TrimSpace(p.Destination))

	const layout = "2006-01-02T15:04:05-07:00"
	offers := make([]FlightOffer, 0, 2*len(mockAirlines))
	for idx, a := range mockAirlines {
		departure := base.Add(time.Duration(a.offsetH) * time.Hour)
		arrival := departure.Add(time.Duration(a.durationM) * time.Minute)
		cpm := math.Round(a.taxes/(float64(a.miles)/1000)*100) / 100
		segments := []store.Segment{{Origem: origem, Destino: destino, Companhia: a.name}}
		companhia := fmt.Sprintf("%s (%s)", a.name, a.code)

		m.mu.Lock()
		price := math.Round((a.priceBase + m.rng.Float64()*a.priceRange) * float64(passengers))
		m.mu.Unlock()

		offers = append(offers, FlightOffer{
			ID:                   fmt.Sprintf("mock-%d-cash", idx),
			Companhia:            companhia,
			CarrierCode:          a.code,
			PrecoBRL:             price,
			Partida:              departure.Format(layout),
			Chegada:              arrival.Format(layout),
			Origem:               origem,
			Destino:              destino,
			DuracaoMin:           a.durationM,
			CabinClass:           "economy",
			Segmentos:            segments,
			FlightKey:            fmt.Sprintf("%s-cash-%d", strings.ToLower(a.short), idx),
			Provider:             mockProvider,
			Moeda:                "BRL",
			EstrategiaDisponivel: idx < 2,
			Tipo:                 "cash",
			Cor:                  a.color,
		}, FlightOffer{
			ID:                   fmt.Sprintf("mock-%d-miles", idx),
			Companhia:            companhia,
			CarrierCode:          a.code,
			PrecoMilhas:          a.miles * passengers,
			TaxasBRL:             a.taxes,
			CPM:                  cpm,
			Partida:              departure.Add(45 * time.Minute).Format(layout),
			Chegada:              arrival.Add(45 * time.Minute).Format(layout),
			Origem:               origem,
			Destino:              destino,
			DuracaoMin:           a.durationM,
			CabinClass:           "economy",
			Segmentos:            segments,
			FlightKey:            fmt.Sprintf("%s-miles-%d", strings.ToLower(a.short), idx),
			Provider:             mockProvider,
			Moeda:                "BRL",
			EstrategiaDisponivel: idx < 2,
			Tipo:                 "milhas",
			Cor:                  a.color,
			Programa:             a.program,
		})
	}
	recordSearch(mockProvider, "flights", nil)
	return offers, nil
}
