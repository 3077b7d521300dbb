// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flights searches airports and flight offers.
//
// # Description
//
// Provider is the seam between the API and whatever supplies fares. The
// Amadeus implementation talks to the Amadeus Self-Service APIs; the mock
// implementation produces deterministic LATAM/GOL/Azul fares for demos and
// tests. Offers are normalized to FlightOffer and converted to storage rows
// with ToResultRow.
package flights

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/flywise/pkg/loyalty"
	"github.com/AleutianAI/flywise/services/store"
)

// ErrNotConfigured is returned when provider credentials are missing.
var ErrNotConfigured = errors.New("flight provider credentials not configured")

// Airport is one airport suggestion.
type Airport struct {
	IATACode    string `json:"iataCode"`
	Name        string `json:"name"`
	CityName    string `json:"cityName"`
	CountryCode string `json:"countryCode"`
	Label       string `json:"label"`
}

// Cabin classes accepted by SearchParams.Cabin.
const (
	CabinEconomy        = "ECONOMY"
	CabinPremiumEconomy = "PREMIUM_ECONOMY"
	CabinBusiness       = "BUSINESS"
	CabinFirst          = "FIRST"
)

// SearchParams describes a flight offer search.
type SearchParams struct {
	Origin        string
	Destination   string
	DepartureDate string // YYYY-MM-DD
	ReturnDate    string // optional, YYYY-MM-DD
	Adults        int    // defaults to 1
	Cabin         string // optional, one of the Cabin constants
	Max           int    // defaults to the provider's configured maximum
	NonStop       bool
}

// FlightOffer is a normalized fare. Cash offers carry PrecoBRL; miles offers
// carry PrecoMilhas and CPM. Return fields are set only for round trips.
type FlightOffer struct {
	ID          string  `json:"id"`
	Companhia   string  `json:"companhia"`
	CarrierCode string  `json:"carrierCode"`
	PrecoBRL    float64 `json:"preco_brl,omitempty"`
	PrecoMilhas int     `json:"preco_milhas,omitempty"`
	TaxasBRL    float64 `json:"taxas_brl"`
	CPM         float64 `json:"cpm,omitempty"`

	Partida    string `json:"partida"`
	Chegada    string `json:"chegada"`
	Origem     string `json:"origem"`
	Destino    string `json:"destino"`
	DuracaoMin int    `json:"duracao_min"`
	Paradas    int    `json:"paradas"`

	ReturnPartida    string          `json:"returnPartida,omitempty"`
	ReturnChegada    string          `json:"returnChegada,omitempty"`
	ReturnOrigem     string          `json:"returnOrigem,omitempty"`
	ReturnDestino    string          `json:"returnDestino,omitempty"`
	ReturnDuracaoMin int             `json:"returnDuracaoMin,omitempty"`
	ReturnParadas    *int            `json:"returnParadas,omitempty"`
	ReturnSegmentos  []store.Segment `json:"returnSegmentos,omitempty"`

	CabinClass           string          `json:"cabin_class"`
	VooNumero            string          `json:"voo_numero,omitempty"`
	Segmentos            []store.Segment `json:"segmentos"`
	FlightKey            string          `json:"flight_key"`
	Provider             string          `json:"provider"`
	Moeda                string          `json:"moeda"`
	EstrategiaDisponivel bool            `json:"estrategia_disponivel"`

	Tipo     string `json:"tipo,omitempty"`
	Cor      string `json:"cor,omitempty"`
	Programa string `json:"programa,omitempty"`
}

// Provider supplies airports and fares.
type Provider interface {
	Name() string
	SearchAirports(ctx context.Context, keyword string) ([]Airport, error)
	SearchFlights(ctx context.Context, params SearchParams) ([]FlightOffer, error)
}

// ToResultRow converts an offer into a storage row. The airline is stored as
// "Name (CODE)" so the carrier code survives for program lookups.
func ToResultRow(o FlightOffer) store.ResultadoVoo {
	companhia := o.Companhia
	if o.CarrierCode != "" && loyalty.ExtractIATA(companhia) == "" {
		companhia = fmt.Sprintf("%s (%s)", o.Companhia, o.CarrierCode)
	}
	paradas := o.Paradas

	row := store.ResultadoVoo{
		Provider:             o.Provider,
		Companhia:            companhia,
		TaxasBRL:             floatPtr(o.TaxasBRL),
		Partida:              o.Partida,
		Chegada:              o.Chegada,
		Origem:               o.Origem,
		Destino:              o.Destino,
		CabinClass:           o.CabinClass,
		FlightKey:            o.FlightKey,
		EstrategiaDisponivel: o.EstrategiaDisponivel,
		Moeda:                o.Moeda,
		Segmentos:            o.Segmentos,
		Detalhes: store.Detalhes{
			Paradas:          &paradas,
			VooNumero:        o.VooNumero,
			ReturnPartida:    o.ReturnPartida,
			ReturnChegada:    o.ReturnChegada,
			ReturnOrigem:     o.ReturnOrigem,
			ReturnDestino:    o.ReturnDestino,
			ReturnDuracaoMin: o.ReturnDuracaoMin,
			ReturnParadas:    o.ReturnParadas,
			ReturnSegmentos:  o.ReturnSegmentos,
			Tipo:             o.Tipo,
			Cor:              o.Cor,
			Programa:         o.Programa,
		},
	}
	if row.Moeda == "" {
		row.Moeda = "BRL"
	}
	if o.PrecoBRL > 0 {
		row.PrecoBRL = floatPtr(o.PrecoBRL)
	}
	if o.PrecoMilhas > 0 {
		m := o.PrecoMilhas
		row.PrecoMilhas = &m
	}
	if o.CPM > 0 {
		row.CPM = floatPtr(o.CPM)
	}
	if o.DuracaoMin > 0 {
		d := o.DuracaoMin
		row.DuracaoMin = &d
	}
	return row
}

func floatPtr(v float64) *float64 { return &v }
