// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import "time"

// Busca is a saved flight search together with the user's miles balances at
// the time of the search.
type Busca struct {
	ID          int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      string         `json:"user_id" gorm:"column:user_id;index:idx_buscas_user_created,priority:1;not null"`
	Origem      string         `json:"origem" gorm:"size:3;not null"`
	Destino     string         `json:"destino" gorm:"size:3;not null"`
	DataIda     string         `json:"data_ida" gorm:"column:data_ida;not null"`
	DataVolta   string         `json:"data_volta,omitempty" gorm:"column:data_volta"`
	Passageiros int            `json:"passageiros" gorm:"default:1"`
	Bagagem     string         `json:"bagagem"`
	Banco       string         `json:"banco,omitempty"`
	UserMiles   map[string]int `json:"user_miles" gorm:"column:user_miles;type:text;serializer:json"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index:idx_buscas_user_created,priority:2"`
}

// TableName implements gorm's tabler interface.
func (Busca) TableName() string { return "buscas" }

// Segment is one hop of a flight leg.
type Segment struct {
	Origem     string `json:"origem"`
	Partida    string `json:"partida,omitempty"`
	Destino    string `json:"destino"`
	Chegada    string `json:"chegada,omitempty"`
	Companhia  string `json:"companhia,omitempty"`
	Numero     string `json:"numero,omitempty"`
	DuracaoMin int    `json:"duracao_min,omitempty"`
}

// Detalhes holds provider-specific flight details. Return-leg fields are set
// only for round trips.
type Detalhes struct {
	Paradas          *int      `json:"paradas,omitempty"`
	VooNumero        string    `json:"voo_numero,omitempty"`
	ReturnPartida    string    `json:"returnPartida,omitempty"`
	ReturnChegada    string    `json:"returnChegada,omitempty"`
	ReturnOrigem     string    `json:"returnOrigem,omitempty"`
	ReturnDestino    string    `json:"returnDestino,omitempty"`
	ReturnDuracaoMin int       `json:"returnDuracaoMin,omitempty"`
	ReturnParadas    *int      `json:"returnParadas,omitempty"`
	ReturnSegmentos  []Segment `json:"returnSegmentos,omitempty"`
	Tipo             string    `json:"tipo,omitempty"`
	Cor              string    `json:"cor,omitempty"`
	Programa         string    `json:"programa,omitempty"`
}

// ResultadoVoo is one flight offer attached to a search. Nullable columns
// are pointers so a miles-only offer can have no cash price.
type ResultadoVoo struct {
	ID                   int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	BuscaID              int64     `json:"busca_id" gorm:"column:busca_id;index"`
	UserID               string    `json:"user_id" gorm:"column:user_id;index"`
	Provider             string    `json:"provider,omitempty"`
	Companhia            string    `json:"companhia,omitempty"`
	PrecoBRL             *float64  `json:"preco_brl,omitempty" gorm:"column:preco_brl"`
	PrecoMilhas          *int      `json:"preco_milhas,omitempty" gorm:"column:preco_milhas"`
	TaxasBRL             *float64  `json:"taxas_brl,omitempty" gorm:"column:taxas_brl"`
	CPM                  *float64  `json:"cpm,omitempty" gorm:"column:cpm"`
	Partida              string    `json:"partida,omitempty"`
	Chegada              string    `json:"chegada,omitempty"`
	Origem               string    `json:"origem,omitempty"`
	Destino              string    `json:"destino,omitempty"`
	DuracaoMin           *int      `json:"duracao_min,omitempty" gorm:"column:duracao_min"`
	CabinClass           string    `json:"cabin_class,omitempty" gorm:"column:cabin_class"`
	FlightKey            string    `json:"flight_key,omitempty" gorm:"column:flight_key"`
	EstrategiaDisponivel bool      `json:"estrategia_disponivel" gorm:"column:estrategia_disponivel"`
	Moeda                string    `json:"moeda,omitempty" gorm:"default:BRL"`
	Segmentos            []Segment `json:"segmentos,omitempty" gorm:"type:text;serializer:json"`
	Detalhes             Detalhes  `json:"detalhes" gorm:"type:text;serializer:json"`
	CreatedAt            time.Time `json:"created_at"`
}

// TableName implements gorm's tabler interface.
func (ResultadoVoo) TableName() string { return "resultados_voos" }

// Promocao is a loyalty promotion collected by the scraper.
type Promocao struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Titulo     string     `json:"titulo"`
	Conteudo   string     `json:"conteudo,omitempty"`
	URL        string     `json:"url" gorm:"column:url;uniqueIndex;not null"`
	Fonte      string     `json:"fonte,omitempty"`
	Programa   string     `json:"programa,omitempty" gorm:"index"`
	Tipo       string     `json:"tipo,omitempty"`
	BonusPct   int        `json:"bonus_pct,omitempty" gorm:"column:bonus_pct"`
	Parceiro   string     `json:"parceiro,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty" gorm:"column:valid_until;index"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName implements gorm's tabler interface.
func (Promocao) TableName() string { return "promocoes" }

// Strategy is a generated miles strategy for one flight.
type Strategy struct {
	ID               int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID           string         `json:"user_id" gorm:"column:user_id;index;not null"`
	BuscaID          *int64         `json:"busca_id,omitempty" gorm:"column:busca_id"`
	FlightID         int64          `json:"flight_id" gorm:"column:flight_id"`
	StrategyText     string         `json:"strategy_text" gorm:"column:strategy_text"`
	Tags             []string       `json:"tags" gorm:"type:text;serializer:json"`
	EconomiaPct      *float64       `json:"economia_pct,omitempty" gorm:"column:economia_pct"`
	PrecoCash        *float64       `json:"preco_cash,omitempty" gorm:"column:preco_cash"`
	PrecoEstrategia  *float64       `json:"preco_estrategia,omitempty" gorm:"column:preco_estrategia"`
	StructuredResult map[string]any `json:"structured_result,omitempty" gorm:"column:structured_result;type:text;serializer:json"`
	LLMModel         string         `json:"llm_model" gorm:"column:llm_model"`
	TokensUsed       int            `json:"tokens_used" gorm:"column:tokens_used"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TableName implements gorm's tabler interface.
func (Strategy) TableName() string { return "strategies" }

// models lists every table managed by Migrate.
var models = []any{&Busca{}, &ResultadoVoo{}, &Promocao{}, &Strategy{}}
