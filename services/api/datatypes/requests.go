// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response bodies of the HTTP API.
package datatypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/flywise/pkg/validation"
	"github.com/AleutianAI/flywise/services/flights"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("iata", func(fl validator.FieldLevel) bool {
		return validation.ValidateAirportCode(fl.Field().String()) == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register iata validator: %v", err))
	}
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// ValidationMessage renders a validation error as "invalid origem (iata)",
// joining several fields with "; ". Other errors are returned verbatim.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("invalid %s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// FlexID is a numeric id that also accepts a JSON string such as "42".
type FlexID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*id = FlexID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("id must be a number or numeric string")
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("id must be a number or numeric string")
	}
	*id = FlexID(n)
	return nil
}

// StrategyRequest is the body of POST /v1/strategy.
type StrategyRequest struct {
	FlightID FlexID `json:"flightId"`
	// UserID is honored only when the caller is not authenticated.
	UserID string `json:"userId,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FlightSearchRequest is the body of POST /v1/flights/search.
type FlightSearchRequest struct {
	Origin        string         `json:"origem" validate:"required,iata"`
	Destination   string         `json:"destino" validate:"required,iata,nefield=Origin"`
	DepartureDate string         `json:"data_ida" validate:"required,datetime=2006-01-02"`
	ReturnDate    string         `json:"data_volta,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Adults        int            `json:"passageiros,omitempty" validate:"omitempty,min=1,max=9"`
	Cabin         string         `json:"cabine,omitempty" validate:"omitempty,oneof=ECONOMY PREMIUM_ECONOMY BUSINESS FIRST"`
	NonStop       bool           `json:"somente_diretos,omitempty"`
	Bagagem       string         `json:"bagagem,omitempty" validate:"max=32"`
	Banco         string         `json:"banco,omitempty" validate:"max=64"`
	Programs      []string       `json:"programas,omitempty" validate:"max=16,dive,required"`
	UserMiles     map[string]int `json:"user_miles,omitempty" validate:"max=32,dive,keys,required,endkeys,gte=0"`
}

// Normalize upper-cases codes and the cabin and fills the adult default.
func (r *FlightSearchRequest) Normalize() {
	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
	r.Destination = strings.ToUpper(strings.TrimSpace(r.Destination))
	r.Cabin = strings.ToUpper(strings.TrimSpace(r.Cabin))
	r.DepartureDate = strings.TrimSpace(r.DepartureDate)
	r.ReturnDate = strings.TrimSpace(r.ReturnDate)
	if r.Adults == 0 {
		r.Adults = 1
	}
}

// Validate checks field formats and that the trip dates make sense
// relative to now.
func (r *FlightSearchRequest) Validate(now time.Time) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validation.ValidateTripDates(r.DepartureDate, r.ReturnDate, now)
}

// Params converts the request into provider search parameters.
func (r *FlightSearchRequest) Params() flights.SearchParams {
	return flights.SearchParams{
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureDate: r.DepartureDate,
		ReturnDate:    r.ReturnDate,
		Adults:        r.Adults,
		Cabin:         r.Cabin,
		NonStop:       r.NonStop,
	}
}

// FlightResult is an offer plus its stored row id when the search was saved.
type FlightResult struct {
	flights.FlightOffer
	ResultID *int64 `json:"result_id,omitempty"`
}

// FlightSearchResponse is the reply of POST /v1/flights/search.
type FlightSearchResponse struct {
	OK       bool           `json:"ok"`
	Provider string         `json:"provider"`
	SearchID *int64         `json:"busca_id,omitempty"`
	Count    int            `json:"count"`
	Results  []FlightResult `json:"resultados"`
}
