// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that end up in
// provider query strings and database filters.
//
// Airport codes and travel dates arrive from browser forms and are forwarded
// to the flight provider verbatim, so they are normalized and checked here
// before any outbound call is made.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the wire format for travel dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// airportPattern matches IATA airport or city codes: exactly three
// uppercase letters.
var airportPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateAirportCode validates an IATA airport code.
//
// Valid codes are exactly three uppercase letters (GRU, JFK, LIS).
//
// Example:
//
//	if err := validation.ValidateAirportCode(code); err != nil {
//	    return fmt.Errorf("invalid origin: %w", err)
//	}
func ValidateAirportCode(code string) error {
	if code == "" {
		return fmt.Errorf("airport code cannot be empty")
	}

	if !airportPattern.MatchString(code) {
		return fmt.Errorf("invalid airport code: %q (must be 3 uppercase letters)", code)
	}

	return nil
}

// SanitizeAirportCode trims and upper-cases a code, then validates it.
func SanitizeAirportCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateAirportCode(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ParseTravelDate parses a YYYY-MM-DD date.
func ParseTravelDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return d, nil
}

// ValidateTripDates checks a departure date and an optional return date.
//
// The departure must not be before the calendar day of now and the
// return, when present, must not be before the departure.
func ValidateTripDates(departure, ret string, now time.Time) error {
	dep, err := ParseTravelDate(departure)
	if err != nil {
		return err
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if dep.Before(today) {
		return fmt.Errorf("departure date %s is in the past", departure)
	}
	if ret == "" {
		return nil
	}
	back, err := ParseTravelDate(ret)
	if err != nil {
		return err
	}
	if back.Before(dep) {
		return fmt.Errorf("return date %s is before departure %s", ret, departure)
	}
	return nil
}
