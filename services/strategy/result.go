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
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// Result is the model's structured answer. Numeric fields are nil when the
// model omitted them or sent something unparseable.
type Result struct {
	ProgramaRecomendado string      `json:"programa_recomendado,omitempty"`
	Motivo              string      `json:"motivo,omitempty"`
	Steps               StringList  `json:"steps,omitempty"`
	MilhasNecessarias   *FlexNumber `json:"milhas_necessarias,omitempty"`
	TaxasEstimadasBRL   *FlexNumber `json:"taxas_estimadas_brl,omitempty"`
	EconomiaPct         *FlexNumber `json:"economia_pct,omitempty"`
	PromocaoAtiva       *string     `json:"promocao_ativa,omitempty"`
	Alternativa         *string     `json:"alternativa,omitempty"`
	Aviso               *string     `json:"aviso,omitempty"`

	// Structured is the decoded object as sent, kept for storage.
	Structured map[string]any `json:"-"`
	// Raw is the untouched model output.
	Raw string `json:"-"`
}

// FlexNumber accepts a JSON number or a numeric string such as "68%".
type FlexNumber float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexNumber(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(strings.NewReplacer("%", "", "R$", "", " ", "").Replace(s))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexNumber(v)
	}
	return nil
}

// Float returns the value, or nil for a nil receiver.
func (f *FlexNumber) Float() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// StringList accepts an array of strings or a single string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(b []byte) error {
	var many []any
	if err := json.Unmarshal(b, &many); err == nil {
		out := make([]string, 0, len(many))
		for _, v := range many {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err == nil && strings.TrimSpace(one) != "" {
		*l = StringList{one}
	}
	return nil
}

// ParseResult decodes the model output leniently.
//
// # Description
//
// Markdown code fences and any prose around the outermost JSON object are
// stripped. Output that still fails to decode yields an empty Result that
// keeps Raw, so the caller can return something instead of failing.
func ParseResult(raw string) Result {
	res := Result{Raw: raw}
	body := extractJSONObject(raw)
	if body == "" {
		slog.Warn("Model output contains no JSON object", "length", len(raw))
		return res
	}

	var structured map[string]any
	if err := json.Unmarshal([]byte(body), &structured); err != nil {
		slog.Warn("Model output is not valid JSON", "error", err)
		return res
	}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		slog.Warn("Model output has unexpected field types", "error", err)
	}
	res.Raw = raw
	res.Structured = structured
	return res
}

func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
