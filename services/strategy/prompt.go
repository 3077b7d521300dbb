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

import "strings"

// SystemPrompt sets the assistant persona and the JSON-only contract.
const SystemPrompt = `Você é FlyWise, um especialista em programas de fidelidade e milhas aéreas do Brasil.
Sua função é analisar um voo específico e gerar a melhor estratégia para emiti-lo usando milhas.
Responda SEMPRE em JSON válido, sem texto fora do JSON. Seja direto e prático.`

const answerSchema = `
=== RESPONDA EM JSON EXATAMENTE NESTE FORMATO ===
{
  "programa_recomendado": "<Smiles | LATAM Pass | TudoAzul | Livelo | ...>",
  "motivo": "<máx 2 frases explicando por quê este programa>",
  "steps": [
    "<passo 1: como obter/transferir milhas>",
    "<passo 2: como emitir o bilhete>",
    "<passo 3: dica de timing ou promoção a aproveitar>"
  ],
  "milhas_necessarias": <número inteiro>,
  "taxas_estimadas_brl": <número inteiro>,
  "economia_pct": <percentual de economia vs preço cash, inteiro>,
  "promocao_ativa": "<se houver promoção relevante, descreva brevemente ou null>",
  "alternativa": "<segundo programa recomendado ou null>",
  "aviso": "<aviso importante se houver, ou null>"
}`

// BuildPrompt concatenates the context blocks and the answer schema. The
// balances block is omitted when user is nil.
func BuildPrompt(flight FlightContext, promos []PromoContext, user *UserContext) string {
	sections := []string{
		"=== VOO SELECIONADO ===",
		flight.String(),
		"\n=== PROMOÇÕES ATIVAS ===",
		PromosString(promos),
	}
	if user != nil {
		sections = append(sections, "\n=== SALDO DO USUÁRIO ===", user.String())
	}
	sections = append(sections, answerSchema)
	return strings.Join(sections, "\n")
}

// EstimateTokens approximates a token count as one token per four bytes,
// rounded up.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
