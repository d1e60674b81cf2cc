// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package generator

// modelPrice is the cost per 1M tokens in USD.
type modelPrice struct {
	Input  float64
	Output float64
}

var prices = map[string]modelPrice{
	"gpt-4o":       {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
	"gpt-4.1":      {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
	"gpt-4.1-nano": {Input: 0.10, Output: 0.40},
	"o3-mini":      {Input: 1.10, Output: 4.40},
}

// CalculateCost estimates the USD cost of a call. Unknown models cost 0.
func CalculateCost(modelID string, promptTokens, completionTokens int64) float64 {
	p, ok := prices[modelID]
	if !ok {
		return 0
	}
	return (float64(promptTokens)*p.Input + float64(completionTokens)*p.Output) / 1_000_000
}
