// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ProviderOpenAI identifies the OpenAI adapter in the usage ledger.
const ProviderOpenAI = "openai"

const maxCompletionTokens = 8192

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	APIKey string
	// BaseURL points at an OpenAI-compatible API; empty uses api.openai.com.
	BaseURL string
	Model   string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// OpenAIGenerator drafts articles with the chat completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator creates the adapter. The SDK's own retries are disabled:
// a failed generation is reported to the caller instead.
func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("openai model is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &OpenAIGenerator{
		client: openai.NewClient(reqOpts...),
		model:  opts.Model,
	}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildSystemPrompt(req)),
			openai.UserMessage(buildUserPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(maxCompletionTokens),
		Temperature:         openai.Float(0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices returned")
	}

	result, err := parseGeneratedContent(resp.Choices[0].Message.Content, req.TemplateType)
	if err != nil {
		return nil, fmt.Errorf("parsing openai response: %w", err)
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = g.model
	}
	result.Usage = Usage{
		Provider:         ProviderOpenAI,
		Model:            modelID,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          CalculateCost(g.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}
	return result, nil
}

// Describe implements Describer.
func (g *OpenAIGenerator) Describe() (provider, model string) {
	return ProviderOpenAI, g.model
}

// StatusCode returns the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

var (
	_ Generator = (*OpenAIGenerator)(nil)
	_ Describer = (*OpenAIGenerator)(nil)
)
