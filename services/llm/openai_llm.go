package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIOptions configures NewOpenAIClient. BaseURL is for proxies and tests.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		slog.Error("OPENAI_API_KEY not configured")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
		slog.Warn("OPENAI_MODEL not set, defaulting", "model", opts.Model)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	slog.Info("Initializing OpenAI client", "model", opts.Model)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}, nil
}

// Model returns the configured model name.
func (o *OpenAIClient) Model() string { return o.model }

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	req.Temperature = openAITemperature(params.Temperature)
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.create(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Complete sends a system + user exchange and reports token usage.
//
// # Description
//
// With JSONMode set the request carries response_format=json_object, which
// the API only accepts when the prompt mentions JSON. Provider errors keep
// the message returned by the API.
func (o *OpenAIClient) Complete(ctx context.Context, cr CompletionRequest) (Completion, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	for _, m := range messagesFor(cr) {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   cr.MaxTokens,
		Temperature: openAITemperature(cr.Temperature),
	}
	if cr.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return o.create(ctx, req)
}

func (o *OpenAIClient) create(ctx context.Context, req openai.ChatCompletionRequest) (Completion, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	observeLatency(o.model, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			slog.Error("OpenAI API returned an error", "status_code", apiErr.HTTPStatusCode, "message", apiErr.Message)
			return Completion{}, fmt.Errorf("OpenAI API error: %s: %w", apiErr.Message, err)
		}
		slog.Error("OpenAI API call failed", "error", err)
		return Completion{}, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return Completion{}, ErrEmptyResponse
	}
	span.SetAttributes(attribute.Int("llm.tokens_used", resp.Usage.TotalTokens))
	observeTokens(o.model, resp.Usage.TotalTokens)
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason,
		"tokens_used", resp.Usage.TotalTokens)
	return Completion{
		Content:    resp.Choices[0].Message.Content,
		Model:      o.model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// openAITemperature maps a requested temperature onto the request field.
// The field is omitted when zero, so an explicit 0 is sent as the smallest
// positive float32 instead.
func openAITemperature(t *float32) float32 {
	if t == nil {
		return 0
	}
	if *t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return *t
}
