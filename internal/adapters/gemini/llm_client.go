package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client    *genai.Client
	modelName string
	maxTokens int
	topP      float32
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	topP float32,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		maxTokens: maxTokens,
		topP:      topP,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Complete generates content for the prompt. Each call configures its own model handle.
func (c *GeminiClient) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(req.Temperature)
	model.SetTopP(c.topP)
	if c.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.maxTokens))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	started := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, mapError(err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, core.ErrEmptyResponse
	}

	completion := &core.Completion{Content: text, Model: c.modelName}
	if resp.UsageMetadata != nil {
		completion.Usage = core.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	c.logger.Debug("Gemini completion finished",
		zap.String("model", c.modelName),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("completion_tokens", completion.Usage.CompletionTokens))
	return completion, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return &core.RateLimitError{RetryAfter: 30 * time.Second, Err: err}
		}
		return &core.ProviderError{Provider: "gemini", StatusCode: gerr.Code, Err: err}
	}

	switch status.Code(err) {
	case codes.ResourceExhausted:
		return &core.RateLimitError{RetryAfter: 30 * time.Second, Err: err}
	case codes.Unauthenticated:
		return &core.ProviderError{Provider: "gemini", StatusCode: http.StatusUnauthorized, Err: err}
	case codes.PermissionDenied:
		return &core.ProviderError{Provider: "gemini", StatusCode: http.StatusForbidden, Err: err}
	case codes.Unavailable:
		return &core.ProviderError{Provider: "gemini", StatusCode: http.StatusServiceUnavailable, Err: err}
	}
	return &core.ProviderError{Provider: "gemini", Err: fmt.Errorf("failed to generate content: %w", err)}
}
