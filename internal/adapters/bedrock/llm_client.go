package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient is an implementation of the LLMClient interface using Amazon Bedrock
type BedrockClient struct {
	client    InvokeModelAPI
	modelID   string
	maxTokens int
	topP      float32
	logger    *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client InvokeModelAPI,
	modelID string,
	maxTokens int,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:    client,
		modelID:   modelID,
		maxTokens: maxTokens,
		topP:      topP,
		logger:    logger,
	}
}

// Complete invokes the configured model with the payload format of its family
func (c *BedrockClient) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	family := modelFamily(c.modelID)

	payload, err := buildPayload(family, req, c.maxTokens, c.topP)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	started := time.Now()
	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, mapError(err)
	}

	completion, err := parseResponse(family, resp.Body)
	if err != nil {
		return nil, err
	}
	completion.Model = c.modelID

	c.logger.Debug("Bedrock completion finished",
		zap.String("model", c.modelID),
		zap.String("family", string(family)),
		zap.Duration("elapsed", time.Since(started)))
	return completion, nil
}

type family string

const (
	familyAnthropic family = "anthropic"
	familyTitan     family = "titan"
	familyLlama     family = "llama"
	familyGeneric   family = "generic"
)

func modelFamily(modelID string) family {
	switch {
	case strings.HasPrefix(modelID, "anthropic.claude"):
		return familyAnthropic
	case strings.HasPrefix(modelID, "amazon.titan"):
		return familyTitan
	case strings.HasPrefix(modelID, "meta.llama"):
		return familyLlama
	default:
		return familyGeneric
	}
}

func buildPayload(f family, req core.CompletionRequest, maxTokens int, topP float32) ([]byte, error) {
	switch f {
	case familyAnthropic:
		prompt := "\n\nHuman: "
		if req.System != "" {
			prompt = req.System + prompt
		}
		return json.Marshal(map[string]interface{}{
			"prompt":               prompt + req.Prompt + "\n\nAssistant:",
			"max_tokens_to_sample": maxTokens,
			"temperature":          req.Temperature,
			"top_p":                topP,
		})
	case familyTitan:
		return json.Marshal(map[string]interface{}{
			"inputText": joinPrompt(req),
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": maxTokens,
				"temperature":   req.Temperature,
				"topP":          topP,
			},
		})
	case familyLlama:
		prompt := "<s>[INST] "
		if req.System != "" {
			prompt += "<<SYS>>\n" + req.System + "\n<</SYS>>\n\n"
		}
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt + req.Prompt + " [/INST]",
			"max_gen_len": maxTokens,
			"temperature": req.Temperature,
			"top_p":       topP,
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      joinPrompt(req),
			"max_tokens":  maxTokens,
			"temperature": req.Temperature,
			"top_p":       topP,
		})
	}
}

func joinPrompt(req core.CompletionRequest) string {
	if req.System == "" {
		return req.Prompt
	}
	return req.System + "\n\n" + req.Prompt
}

func parseResponse(f family, body []byte) (*core.Completion, error) {
	switch f {
	case familyAnthropic:
		var resp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: claude response: %v", core.ErrInvalidResponseFormat, err)
		}
		return &core.Completion{Content: resp.Completion}, nil

	case familyTitan:
		var resp struct {
			InputTextTokenCount int `json:"inputTextTokenCount"`
			Results             []struct {
				TokenCount int    `json:"tokenCount"`
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: titan response: %v", core.ErrInvalidResponseFormat, err)
		}
		if len(resp.Results) == 0 {
			return nil, core.ErrEmptyResponse
		}
		return &core.Completion{
			Content: resp.Results[0].OutputText,
			Usage: core.Usage{
				PromptTokens:     resp.InputTextTokenCount,
				CompletionTokens: resp.Results[0].TokenCount,
			},
		}, nil

	case familyLlama:
		var resp struct {
			Generation           string `json:"generation"`
			PromptTokenCount     int    `json:"prompt_token_count"`
			GenerationTokenCount int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: llama response: %v", core.ErrInvalidResponseFormat, err)
		}
		return &core.Completion{
			Content: resp.Generation,
			Usage: core.Usage{
				PromptTokens:     resp.PromptTokenCount,
				CompletionTokens: resp.GenerationTokenCount,
			},
		}, nil

	default:
		var resp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return &core.Completion{Content: string(body)}, nil
		}
		for _, s := range []string{resp.Output, resp.Text, resp.Response} {
			if s != "" {
				return &core.Completion{Content: s}, nil
			}
		}
		return &core.Completion{Content: string(body)}, nil
	}
}

func mapError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &core.RateLimitError{RetryAfter: 10 * time.Second, Err: err}
	}
	var quota *types.ServiceQuotaExceededException
	if errors.As(err, &quota) {
		return &core.RateLimitError{RetryAfter: time.Minute, Err: err}
	}
	return &core.ProviderError{Provider: "bedrock", Err: fmt.Errorf("failed to invoke model: %w", err)}
}
