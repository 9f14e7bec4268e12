package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	APIKey  string
	BaseURL string
	client  *openai.Client
}

func NewOpenAIProvider(apiKey string, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenAIProvider{
		APIKey:  apiKey,
		BaseURL: baseURL,
		client:  openai.NewClientWithConfig(config),
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("client not initialized")
	}

	req, err := buildChatRequest(model, messages, opts)
	if err != nil {
		return "", err
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", &PolicyRejectionError{Message: "completion stopped by content filter"}
	}

	return choice.Message.Content, nil
}

// usesReasoningParams reports whether the model family rejects max_tokens and sampling overrides.
func usesReasoningParams(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "gpt-5")
}

func buildChatRequest(model string, messages []Message, opts Options) (openai.ChatCompletionRequest, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}

	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	if usesReasoningParams(model) {
		req.MaxCompletionTokens = opts.MaxOutputTokens
	} else {
		req.MaxTokens = opts.MaxOutputTokens
		if opts.Temperature != nil {
			req.Temperature = *opts.Temperature
		}
		if opts.TopP != nil {
			req.TopP = *opts.TopP
		}
	}

	if opts.JSONSchema != nil {
		definition, err := json.Marshal(opts.JSONSchema.Definition)
		if err != nil {
			return req, fmt.Errorf("marshal response schema: %w", err)
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   opts.JSONSchema.Name,
				Schema: json.RawMessage(definition),
			},
		}
	}

	return req, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		if code == "content_filter" || code == "content_policy_violation" || isPolicyMessage(apiErr.Message) {
			return &PolicyRejectionError{Message: apiErr.Message, Err: err}
		}
		if isTransientStatus(apiErr.HTTPStatusCode) {
			return &TransientBackendError{StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		return fmt.Errorf("openai chat error: %w", err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 || isTransientStatus(reqErr.HTTPStatusCode) {
			return &TransientBackendError{StatusCode: reqErr.HTTPStatusCode, Err: err}
		}
		return fmt.Errorf("openai chat error: %w", err)
	}

	return classifyTransport(err)
}
