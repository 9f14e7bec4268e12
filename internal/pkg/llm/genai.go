package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIProvider talks to the Gemini API through the official SDK.
type GenAIProvider struct {
	client *genai.Client
}

func NewGenAIProvider(ctx context.Context, apiKey string) (*GenAIProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIProvider{client: client}, nil
}

func (p *GenAIProvider) Complete(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("client not initialized")
	}

	contents, config := buildGenAIRequest(messages, opts)

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", classifyGenAIError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &PolicyRejectionError{Message: "prompt blocked: " + string(resp.PromptFeedback.BlockReason)}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", &PolicyRejectionError{Message: "candidate blocked by safety settings"}
	}

	return resp.Text(), nil
}

func buildGenAIRequest(messages []Message, opts Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(messages))
	var system []string

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.Temperature != nil {
		t := *opts.Temperature
		config.Temperature = &t
	}
	if opts.TopP != nil {
		p := *opts.TopP
		config.TopP = &p
	}
	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if opts.JSONSchema != nil {
		config.ResponseMIMEType = "application/json"
	}

	return contents, config
}

func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return classifyTransport(err)
	}

	if isPolicyMessage(apiErr.Message) {
		return &PolicyRejectionError{Message: apiErr.Message, Err: err}
	}
	if isTransientStatus(apiErr.Code) {
		return &TransientBackendError{StatusCode: apiErr.Code, Err: err}
	}
	return fmt.Errorf("genai generate error: %w", err)
}
