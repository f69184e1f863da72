package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/litmuschaos/chaos-advisor/pkg/types"
)

// Provider names accepted by NewProvider
const (
	OpenAI = "openai"
	Mock   = "mock"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 1500
	systemPrompt       = "You are an expert SRE analyzing chaos engineering experiments. Provide clear, actionable insights."
)

// Provider generates text for a prompt
type Provider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// NewProvider returns the provider selected by the configuration
func NewProvider(details *types.AdvisorDetails) (Provider, error) {
	switch strings.ToLower(details.LLMProvider) {
	case OpenAI:
		if details.OpenAIAPIKey == "" {
			return nil, errors.Errorf("the openai provider needs OPENAI_API_KEY")
		}
		return NewOpenAIProvider(openai.DefaultConfig(details.OpenAIAPIKey), details.OpenAIModel), nil
	case Mock, "":
		return MockProvider{}, nil
	default:
		return nil, errors.Errorf("llm provider '%s' is not supported", details.LLMProvider)
	}
}

// OpenAIProvider calls the OpenAI chat completion API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider returns a provider for the given client config, an empty model falls back to gpt-4o-mini
func NewOpenAIProvider(config openai.ClientConfig, model string) *OpenAIProvider {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(config), model: model}
}

// GenerateText implements Provider
func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "chat completion with %v failed", p.model)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Errorf("chat completion with %v returned no choices", p.model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MockProvider answers every prompt with a fixed response, no network calls are made
type MockProvider struct {
	Response string
}

const mockInsights = `{
  "summary": "Chaos experiment completed successfully.",
  "findings": "No significant issues detected during the experiment.",
  "timeline": "Experiment ran for the specified duration without interruption.",
  "impact_analysis": "Minimal impact observed on system performance.",
  "recommendations": "Consider running more intensive experiments to test system resilience."
}`

// GenerateText implements Provider
func (m MockProvider) GenerateText(context.Context, string) (string, error) {
	if m.Response == "" {
		return mockInsights, nil
	}
	return m.Response, nil
}
