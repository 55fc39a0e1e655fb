package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/pharmakg/sentinel/pkg/llm"
)

// OpenAIProvider implements llm.Provider against any OpenAI-compatible chat
// endpoint (OpenAI, Groq, llama.cpp server, vLLM).
type OpenAIProvider struct {
	client     *openai.Client
	embedModel string
}

// Params configures an OpenAIProvider. BaseURL is optional; empty means the
// default OpenAI endpoint.
type Params struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
}

// New creates an OpenAI-backed provider.
func New(params Params) *OpenAIProvider {
	options := []option.RequestOption{}
	if params.APIKey != "" {
		options = append(options, option.WithAPIKey(params.APIKey))
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)
	return &OpenAIProvider{client: &client, embedModel: params.EmbedModel}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Format != nil {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: req.Format,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	response, err := p.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return "", fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return message, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, model string, input string) ([]float32, error) {
	if model == "" {
		model = p.embedModel
	}
	res, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{input}},
	})
	if err != nil {
		return nil, err
	}
	if len(res.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res.Data))
	}
	out := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

var _ llm.Provider = (*OpenAIProvider)(nil)
