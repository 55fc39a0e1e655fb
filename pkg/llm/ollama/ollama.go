package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/pharmakg/sentinel/pkg/llm"
)

// OllamaProvider implements llm.Provider against a locally-hosted Ollama
// server. Concurrent requests are capped to avoid overloading the host.
type OllamaProvider struct {
	client     *api.Client
	embedModel string
	reqLock    *semaphore.Weighted
}

// Params configures an OllamaProvider.
type Params struct {
	BaseURL               string
	APIKey                string
	EmbedModel            string
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// New creates an Ollama-backed provider.
func New(params Params) (*OllamaProvider, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.APIKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{"Authorization": "Bearer " + params.APIKey},
				rt:      http.DefaultTransport,
			},
		}
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}

	return &OllamaProvider{
		client:     api.NewClient(u, httpClient),
		embedModel: params.EmbedModel,
		reqLock:    semaphore.NewWeighted(maxReq),
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if err := p.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.reqLock.Release(1)

	msgs := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}
	if req.Format != nil {
		formatBytes, err := json.Marshal(req.Format)
		if err != nil {
			return "", err
		}
		chatReq.Format = json.RawMessage(formatBytes)
	}

	var content string
	if err := p.client.Chat(ctx, chatReq, func(cr api.ChatResponse) error {
		content += cr.Message.Content
		return nil
	}); err != nil {
		return "", err
	}
	return content, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, model string, input string) ([]float32, error) {
	if err := p.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.reqLock.Release(1)

	if model == "" {
		model = p.embedModel
	}
	res, err := p.client.Embed(ctx, &api.EmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res.Embeddings))
	}
	return res.Embeddings[0], nil
}

var _ llm.Provider = (*OllamaProvider)(nil)
