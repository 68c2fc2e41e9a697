package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaChatPath       = "/v1/chat/completions"

	ollamaDefaultModel = "llama3.2"

	defaultOllamaTimeout = 120 * time.Second
)

// Ollama is a local chat backend talking to an Ollama daemon through
// its OpenAI-compatible endpoint. No authentication is involved.
type Ollama struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures an Ollama provider.
type OllamaOption func(*Ollama)

// WithOllamaBaseURL sets the daemon address.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(p *Ollama) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithOllamaModel sets the model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *Ollama) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOllamaClient sets a custom HTTP client.
func WithOllamaClient(client *http.Client) OllamaOption {
	return func(p *Ollama) {
		p.client = client
	}
}

// NewOllama creates an Ollama chat provider.
func NewOllama(name string, opts ...OllamaOption) *Ollama {
	p := &Ollama{
		name:    name,
		baseURL: ollamaDefaultBaseURL,
		model:   ollamaDefaultModel,
		client:  &http.Client{Timeout: defaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newOllamaFromSpec(spec Spec) *Ollama {
	return NewOllama(spec.Descriptor.Name,
		WithOllamaBaseURL(spec.BaseURL),
		WithOllamaModel(spec.Model),
	)
}

// Name returns the backend identifier.
func (p *Ollama) Name() string {
	return p.name
}

// Capability returns chat.
func (p *Ollama) Capability() types.Capability {
	return types.CapabilityChat
}

// Close drops idle HTTP connections.
func (p *Ollama) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// Invoke sends the conversation to the local model and returns its reply.
func (p *Ollama) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	if req.Text == "" && len(req.Messages) == 0 {
		return types.Result{}, ErrEmptyText
	}

	messages := make([]openAIChatMessage, 0, len(req.Messages)+1)
	for _, msg := range req.Messages {
		messages = append(messages, openAIChatMessage{Role: msg.Role, Content: msg.Content})
	}
	if req.Text != "" && (len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Content != req.Text) {
		messages = append(messages, openAIChatMessage{Role: types.RoleUser, Content: req.Text})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ollamaChatPath, bytes.NewReader(body))
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.BackendCall(p.name, string(types.CapabilityChat), "model", model)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return types.Result{}, NewBackendError(p.name, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Result{}, httpError(p.name, resp.StatusCode, respBody)
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return types.Result{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return types.Result{}, NewBackendError(p.name, "", "no choices in response", nil, false)
	}

	return types.Result{Text: chatResp.Choices[0].Message.Content}, nil
}

var _ Provider = (*Ollama)(nil)
