package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"

	openAIChatEndpoint       = "/chat/completions"
	openAITranscribeEndpoint = "/audio/transcriptions"
	openAISpeechEndpoint     = "/audio/speech"

	// ModelWhisper1 is the Whisper transcription model.
	ModelWhisper1 = "whisper-1"
	// ModelTTS1 is the speed-optimized synthesis model.
	ModelTTS1 = "tts-1"
	// ModelGPT4oMini is the default chat model.
	ModelGPT4oMini = "gpt-4o-mini"

	// VoiceAlloy is the default synthesis voice.
	VoiceAlloy = "alloy"

	defaultOpenAITimeout = 60 * time.Second
)

// OpenAI is a cloud backend over the OpenAI API. A single instance
// binds exactly one capability: chat completions, Whisper
// transcription, or speech synthesis.
type OpenAI struct {
	name       string
	capability types.Capability
	baseURL    string
	model      string
	voice      string
	cred       credentials.Credential
	client     *http.Client
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithOpenAIBaseURL sets a custom base URL (for testing or proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAI) {
		p.baseURL = url
	}
}

// WithOpenAIModel sets the model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAI) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOpenAIVoice sets the default synthesis voice.
func WithOpenAIVoice(voice string) OpenAIOption {
	return func(p *OpenAI) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(p *OpenAI) {
		p.client = client
	}
}

// NewOpenAI creates an OpenAI provider for one capability.
func NewOpenAI(name string, capability types.Capability, cred credentials.Credential, opts ...OpenAIOption) (*OpenAI, error) {
	if !capability.Valid() {
		return nil, fmt.Errorf("openai: invalid capability %q", capability)
	}
	if cred == nil {
		cred = &credentials.NoOpCredential{}
	}

	p := &OpenAI{
		name:       name,
		capability: capability,
		baseURL:    openAIBaseURL,
		cred:       cred,
		client:     &http.Client{Timeout: defaultOpenAITimeout},
	}
	switch capability {
	case types.CapabilitySpeechToText:
		p.model = ModelWhisper1
	case types.CapabilityTextToSpeech:
		p.model = ModelTTS1
		p.voice = VoiceAlloy
	case types.CapabilityChat:
		p.model = ModelGPT4oMini
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func newOpenAIFromSpec(spec Spec) (*OpenAI, error) {
	opts := []OpenAIOption{
		WithOpenAIModel(spec.Model),
		WithOpenAIVoice(spec.Voice),
	}
	if spec.BaseURL != "" {
		opts = append(opts, WithOpenAIBaseURL(spec.BaseURL))
	}
	return NewOpenAI(spec.Descriptor.Name, spec.Descriptor.Capability, spec.Credential, opts...)
}

// Name returns the backend identifier.
func (p *OpenAI) Name() string {
	return p.name
}

// Capability returns the bound capability.
func (p *OpenAI) Capability() types.Capability {
	return p.capability
}

// Close drops idle HTTP connections.
func (p *OpenAI) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Invoke dispatches to the API endpoint matching the bound capability.
func (p *OpenAI) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	switch p.capability {
	case types.CapabilitySpeechToText:
		return p.transcribe(ctx, req)
	case types.CapabilityTextToSpeech:
		return p.synthesize(ctx, req)
	default:
		return p.chat(ctx, req)
	}
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (p *OpenAI) chat(ctx context.Context, req types.Request) (types.Result, error) {
	if req.Text == "" && len(req.Messages) == 0 {
		return types.Result{}, ErrEmptyText
	}

	messages := make([]openAIChatMessage, 0, len(req.Messages)+1)
	for _, msg := range req.Messages {
		messages = append(messages, openAIChatMessage{Role: msg.Role, Content: msg.Content})
	}
	// The current turn is appended when not already the tail of the history.
	if req.Text != "" && (len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Content != req.Text) {
		messages = append(messages, openAIChatMessage{Role: types.RoleUser, Content: req.Text})
	}

	body, err := json.Marshal(openAIChatRequest{
		Model:    p.modelFor(req),
		Messages: messages,
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := p.post(ctx, openAIChatEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return types.Result{}, err
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return types.Result{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return types.Result{}, NewBackendError(p.name, chatResp.Error.Code, chatResp.Error.Message, nil, false)
	}
	if len(chatResp.Choices) == 0 {
		return types.Result{}, NewBackendError(p.name, "", "no choices in response", nil, false)
	}

	return types.Result{Text: chatResp.Choices[0].Message.Content}, nil
}

func (p *OpenAI) transcribe(ctx context.Context, req types.Request) (types.Result, error) {
	if len(req.Audio) == 0 {
		return types.Result{}, ErrEmptyAudio
	}

	format := req.Format
	if format == "" {
		format = "pcm"
	}
	audioData := req.Audio
	filename := "audio." + format
	if format == "pcm" {
		audioData = WrapPCMAsWAV(req.Audio, req.SampleRate, 0, 0)
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return types.Result{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model", p.modelFor(req)); err != nil {
		return types.Result{}, fmt.Errorf("failed to write model field: %w", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return types.Result{}, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return types.Result{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	respBody, err := p.post(ctx, openAITranscribeEndpoint, writer.FormDataContentType(), &buf)
	if err != nil {
		return types.Result{}, err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return types.Result{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return types.Result{Text: result.Text}, nil
}

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func (p *OpenAI) synthesize(ctx context.Context, req types.Request) (types.Result, error) {
	if req.Text == "" {
		return types.Result{}, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	format := req.Format
	if format == "" {
		format = "mp3"
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          p.modelFor(req),
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: format,
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	audio, err := p.post(ctx, openAISpeechEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return types.Result{}, err
	}

	return types.Result{Audio: audio, Format: format}, nil
}

func (p *OpenAI) modelFor(req types.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

// post issues an authenticated POST and returns the response body.
func (p *OpenAI) post(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if err := p.cred.Apply(ctx, httpReq); err != nil {
		return nil, fmt.Errorf("failed to apply credentials: %w", err)
	}

	logger.BackendCall(p.name, string(p.capability), "endpoint", endpoint)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, NewBackendError(p.name, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(p.name, resp.StatusCode, respBody)
	}
	return respBody, nil
}

var _ Provider = (*OpenAI)(nil)
