package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

	// ElevenLabsModelMultilingual is the multilingual v2 model.
	ElevenLabsModelMultilingual = "eleven_multilingual_v2"
	// ElevenLabsModelTurbo is the fast turbo v2.5 model.
	ElevenLabsModelTurbo = "eleven_turbo_v2_5"

	// elevenLabsDefaultVoice is the default voice ID (Rachel).
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"

	elevenLabsDefaultStability       = 0.5
	elevenLabsDefaultSimilarityBoost = 0.75

	elevenLabsFormatMP3 = "mp3_44100_128"
	elevenLabsFormatPCM = "pcm_24000"

	defaultElevenLabsTimeout = 60 * time.Second
)

// ElevenLabs is a cloud TTS backend over the ElevenLabs synthesis API.
type ElevenLabs struct {
	name    string
	baseURL string
	model   string
	voice   string
	cred    credentials.Credential
	client  *http.Client
}

// ElevenLabsOption configures an ElevenLabs provider.
type ElevenLabsOption func(*ElevenLabs)

// WithElevenLabsBaseURL sets a custom base URL.
func WithElevenLabsBaseURL(url string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithElevenLabsModel sets the synthesis model.
func WithElevenLabsModel(model string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if model != "" {
			p.model = model
		}
	}
}

// WithElevenLabsVoice sets the default voice ID.
func WithElevenLabsVoice(voice string) ElevenLabsOption {
	return func(p *ElevenLabs) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithElevenLabsClient sets a custom HTTP client.
func WithElevenLabsClient(client *http.Client) ElevenLabsOption {
	return func(p *ElevenLabs) {
		p.client = client
	}
}

// NewElevenLabs creates an ElevenLabs TTS provider.
func NewElevenLabs(name string, cred credentials.Credential, opts ...ElevenLabsOption) *ElevenLabs {
	if cred == nil {
		cred = &credentials.NoOpCredential{}
	}
	p := &ElevenLabs{
		name:    name,
		baseURL: elevenLabsBaseURL,
		model:   ElevenLabsModelMultilingual,
		voice:   elevenLabsDefaultVoice,
		cred:    cred,
		client:  &http.Client{Timeout: defaultElevenLabsTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newElevenLabsFromSpec(spec Spec) *ElevenLabs {
	return NewElevenLabs(spec.Descriptor.Name, spec.Credential,
		WithElevenLabsBaseURL(spec.BaseURL),
		WithElevenLabsModel(spec.Model),
		WithElevenLabsVoice(spec.Voice),
	)
}

// Name returns the backend identifier.
func (p *ElevenLabs) Name() string {
	return p.name
}

// Capability returns tts.
func (p *ElevenLabs) Capability() types.Capability {
	return types.CapabilityTextToSpeech
}

// Close drops idle HTTP connections.
func (p *ElevenLabs) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Invoke synthesizes the request text and returns the audio payload.
func (p *ElevenLabs) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	if req.Text == "" {
		return types.Result{}, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       elevenLabsDefaultStability,
			SimilarityBoost: elevenLabsDefaultSimilarityBoost,
		},
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	format, outputFormat := p.mapFormat(req.Format)
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", p.baseURL, voice, outputFormat)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	if err := p.cred.Apply(ctx, httpReq); err != nil {
		return types.Result{}, fmt.Errorf("failed to apply credentials: %w", err)
	}

	logger.BackendCall(p.name, string(types.CapabilityTextToSpeech), "voice", voice)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return types.Result{}, NewBackendError(p.name, "", "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return types.Result{}, httpError(p.name, resp.StatusCode, respBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to read audio: %w", err)
	}

	return types.Result{Audio: audio, Format: format}, nil
}

// mapFormat translates a generic format name to the API's format string.
func (p *ElevenLabs) mapFormat(format string) (name, apiFormat string) {
	switch format {
	case "pcm":
		return "pcm", elevenLabsFormatPCM
	default:
		return "mp3", elevenLabsFormatMP3
	}
}

var _ Provider = (*ElevenLabs)(nil)
