package providers

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const (
	// azureDefaultVoice is the default neural synthesis voice.
	azureDefaultVoice = "en-US-JennyNeural"

	azureDefaultLanguage = "en-US"

	azureFormatMP3 = "audio-24khz-96kbitrate-mono-mp3"
	azureFormatPCM = "raw-24khz-16bit-mono-pcm"
	azureFormatWAV = "riff-24khz-16bit-mono-pcm"

	defaultAzureTimeout = 60 * time.Second
)

// AzureSpeechEndpoint returns the Azure Cognitive Services TTS endpoint
// for a region.
func AzureSpeechEndpoint(region string) string {
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
}

// AzureTTS is a cloud TTS backend over the Azure Cognitive Services
// speech synthesis API. Authentication is an Azure AD token or a
// subscription key, both injected by the credential.
type AzureTTS struct {
	name     string
	endpoint string
	voice    string
	cred     credentials.Credential
	client   *http.Client
}

// AzureTTSOption configures an AzureTTS provider.
type AzureTTSOption func(*AzureTTS)

// WithAzureVoice sets the default synthesis voice.
func WithAzureVoice(voice string) AzureTTSOption {
	return func(p *AzureTTS) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithAzureClient sets a custom HTTP client.
func WithAzureClient(client *http.Client) AzureTTSOption {
	return func(p *AzureTTS) {
		p.client = client
	}
}

// NewAzureTTS creates an Azure speech synthesis provider for the given
// endpoint.
func NewAzureTTS(name, endpoint string, cred credentials.Credential, opts ...AzureTTSOption) (*AzureTTS, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("azure tts backend %q needs an endpoint", name)
	}
	if cred == nil {
		cred = &credentials.NoOpCredential{}
	}
	p := &AzureTTS{
		name:     name,
		endpoint: endpoint,
		voice:    azureDefaultVoice,
		cred:     cred,
		client:   &http.Client{Timeout: defaultAzureTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func newAzureTTSFromSpec(spec Spec) (*AzureTTS, error) {
	endpoint := spec.BaseURL
	if endpoint == "" {
		// An AAD credential carries the endpoint from its cloud config.
		if azure, ok := spec.Credential.(*credentials.AzureCredential); ok {
			endpoint = azure.Endpoint()
		}
	}
	return NewAzureTTS(spec.Descriptor.Name, endpoint, spec.Credential,
		WithAzureVoice(spec.Voice),
	)
}

// Name returns the backend identifier.
func (p *AzureTTS) Name() string {
	return p.name
}

// Capability returns tts.
func (p *AzureTTS) Capability() types.Capability {
	return types.CapabilityTextToSpeech
}

// Close drops idle HTTP connections.
func (p *AzureTTS) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Invoke synthesizes the request text and returns the audio payload.
func (p *AzureTTS) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
	if req.Text == "" {
		return types.Result{}, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	format, outputFormat := p.mapFormat(req.Format)

	body := buildSSML(req.Text, voice, req.Language)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	httpReq.Header.Set("User-Agent", "voxmux")
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
func (p *AzureTTS) mapFormat(format string) (name, apiFormat string) {
	switch format {
	case "pcm":
		return "pcm", azureFormatPCM
	case "wav":
		return "wav", azureFormatWAV
	default:
		return "mp3", azureFormatMP3
	}
}

// buildSSML renders the synthesis request document. The language
// defaults to the voice name's locale prefix.
func buildSSML(text, voice, language string) []byte {
	if language == "" {
		// Neural voice names lead with their locale, e.g. en-US-JennyNeural.
		parts := strings.SplitN(voice, "-", 3)
		if len(parts) == 3 {
			language = parts[0] + "-" + parts[1]
		} else {
			language = azureDefaultLanguage
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<speak version='1.0' xml:lang='%s'><voice name='%s'>`, language, voice)
	_ = xml.EscapeText(&buf, []byte(text))
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes()
}

var _ Provider = (*AzureTTS)(nil)
