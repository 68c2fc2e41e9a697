package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxmux/voxmux/credentials"
	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/types"
)

const (
	cartesiaWSURL      = "wss://api.cartesia.ai/tts/websocket"
	cartesiaAPIVersion = "2024-06-10"

	// CartesiaModelSonic is the low-latency Sonic model.
	CartesiaModelSonic = "sonic-2024-10-01"

	// cartesiaDefaultVoice is the default voice ID (Barbershop Man).
	cartesiaDefaultVoice = "a0e99841-438c-4a64-b679-ae501e7d6091"

	cartesiaSampleRate = 24000
)

// Cartesia is a cloud TTS backend over Cartesia's WebSocket streaming
// API. Invoke assembles the streamed chunks into one audio payload;
// streaming keeps the connection latency low even though the routing
// contract is a single response.
type Cartesia struct {
	name   string
	wsURL  string
	model  string
	voice  string
	apiKey string
}

// CartesiaOption configures a Cartesia provider.
type CartesiaOption func(*Cartesia)

// WithCartesiaWSURL sets a custom WebSocket URL.
func WithCartesiaWSURL(url string) CartesiaOption {
	return func(p *Cartesia) {
		if url != "" {
			p.wsURL = url
		}
	}
}

// WithCartesiaModel sets the synthesis model.
func WithCartesiaModel(model string) CartesiaOption {
	return func(p *Cartesia) {
		if model != "" {
			p.model = model
		}
	}
}

// WithCartesiaVoice sets the default voice ID.
func WithCartesiaVoice(voice string) CartesiaOption {
	return func(p *Cartesia) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// NewCartesia creates a Cartesia TTS provider.
func NewCartesia(name, apiKey string, opts ...CartesiaOption) *Cartesia {
	p := &Cartesia{
		name:   name,
		wsURL:  cartesiaWSURL,
		model:  CartesiaModelSonic,
		voice:  cartesiaDefaultVoice,
		apiKey: apiKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newCartesiaFromSpec(spec Spec) *Cartesia {
	// The WebSocket handshake authenticates via query parameter, so the
	// raw key is needed rather than header injection.
	apiKey := ""
	if akc, ok := spec.Credential.(*credentials.APIKeyCredential); ok {
		apiKey = akc.APIKey()
	}
	return NewCartesia(spec.Descriptor.Name, apiKey,
		WithCartesiaWSURL(spec.BaseURL),
		WithCartesiaModel(spec.Model),
		WithCartesiaVoice(spec.Voice),
	)
}

// Name returns the backend identifier.
func (p *Cartesia) Name() string {
	return p.name
}

// Capability returns tts.
func (p *Cartesia) Capability() types.Capability {
	return types.CapabilityTextToSpeech
}

// Close is a no-op; connections are per-invocation.
func (p *Cartesia) Close() error {
	return nil
}

type cartesiaWSRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoiceConfig  `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
	ContextID    string               `json:"context_id"`
}

type cartesiaVoiceConfig struct {
	Mode string `json:"mode"`
	ID   string `json:"id,omitempty"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type cartesiaWSResponse struct {
	Done  bool   `json:"done"`
	Type  string `json:"type"`
	Data  string `json:"data"` // base64 audio
	Error string `json:"error,omitempty"`
}

// Invoke synthesizes the request text over a streaming connection and
// returns the assembled audio.
func (p *Cartesia) Invoke(ctx context.Context, req types.Request) (types.Result, error) {
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

	wsURL := fmt.Sprintf("%s?api_key=%s&cartesia_version=%s", p.wsURL, p.apiKey, cartesiaAPIVersion)

	logger.BackendCall(p.name, string(types.CapabilityTextToSpeech), "voice", voice)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return types.Result{}, NewBackendError(p.name, "", "websocket connection failed", err, true)
	}
	defer conn.Close()

	wsReq := cartesiaWSRequest{
		ModelID:    model,
		Transcript: req.Text,
		Voice:      cartesiaVoiceConfig{Mode: "id", ID: voice},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: cartesiaSampleRate,
		},
		Language:  req.Language,
		ContextID: fmt.Sprintf("ctx_%d", time.Now().UnixNano()),
	}
	if err := conn.WriteJSON(wsReq); err != nil {
		return types.Result{}, NewBackendError(p.name, "", "failed to send request", err, true)
	}

	var audio bytes.Buffer
	for {
		if err := ctx.Err(); err != nil {
			return types.Result{}, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(deadline)
		}

		var wsResp cartesiaWSResponse
		if err := conn.ReadJSON(&wsResp); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return types.Result{}, NewBackendError(p.name, "", "stream read failed", err, true)
		}

		if wsResp.Error != "" {
			return types.Result{}, NewBackendError(p.name, "", wsResp.Error, nil, false)
		}

		if wsResp.Type == "chunk" && wsResp.Data != "" {
			chunk, err := base64.StdEncoding.DecodeString(wsResp.Data)
			if err != nil {
				return types.Result{}, fmt.Errorf("failed to decode audio chunk: %w", err)
			}
			audio.Write(chunk)
		}

		if wsResp.Done {
			break
		}
	}

	if audio.Len() == 0 {
		return types.Result{}, NewBackendError(p.name, "", "stream produced no audio", nil, false)
	}

	return types.Result{Audio: audio.Bytes(), Format: "pcm"}, nil
}

var _ Provider = (*Cartesia)(nil)
