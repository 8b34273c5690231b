package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	WhisperName         = "whisper"
	whisperDefaultModel = "whisper-1"
)

// WhisperASRProvider transcribes a finished recording with the OpenAI
// audio transcription endpoint.
type WhisperASRProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewWhisperASRProvider(apiKey, baseURL, model string) *WhisperASRProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	if model == "" {
		model = whisperDefaultModel
	}
	return &WhisperASRProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *WhisperASRProvider) Name() string {
	return WhisperName
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Recognize 一次性识别完整音频
func (p *WhisperASRProvider) Recognize(ctx context.Context, audio []byte, opts *ASROptions) (*Transcript, error) {
	if p.apiKey == "" {
		return nil, errCredential(WhisperName, "api key not configured")
	}
	if len(audio) == 0 {
		return nil, errInvalid(WhisperName, "empty audio")
	}

	format := "wav"
	if opts != nil && opts.Format != "" {
		format = opts.Format
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "speech."+format)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	_ = w.WriteField("model", p.model)
	_ = w.WriteField("response_format", "json")
	if opts != nil && opts.Language != "" {
		_ = w.WriteField("language", opts.Language)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, transportError(WhisperName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(WhisperName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(WhisperName, resp.StatusCode, data)
	}

	var out whisperResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errMalformed(WhisperName, err)
	}
	return &Transcript{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Duration: out.Duration,
	}, nil
}
