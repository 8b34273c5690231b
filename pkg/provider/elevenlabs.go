package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	ElevenLabsName         = "elevenlabs"
	elevenLabsWSURL        = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsFormat       = "mp3_44100_128"
)

type ElevenLabsTTSProvider struct {
	apiKey string
	wsURL  string
	model  string
	dialer *websocket.Dialer
}

// ElevenLabs 流式合成消息
type elevenLabsInput struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

type elevenLabsOutput struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewElevenLabsTTSProvider(apiKey, wsURL, model string) *ElevenLabsTTSProvider {
	if wsURL == "" {
		wsURL = elevenLabsWSURL
	}
	if model == "" {
		model = elevenLabsDefaultModel
	}
	return &ElevenLabsTTSProvider{
		apiKey: strings.TrimSpace(apiKey),
		wsURL:  wsURL,
		model:  model,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (p *ElevenLabsTTSProvider) Name() string {
	return ElevenLabsName
}

// SynthesizeStream 基于 WebSocket 的流式合成，音频块按到达顺序写入返回的通道
func (p *ElevenLabsTTSProvider) SynthesizeStream(ctx context.Context, text string, opts *TTSOptions) (<-chan *AudioChunk, error) {
	if p.apiKey == "" {
		return nil, errCredential(ElevenLabsName, "api key not configured")
	}
	if opts == nil || opts.Voice == "" {
		return nil, errInvalid(ElevenLabsName, "voice id is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errInvalid(ElevenLabsName, "empty text")
	}

	wsURL, err := p.streamURL(opts.Voice)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("xi-api-key", p.apiKey)
	conn, _, err := p.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, transportError(ElevenLabsName, err)
	}

	// 开始帧必须是单个空格，随后发送文本并 flush
	frames := []elevenLabsInput{{Text: " "}, {Text: text + " "}, {Text: "", Flush: true}}
	for _, f := range frames {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(f); err != nil {
			conn.Close()
			return nil, transportError(ElevenLabsName, err)
		}
	}

	resultChan := make(chan *AudioChunk, 10)
	go func() {
		defer close(resultChan)
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		seqNum := 0
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					logx.Errorf("elevenlabs read failed: %v", err)
				}
				return
			}

			var out elevenLabsOutput
			if err := json.Unmarshal(message, &out); err != nil {
				logx.Errorf("Failed to unmarshal TTS response: %v", err)
				continue
			}
			if out.Error != "" {
				logx.Errorf("elevenlabs error: %s %s", out.Error, out.Message)
				return
			}

			var audio []byte
			if out.Audio != "" {
				audio, err = base64.StdEncoding.DecodeString(out.Audio)
				if err != nil {
					logx.Errorf("Failed to decode audio data: %v", err)
					continue
				}
			}
			if len(audio) > 0 || out.IsFinal {
				select {
				case resultChan <- &AudioChunk{Data: audio, Format: "mp3", SeqNum: seqNum, IsFinal: out.IsFinal}:
					seqNum++
				case <-ctx.Done():
					return
				}
			}
			if out.IsFinal {
				return
			}
		}
	}()

	return resultChan, nil
}

func (p *ElevenLabsTTSProvider) streamURL(voice string) (string, error) {
	raw := strings.ReplaceAll(p.wsURL, "{voice_id}", url.PathEscape(voice))
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", p.model)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", elevenLabsFormat)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
