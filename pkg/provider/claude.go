package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

const (
	ClaudeName         = "claude"
	claudeBaseURL      = "https://api.anthropic.com"
	claudeDefaultModel = "claude-3-opus-20240229"
	claudeAPIVersion   = "2023-06-01"
)

// openingCue stands in for the first user turn when an agent speaks before
// anyone else. Claude and Gemini both reject conversations that open with
// the model.
const openingCue = "[The conversation begins.]"

// ClaudeAdapter talks to the Anthropic messages API
type ClaudeAdapter struct {
	chatBase
}

func NewClaudeAdapter(conf ChatConf, opts ...Option) *ClaudeAdapter {
	if conf.BaseURL == "" {
		conf.BaseURL = claudeBaseURL
	}
	if conf.Model == "" {
		conf.Model = claudeDefaultModel
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	return &ClaudeAdapter{chatBase: newChatBase(ClaudeName, conf, ApproxCounter{}, opts)}
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeBlock struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"` // base64|url
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type claudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func (p *ClaudeAdapter) Respond(ctx context.Context, req *TurnRequest) (*model.Message, error) {
	modelName, h, estimate, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(claudeRequest{
		Model:     modelName,
		MaxTokens: p.conf.MaxTokens,
		System:    h.System(),
		Messages:  claudeMessages(h.Turns()),
	})
	if err != nil {
		return nil, errInvalid(p.name, err.Error())
	}

	var resp claudeResponse
	err = p.call(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.conf.BaseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return errInvalid(p.name, err.Error())
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-Key", p.conf.APIKey)
		httpReq.Header.Set("anthropic-version", claudeAPIVersion)

		httpResp, err := p.client.Do(httpReq)
		if err != nil {
			return transportError(p.name, err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return transportError(p.name, err)
		}
		if httpResp.StatusCode != http.StatusOK {
			return statusError(p.name, httpResp.StatusCode, data)
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return errMalformed(p.name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if len(resp.Content) == 0 {
		return nil, errMalformed(p.name, fmt.Errorf("no content blocks in response"))
	}

	usage := &model.Usage{PromptTokens: estimate, Estimated: true}
	if resp.Usage != nil {
		usage = &model.Usage{PromptTokens: resp.Usage.InputTokens, CompletionTokens: resp.Usage.OutputTokens}
	}
	return p.reply(req.Agent, strings.TrimSpace(text.String()), usage)
}

// claudeMessages converts turns to the strictly alternating form the API
// requires: consecutive entries with the same role are merged and the
// conversation always opens with a user turn.
func claudeMessages(turns model.ConversationHistory) []claudeMessage {
	var out []claudeMessage
	for _, e := range turns {
		blocks := claudeBlocks(e)
		if n := len(out); n > 0 && out[n-1].Role == e.Role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, claudeMessage{Role: e.Role, Content: blocks})
	}
	if len(out) == 0 || out[0].Role != model.RoleUser {
		cue := claudeMessage{Role: model.RoleUser, Content: []claudeBlock{{Type: "text", Text: openingCue}}}
		out = append([]claudeMessage{cue}, out...)
	}
	return out
}

func claudeBlocks(e model.Entry) []claudeBlock {
	var blocks []claudeBlock
	if text := e.Text(); text != "" {
		blocks = append(blocks, claudeBlock{Type: "text", Text: text})
	}
	if e.Message == nil || e.Message.Image == nil {
		return blocks
	}
	img := e.Message.Image
	if img.IsDataURL() {
		mime, _, ok := strings.Cut(strings.TrimPrefix(img.URL, "data:"), ";")
		_, payload, _ := strings.Cut(img.URL, ",")
		if ok {
			blocks = append(blocks, claudeBlock{Type: "image", Source: &claudeSource{Type: "base64", MediaType: mime, Data: payload}})
		}
		return blocks
	}
	return append(blocks, claudeBlock{Type: "image", Source: &claudeSource{Type: "url", URL: img.URL}})
}
