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
	OpenAIName         = "openai"
	openAIBaseURL      = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-4o"
)

var openAIVisionModels = []string{"gpt-4o", "gpt-4.1", "gpt-4-turbo", "gpt-5", "o1", "o3", "o4"}

// OpenAIAdapter talks to the chat completions API
type OpenAIAdapter struct {
	chatBase
}

func NewOpenAIAdapter(conf ChatConf, opts ...Option) *OpenAIAdapter {
	if conf.BaseURL == "" {
		conf.BaseURL = openAIBaseURL
	}
	if conf.Model == "" {
		conf.Model = openAIDefaultModel
	}
	if conf.VisionModels == nil {
		conf.VisionModels = openAIVisionModels
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")
	return &OpenAIAdapter{chatBase: newChatBase(OpenAIName, conf, NewTiktokenCounter(), opts)}
}

// 请求结构（OpenAI 兼容）
type openAIChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// 响应结构
type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

func (p *OpenAIAdapter) Respond(ctx context.Context, req *TurnRequest) (*model.Message, error) {
	modelName, h, estimate, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(openAIChatRequest{
		Model:    modelName,
		Messages: openAIMessages(h),
	})
	if err != nil {
		return nil, errInvalid(p.name, err.Error())
	}

	var resp openAIChatResponse
	err = p.call(ctx, func(ctx context.Context) error {
		return p.post(ctx, "/chat/completions", body, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errMalformed(p.name, fmt.Errorf("no choices in response"))
	}

	usage := &model.Usage{PromptTokens: estimate, Estimated: true}
	if resp.Usage != nil {
		usage = &model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	return p.reply(req.Agent, strings.TrimSpace(resp.Choices[0].Message.Content), usage)
}

func (p *OpenAIAdapter) post(ctx context.Context, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.conf.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errInvalid(p.name, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.conf.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return transportError(p.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(p.name, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errMalformed(p.name, err)
	}
	return nil
}

// openAIMessages converts history entries to chat messages. Plain text
// stays a string, entries with an image become multi-part content.
func openAIMessages(h model.ConversationHistory) []openAIMessage {
	messages := make([]openAIMessage, 0, len(h))
	for _, e := range h {
		text := e.Text()
		if e.Message == nil || e.Message.Image == nil {
			messages = append(messages, openAIMessage{Role: e.Role, Content: text})
			continue
		}
		parts := make([]openAIContentPart, 0, 2)
		if text != "" {
			parts = append(parts, openAIContentPart{Type: "text", Text: text})
		}
		parts = append(parts, openAIContentPart{
			Type:     "image_url",
			ImageURL: &openAIImageURL{URL: e.Message.Image.URL, Detail: "high"},
		})
		messages = append(messages, openAIMessage{Role: e.Role, Content: parts})
	}
	return messages
}
