package provider

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"google.golang.org/genai"
)

const (
	GeminiName         = "gemini"
	geminiDefaultModel = "gemini-1.5-pro"
)

// GeminiAdapter calls generateContent through the genai SDK
type GeminiAdapter struct {
	chatBase

	once   sync.Once
	sdk    *genai.Client
	sdkErr error
}

func NewGeminiAdapter(conf ChatConf, opts ...Option) *GeminiAdapter {
	if conf.Model == "" {
		conf.Model = geminiDefaultModel
	}
	return &GeminiAdapter{chatBase: newChatBase(GeminiName, conf, ApproxCounter{}, opts)}
}

func (p *GeminiAdapter) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     p.conf.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: p.client,
		}
		if p.conf.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.conf.BaseURL}
		}
		p.sdk, p.sdkErr = genai.NewClient(ctx, cc)
	})
	return p.sdk, p.sdkErr
}

func (p *GeminiAdapter) Respond(ctx context.Context, req *TurnRequest) (*model.Message, error) {
	modelName, h, estimate, err := p.prepare(req)
	if err != nil {
		return nil, err
	}
	client, err := p.genaiClient(context.WithoutCancel(ctx))
	if err != nil {
		return nil, errCredential(p.name, err.Error())
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.conf.MaxTokens),
	}
	if system := h.System(); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := geminiContents(h.Turns())

	var res *genai.GenerateContentResponse
	err = p.call(ctx, func(ctx context.Context) error {
		var callErr error
		res, callErr = client.Models.GenerateContent(ctx, modelName, contents, cfg)
		if callErr != nil {
			return geminiError(callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Candidates) == 0 {
		return nil, errMalformed(p.name, errors.New("no candidates in response"))
	}

	usage := &model.Usage{PromptTokens: estimate, Estimated: true}
	if res.UsageMetadata != nil && res.UsageMetadata.PromptTokenCount > 0 {
		usage = &model.Usage{
			PromptTokens:     int(res.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(res.UsageMetadata.CandidatesTokenCount),
		}
	}
	return p.reply(req.Agent, strings.TrimSpace(res.Text()), usage)
}

// geminiContents maps turns onto user/model contents. Consecutive entries
// with the same role are merged and the first content is always a user one.
func geminiContents(turns model.ConversationHistory) []*genai.Content {
	var out []*genai.Content
	for _, e := range turns {
		role := genai.Role(genai.RoleUser)
		if e.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		parts := geminiParts(e)
		if n := len(out); n > 0 && out[n-1].Role == string(role) {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			continue
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	if len(out) == 0 || out[0].Role != genai.RoleUser {
		cue := genai.NewContentFromText(openingCue, genai.RoleUser)
		out = append([]*genai.Content{cue}, out...)
	}
	return out
}

func geminiParts(e model.Entry) []*genai.Part {
	var parts []*genai.Part
	if text := e.Text(); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	if e.Message == nil || e.Message.Image == nil {
		return parts
	}
	if typ, data, err := e.Message.Image.Decode(); err == nil {
		return append(parts, genai.NewPartFromBytes(data, typ))
	}
	return append(parts, genai.NewPartFromURI(e.Message.Image.URL, imageMIME(e.Message.Image.URL)))
}

// imageMIME guesses an image url's type from its extension, defaulting to
// jpeg when the path says nothing useful.
func imageMIME(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "image/jpeg"
	}
	typ, _, _ := strings.Cut(mime.TypeByExtension(strings.ToLower(path.Ext(u.Path))), ";")
	if !strings.HasPrefix(typ, "image/") {
		return "image/jpeg"
	}
	return typ
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Code
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return &Error{Provider: GeminiName, Kind: kindForStatus(status), Status: status, Message: apiErr.Message, Err: err}
	}
	return transportError(GeminiName, err)
}
