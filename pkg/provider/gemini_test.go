package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"google.golang.org/genai"
)

func TestGeminiContents(t *testing.T) {
	img := msg(model.Human, "Human", "what is this")
	img.Image = &model.ImageRef{URL: model.DataURL("image/png", []byte{1, 2, 3})}
	turns := historyFor("p", msg(1, "Ada", "opening line"), img, msg(3, "Cy", "a cat"), msg(1, "Ada", "agreed")).Turns()

	out := geminiContents(turns)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4 (cue, model, merged user, model)", len(out))
	}
	if out[0].Role != genai.RoleUser || out[0].Parts[0].Text != openingCue {
		t.Fatalf("first content = %+v", out[0])
	}
	if out[1].Role != genai.RoleModel {
		t.Fatalf("second role = %s", out[1].Role)
	}
	user := out[2]
	if user.Role != genai.RoleUser || len(user.Parts) != 3 {
		t.Fatalf("merged user content has %d parts", len(user.Parts))
	}
	if user.Parts[1].InlineData == nil || user.Parts[1].InlineData.MIMEType != "image/png" {
		t.Fatalf("image part = %+v", user.Parts[1])
	}
	if user.Parts[2].Text != "Cy: a cat" {
		t.Fatalf("text part = %q", user.Parts[2].Text)
	}
}

func TestGeminiImageURLType(t *testing.T) {
	tests := map[string]string{
		"https://example.com/cat.png":          "image/png",
		"https://example.com/CAT.PNG?size=big": "image/png",
		"https://example.com/a/b.webp#x":       "image/webp",
		"http://example.com/photo.jpeg":        "image/jpeg",
		"https://example.com/anim.gif":         "image/gif",
		"https://example.com/render":           "image/jpeg",
		"https://example.com/page.html":        "image/jpeg",
	}
	for url, want := range tests {
		if got := imageMIME(url); got != want {
			t.Errorf("imageMIME(%q) = %q, want %q", url, got, want)
		}
	}

	m := msg(model.Human, "Human", "")
	m.Image = &model.ImageRef{URL: "https://example.com/cat.png"}
	parts := geminiParts(model.Entry{Role: model.RoleUser, Message: m})
	last := parts[len(parts)-1]
	if last.FileData == nil || last.FileData.MIMEType != "image/png" {
		t.Fatalf("image part = %+v", last)
	}
}

func TestGeminiRespond(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-pro:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Bonjour."}]}}],"usageMetadata":{"promptTokenCount":9,"candidatesTokenCount":2}}`)
	}))
	defer srv.Close()

	p := NewGeminiAdapter(ChatConf{APIKey: "key", BaseURL: srv.URL})
	agent := model.Agent{ID: 1, Name: "Ada", Provider: GeminiName}
	reply, err := p.Respond(context.Background(), &TurnRequest{Agent: agent, History: historyFor("You are Ada.", msg(0, "Human", "hi"))})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Content != "Bonjour." || reply.Usage.PromptTokens != 9 {
		t.Fatalf("reply = %+v", reply)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Fatalf("request has no system instruction: %v", body)
	}
}

func TestGeminiPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	}))
	defer srv.Close()

	p := NewGeminiAdapter(ChatConf{APIKey: "bad", BaseURL: srv.URL})
	_, err := p.Respond(context.Background(), &TurnRequest{Agent: testAgent, History: historyFor("p", msg(0, "Human", "hi"))})
	if !IsCredential(err) {
		t.Fatalf("err = %v, want credential", err)
	}
}
