package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

func TestClaudeRespond(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "key" || r.Header.Get("anthropic-version") != claudeAPIVersion {
			t.Errorf("headers = %v", r.Header)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"Greetings."}],"usage":{"input_tokens":12,"output_tokens":2}}`)
	}))
	defer srv.Close()

	p := NewClaudeAdapter(ChatConf{APIKey: "key", BaseURL: srv.URL})
	agent := model.Agent{ID: 1, Name: "Ada", Provider: ClaudeName}
	h := historyFor("You are Ada.", msg(model.Human, "Human", "Hello everyone"), msg(2, "Bo", "Hi"))

	reply, err := p.Respond(context.Background(), &TurnRequest{Agent: agent, History: h})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Content != "Greetings." || reply.Usage.PromptTokens != 12 {
		t.Fatalf("reply = %+v", reply)
	}
	if got.Model != claudeDefaultModel || got.MaxTokens != defaultMaxTokens {
		t.Fatalf("model = %s max_tokens = %d", got.Model, got.MaxTokens)
	}
	if got.System != "You are Ada." {
		t.Fatalf("system = %q", got.System)
	}
	// human and Bo are both user turns and must be merged
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Content[1].Text != "Bo: Hi" {
		t.Fatalf("second block = %q", got.Messages[0].Content[1].Text)
	}
}

func TestClaudeMessagesOpensWithUser(t *testing.T) {
	turns := historyFor("p", msg(1, "Ada", "I start")).Turns()
	out := claudeMessages(turns)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Role != model.RoleUser || out[0].Content[0].Text != openingCue {
		t.Fatalf("first = %+v", out[0])
	}
	if out[1].Role != model.RoleAssistant {
		t.Fatalf("second role = %s", out[1].Role)
	}

	if out := claudeMessages(nil); len(out) != 1 || out[0].Role != model.RoleUser {
		t.Fatalf("empty turns = %+v", out)
	}
}

func TestClaudeImageBlocks(t *testing.T) {
	m := msg(model.Human, "Human", "see")
	m.Image = &model.ImageRef{URL: "data:image/png;base64,iVBO"}
	blocks := claudeBlocks(model.Entry{Role: model.RoleUser, Message: m})
	if len(blocks) != 2 || blocks[1].Source == nil {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[1].Source.Type != "base64" || blocks[1].Source.MediaType != "image/png" || blocks[1].Source.Data != "iVBO" {
		t.Fatalf("source = %+v", blocks[1].Source)
	}

	m.Image = &model.ImageRef{URL: "https://example.com/x.jpg"}
	blocks = claudeBlocks(model.Entry{Role: model.RoleUser, Message: m})
	if blocks[1].Source.Type != "url" {
		t.Fatalf("source = %+v", blocks[1].Source)
	}
}

func TestClaudeOverloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	p := NewClaudeAdapter(ChatConf{APIKey: "key", BaseURL: srv.URL})
	_, err := p.Respond(context.Background(), &TurnRequest{Agent: testAgent, History: historyFor("p", msg(0, "Human", "hi"))})
	var pe *Error
	if !asError(err, &pe) || pe.Kind != KindUnavailable || pe.Message != "Overloaded" {
		t.Fatalf("err = %v", err)
	}
}
