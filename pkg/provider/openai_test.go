package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc, conf ChatConf) *OpenAIAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if conf.APIKey == "" {
		conf.APIKey = "sk-test"
	}
	conf.BaseURL = srv.URL
	return NewOpenAIAdapter(conf, WithTokenCounter(ApproxCounter{}))
}

func TestOpenAIRespond(t *testing.T) {
	var got openAIChatRequest
	var raw map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_ = json.Unmarshal(body, &raw)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":" Hello there! "}}],"usage":{"prompt_tokens":42,"completion_tokens":3}}`)
	}, ChatConf{})

	image := msg(model.Human, "Human", "Hello everyone")
	image.Image = &model.ImageRef{URL: "data:image/jpeg;base64,AAAA"}
	h := historyFor("You are Ada.", image, msg(2, "Bo", "Hi human"))

	reply, err := p.Respond(context.Background(), &TurnRequest{Agent: testAgent, History: h})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Content != "Hello there!" || reply.Speaker != 1 || reply.Role != model.RoleAssistant {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if reply.ID == "" {
		t.Fatal("reply has no id")
	}
	if reply.Usage == nil || reply.Usage.PromptTokens != 42 || reply.Usage.Estimated {
		t.Fatalf("usage = %+v", reply.Usage)
	}

	if got.Model != "gpt-4o" {
		t.Fatalf("model = %s", got.Model)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(got.Messages))
	}
	msgs := raw["messages"].([]any)
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "You are Ada." {
		t.Fatalf("system message = %v", first)
	}
	parts, ok := msgs[1].(map[string]any)["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("image message content = %v", msgs[1])
	}
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	if img["detail"] != "high" || !strings.HasPrefix(img["url"].(string), "data:image/jpeg") {
		t.Fatalf("image part = %v", img)
	}
	if third := msgs[2].(map[string]any); third["role"] != "user" || third["content"] != "Bo: Hi human" {
		t.Fatalf("other agent message = %v", third)
	}
}

func TestOpenAINonVisionModelGetsPlaceholder(t *testing.T) {
	var raw map[string]any
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}, ChatConf{})

	image := msg(model.Human, "Human", "what is this")
	image.Image = &model.ImageRef{URL: "https://example.com/a.png"}
	agent := testAgent
	agent.Model = "gpt-3.5-turbo"

	reply, err := p.Respond(context.Background(), &TurnRequest{Agent: agent, History: historyFor("p", image)})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !reply.Usage.Estimated {
		t.Fatal("usage should be estimated when the response has none")
	}
	content, ok := raw["messages"].([]any)[1].(map[string]any)["content"].(string)
	if !ok || !strings.Contains(content, ImagePlaceholder) {
		t.Fatalf("content = %v", raw["messages"])
	}
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, KindCredential},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, KindRateLimit},
		{"server", http.StatusBadGateway, `oops`, KindUnavailable},
		{"garbage", http.StatusOK, `not json`, KindMalformedResponse},
		{"no choices", http.StatusOK, `{"choices":[]}`, KindMalformedResponse},
		{"empty text", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, KindMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, ChatConf{})
			_, err := p.Respond(context.Background(), &TurnRequest{Agent: testAgent, History: historyFor("p", msg(0, "Human", "hi"))})
			if k := KindOf(err); k != tt.want {
				t.Fatalf("kind = %s (%v), want %s", k, err, tt.want)
			}
		})
	}
}

func TestOpenAIMissingKeyAndEmptyHistory(t *testing.T) {
	called := false
	p := NewOpenAIAdapter(ChatConf{BaseURL: "http://127.0.0.1:1"}, WithTokenCounter(ApproxCounter{}))
	_, err := p.Respond(context.Background(), &TurnRequest{Agent: testAgent, History: historyFor("p", msg(0, "Human", "hi"))})
	if !IsCredential(err) {
		t.Fatalf("err = %v, want credential", err)
	}

	q := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) { called = true }, ChatConf{})
	_, err = q.Respond(context.Background(), &TurnRequest{Agent: testAgent})
	if KindOf(err) != KindInvalidRequest {
		t.Fatalf("err = %v, want invalid_request", err)
	}
	if called {
		t.Fatal("empty history reached the provider")
	}
}

func TestOpenAITimeout(t *testing.T) {
	release := make(chan struct{})
	p := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, ChatConf{Timeout: 50 * time.Millisecond})
	defer close(release)

	_, err := p.Respond(context.Background(), &TurnRequest{Agent: testAgent, History: historyFor("p", msg(0, "Human", "hi"))})
	if KindOf(err) != KindTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestOpenAIDefaultTokenCounter(t *testing.T) {
	if _, ok := NewOpenAIAdapter(ChatConf{}).counter.(*TiktokenCounter); !ok {
		t.Fatal("openai adapter should count with tiktoken by default")
	}
	if _, ok := NewOpenAIAdapter(ChatConf{}, WithTokenCounter(ApproxCounter{})).counter.(ApproxCounter); !ok {
		t.Fatal("WithTokenCounter should replace the default")
	}
}
