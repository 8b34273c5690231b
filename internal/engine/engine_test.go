package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
	"github.com/zeromicro/go-zero/core/logx"
)

func init() {
	logx.Disable()
}

var testAgents = []model.Agent{
	{ID: 1, Name: "Ada", Persona: "You are Ada.", Provider: "alpha"},
	{ID: 2, Name: "Bo", Persona: "You are Bo.", Provider: "alpha"},
	{ID: 3, Name: "Cy", Persona: "You are Cy.", Provider: "beta"},
}

// fakeAdapter answers with a canned reply unless respond is set.
type fakeAdapter struct {
	name    string
	mu      sync.Mutex
	calls   []provider.TurnRequest
	respond func(ctx context.Context, req *provider.TurnRequest) (*model.Message, error)
}

func (f *fakeAdapter) Name() string         { return f.name }
func (f *fakeAdapter) DefaultModel() string { return f.name + "-default" }
func (f *fakeAdapter) Capabilities(string) provider.Capabilities {
	return provider.Capabilities{ContextWindow: 1000}
}
func (f *fakeAdapter) EstimateTokens(string, model.ConversationHistory) int { return 0 }

func (f *fakeAdapter) Respond(ctx context.Context, req *provider.TurnRequest) (*model.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(ctx, req)
	}
	return agentReply(req.Agent, fmt.Sprintf("%s via %s", req.Agent.Name, f.name)), nil
}

func (f *fakeAdapter) Calls() []provider.TurnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.TurnRequest(nil), f.calls...)
}

func agentReply(a model.Agent, text string) *model.Message {
	return &model.Message{
		ID:          uuid.NewString(),
		Role:        model.RoleAssistant,
		Speaker:     a.ID,
		SpeakerName: a.Name,
		Content:     text,
		Timestamp:   time.Now(),
	}
}

func humanMessage(text string) *model.Message {
	return &model.Message{
		ID:          uuid.NewString(),
		Role:        model.RoleUser,
		Speaker:     model.Human,
		SpeakerName: "Human",
		Content:     text,
		Timestamp:   time.Now(),
	}
}

func newTestRegistry() (*provider.Registry, *fakeAdapter, *fakeAdapter) {
	alpha := &fakeAdapter{name: "alpha"}
	beta := &fakeAdapter{name: "beta"}
	reg := provider.NewRegistry()
	reg.RegisterLLM(alpha.name, alpha)
	reg.RegisterLLM(beta.name, beta)
	return reg, alpha, beta
}

func newTestRoster(t *testing.T) (*Roster, *fakeAdapter, *fakeAdapter) {
	t.Helper()
	reg, alpha, beta := newTestRegistry()
	roster, err := NewRoster(testAgents, reg)
	if err != nil {
		t.Fatalf("NewRoster: %v", err)
	}
	return roster, alpha, beta
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeRunner stands in for the dispatcher in scheduler tests. Call i
// blocks on gates[i] when such a gate exists.
type fakeRunner struct {
	mu    sync.Mutex
	calls []model.AgentID
	gates []chan struct{}
	fail  func(call int, id model.AgentID) error

	current atomic.Int32
	peak    atomic.Int32
}

func (r *fakeRunner) RunTurn(ctx context.Context, id model.AgentID) TurnOutcome {
	n := r.current.Add(1)
	defer r.current.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	call := len(r.calls)
	r.calls = append(r.calls, id)
	var gate chan struct{}
	if call < len(r.gates) {
		gate = r.gates[call]
	}
	fail := r.fail
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if fail != nil {
		if err := fail(call, id); err != nil {
			return TurnOutcome{Agent: id, Err: err}
		}
	}
	return TurnOutcome{Agent: id, Message: &model.Message{Speaker: id}}
}

func (r *fakeRunner) Calls() []model.AgentID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AgentID(nil), r.calls...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle asserts cond stays true for a short while.
func settle(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if !cond() {
			t.Fatalf("%s changed unexpectedly", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
