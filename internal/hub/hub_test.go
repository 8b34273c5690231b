package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
)

func init() {
	logx.Disable()
}

type fakeController struct {
	mu    sync.Mutex
	calls []string
	audio int
	fail  error
}

func (f *fakeController) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.fail
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) Activate(id model.AgentID) error { return f.record("activate %d", id) }
func (f *fakeController) SetPaused(paused bool) error     { return f.record("paused %v", paused) }
func (f *fakeController) TogglePause() error              { return f.record("toggle") }
func (f *fakeController) PauseAgent(id model.AgentID) error {
	return f.record("pause %d", id)
}
func (f *fakeController) ResumeAgent(id model.AgentID) error {
	return f.record("resume %d", id)
}

func (f *fakeController) SelectProvider(id model.AgentID, provider, modelName string) (model.Agent, error) {
	if provider == "mistral" {
		return model.Agent{}, fmt.Errorf("%w: %s", engine.ErrUnknownProvider, provider)
	}
	err := f.record("select %d %s", id, provider)
	return model.Agent{ID: id, Provider: provider, Model: modelName}, err
}

func (f *fakeController) StartRecording() error { return f.record("start") }

func (f *fakeController) AppendAudio(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio += len(data)
	return nil
}

func (f *fakeController) StopRecording(context.Context) error { return f.record("stop") }

func (f *fakeController) SubmitText(_ context.Context, text string, image *model.ImageRef) error {
	if strings.TrimSpace(text) == "" && image == nil {
		return fmt.Errorf("empty message")
	}
	if text == "slow" {
		time.Sleep(100 * time.Millisecond)
	}
	return f.record("text %s image=%v", text, image != nil)
}

func (f *fakeController) Agents() []model.Agent {
	return []model.Agent{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Bo"}, {ID: 3, Name: "Cy"}}
}

func (f *fakeController) State() model.ActivationState {
	return model.ActivationState{State: model.StateIdle}
}

type frame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

func startHub(t *testing.T) (*Hub, *fakeController, *websocket.Conn) {
	t.Helper()
	h := New()
	ctrl := &fakeController{}
	h.Bind(ctrl)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	if f := readFrame(t, conn); f.Type != model.FrameTypeWelcome {
		t.Fatalf("first frame = %s", f.Type)
	}
	return h, ctrl, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd model.CommandFrame) {
	t.Helper()
	if err := conn.WriteJSON(model.WSFrame{Type: model.FrameTypeCommand, Content: cmd}); err != nil {
		t.Fatal(err)
	}
}

func TestWelcome(t *testing.T) {
	h := New()
	h.Bind(&fakeController{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(context.Background(), conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	f := readFrame(t, conn)
	var w Welcome
	if err := json.Unmarshal(f.Content, &w); err != nil {
		t.Fatal(err)
	}
	if f.Type != model.FrameTypeWelcome || len(w.Agents) != 3 || w.State.State != model.StateIdle {
		t.Fatalf("welcome = %s %+v", f.Type, w)
	}
	if h.Clients() != 1 {
		t.Fatalf("clients = %d", h.Clients())
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		cmd  model.CommandFrame
		want string
	}{
		{model.CommandFrame{Command: model.CommandActivate, Agent: 2}, "activate 2"},
		{model.CommandFrame{Command: model.CommandPause}, "paused true"},
		{model.CommandFrame{Command: model.CommandPause, Agent: 3}, "pause 3"},
		{model.CommandFrame{Command: model.CommandResume}, "paused false"},
		{model.CommandFrame{Command: model.CommandResume, Agent: 1}, "resume 1"},
		{model.CommandFrame{Command: model.CommandTogglePause}, "toggle"},
		{model.CommandFrame{Command: model.CommandSelectProvider, Agent: 1, Provider: "gemini"}, "select 1 gemini"},
		{model.CommandFrame{Command: model.CommandStartRecording}, "start"},
		{model.CommandFrame{Command: model.CommandStopRecording}, "stop"},
		{model.CommandFrame{Command: model.CommandText, Text: "hello"}, "text hello image=false"},
		{model.CommandFrame{Command: model.CommandText, Text: "look", Image: "https://example.com/a.png"}, "text look image=true"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, ctrl, conn := startHub(t)
			sendCommand(t, conn, tt.cmd)

			f := readFrame(t, conn)
			var ack Ack
			if err := json.Unmarshal(f.Content, &ack); err != nil {
				t.Fatal(err)
			}
			if f.Type != model.FrameTypeAck || !ack.OK || ack.Command != tt.cmd.Command {
				t.Fatalf("reply = %s %s", f.Type, f.Content)
			}
			if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != tt.want {
				t.Fatalf("calls = %v", calls)
			}
		})
	}
}

func TestSelectProviderAckCarriesAgent(t *testing.T) {
	_, _, conn := startHub(t)
	sendCommand(t, conn, model.CommandFrame{Command: model.CommandSelectProvider, Agent: 2, Provider: "claude", Model: "claude-3-opus"})

	var ack Ack
	if err := json.Unmarshal(readFrame(t, conn).Content, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Agent == nil || ack.Agent.Provider != "claude" || ack.Agent.Model != "claude-3-opus" {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind string
	}{
		{"invalid json", `{"type":`, "invalid_request"},
		{"wrong type", `{"type":"message","content":{}}`, "invalid_request"},
		{"unknown command", `{"type":"command","content":{"command":"dance"}}`, "command"},
		{"unknown provider", `{"type":"command","content":{"command":"select_provider","agent":1,"provider":"mistral"}}`, "invalid_request"},
		{"empty text", `{"type":"command","content":{"command":"text","text":"  "}}`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, conn := startHub(t)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}
			f := readFrame(t, conn)
			var ef model.ErrorFrame
			if err := json.Unmarshal(f.Content, &ef); err != nil {
				t.Fatal(err)
			}
			if f.Type != model.FrameTypeError || ef.Kind != tt.kind {
				t.Fatalf("reply = %s %+v", f.Type, ef)
			}
		})
	}
}

func TestBinaryFramesAppendAudio(t *testing.T) {
	_, ctrl, conn := startHub(t)
	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 1024)); err != nil {
		t.Fatal(err)
	}
	// a command afterwards proves the binary frame was consumed first
	sendCommand(t, conn, model.CommandFrame{Command: model.CommandTogglePause})
	readFrame(t, conn)

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.audio != 1024 {
		t.Fatalf("audio bytes = %d", ctrl.audio)
	}
}

func TestPublishBroadcasts(t *testing.T) {
	h, _, conn := startHub(t)

	h.Publish(engine.Event{Type: engine.EventMessage, Message: &model.Message{Speaker: 1, Content: "hello"}})
	f := readFrame(t, conn)
	var msg model.Message
	if err := json.Unmarshal(f.Content, &msg); err != nil {
		t.Fatal(err)
	}
	if f.Type != model.FrameTypeMessage || msg.Content != "hello" {
		t.Fatalf("frame = %s %+v", f.Type, msg)
	}

	active := model.AgentID(3)
	h.Publish(engine.Event{Type: engine.EventState, State: &model.ActivationState{State: model.StateDispatching, Active: &active}})
	f = readFrame(t, conn)
	var st model.ActivationState
	if err := json.Unmarshal(f.Content, &st); err != nil {
		t.Fatal(err)
	}
	if f.Type != model.FrameTypeState || st.Active == nil || *st.Active != 3 {
		t.Fatalf("state = %s %+v", f.Type, st)
	}
}

func TestDisconnectRemovesClient(t *testing.T) {
	h, _, conn := startHub(t)
	conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for h.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTextCommandsKeepOrder(t *testing.T) {
	_, ctrl, conn := startHub(t)

	texts := []string{"slow", "second", "third"}
	for _, text := range texts {
		sendCommand(t, conn, model.CommandFrame{Command: model.CommandText, Text: text})
	}
	// a quick command is not held back by the queued messages
	sendCommand(t, conn, model.CommandFrame{Command: model.CommandTogglePause})

	var acks []string
	for len(acks) < len(texts)+1 {
		f := readFrame(t, conn)
		if f.Type != model.FrameTypeAck {
			t.Fatalf("frame = %s %s", f.Type, f.Content)
		}
		var ack Ack
		if err := json.Unmarshal(f.Content, &ack); err != nil {
			t.Fatal(err)
		}
		acks = append(acks, ack.Command)
	}
	if acks[0] != model.CommandTogglePause {
		t.Errorf("acks = %v, toggle should not wait for text", acks)
	}

	var got []string
	for _, call := range ctrl.Calls() {
		if strings.HasPrefix(call, "text ") {
			got = append(got, call)
		}
	}
	want := []string{"text slow image=false", "text second image=false", "text third image=false"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("text calls = %v, want %v", got, want)
	}
}
