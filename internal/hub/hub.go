package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 20
	sendBuffer     = 256
	taskBuffer     = 32
)

// Controller is what UI clients may do to the conversation.
type Controller interface {
	Activate(id model.AgentID) error
	SetPaused(paused bool) error
	TogglePause() error
	PauseAgent(id model.AgentID) error
	ResumeAgent(id model.AgentID) error
	SelectProvider(id model.AgentID, provider, modelName string) (model.Agent, error)
	StartRecording() error
	AppendAudio(data []byte) error
	StopRecording(ctx context.Context) error
	SubmitText(ctx context.Context, text string, image *model.ImageRef) error
	Agents() []model.Agent
	State() model.ActivationState
}

// Welcome is the first frame every client receives.
type Welcome struct {
	Agents []model.Agent         `json:"agents"`
	State  model.ActivationState `json:"state"`
}

// Ack answers a command frame.
type Ack struct {
	Command string       `json:"command"`
	OK      bool         `json:"ok"`
	Agent   *model.Agent `json:"agent,omitempty"`
}

// Hub fans conversation events out to every connected client and turns
// their command frames into controller calls.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	ctrl    Controller
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	// slow commands run here one at a time, in arrival order
	tasks chan func()
}

func New() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Bind attaches the controller. Frames are still broadcast without one.
func (h *Hub) Bind(ctrl Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctrl = ctrl
}

func (h *Hub) controller() Controller {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctrl
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements engine.Publisher.
func (h *Hub) Publish(e engine.Event) {
	frame := model.WSFrame{Type: string(e.Type), Timestamp: time.Now().Unix()}
	switch e.Type {
	case engine.EventMessage:
		frame.Content = e.Message
	case engine.EventError:
		frame.Content = e.Error
	case engine.EventState:
		frame.Content = e.State
	}
	h.Broadcast(frame)
}

// Broadcast sends frame to every client. A client whose buffer is full is
// disconnected rather than allowed to stall the others.
func (h *Hub) Broadcast(frame model.WSFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logx.Errorf("Failed to encode %s frame: %v", frame.Type, err)
		return
	}
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logx.Errorf("dropping slow websocket client %s", c.conn.RemoteAddr())
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.once.Do(func() { close(c.send) })
	}
}

// Serve runs one client connection until it closes.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		tasks: make(chan func(), taskBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer h.remove(c)
	defer close(c.tasks)

	threading.GoSafe(func() {
		c.writeLoop()
	})
	threading.GoSafe(func() {
		c.runTasks()
	})

	if ctrl := h.controller(); ctrl != nil {
		h.reply(c, model.WSFrame{
			Type:      model.FrameTypeWelcome,
			Content:   Welcome{Agents: ctrl.Agents(), State: ctrl.State()},
			Timestamp: time.Now().Unix(),
		})
	}
	h.readLoop(ctx, c)
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.Errorf("WebSocket error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var f struct {
				Type    string             `json:"type"`
				Content model.CommandFrame `json:"content"`
			}
			if err := json.Unmarshal(data, &f); err != nil {
				h.replyError(c, "invalid_request", 0, "Invalid JSON message: "+err.Error())
				continue
			}
			if f.Type != model.FrameTypeCommand {
				h.replyError(c, "invalid_request", 0, "Unknown message type: "+f.Type)
				continue
			}
			h.handleCommand(ctx, c, f.Content)
		case websocket.BinaryMessage:
			ctrl := h.controller()
			if ctrl == nil {
				continue
			}
			if err := ctrl.AppendAudio(data); err != nil {
				h.replyError(c, "speech", 0, err.Error())
			}
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *client, cmd model.CommandFrame) {
	ctrl := h.controller()
	if ctrl == nil {
		h.replyError(c, "unavailable", cmd.Agent, "conversation not ready")
		return
	}

	ack := Ack{Command: cmd.Command, OK: true}
	var err error
	switch cmd.Command {
	case model.CommandActivate:
		err = ctrl.Activate(cmd.Agent)
	case model.CommandPause:
		if cmd.Agent != model.Human {
			err = ctrl.PauseAgent(cmd.Agent)
		} else {
			err = ctrl.SetPaused(true)
		}
	case model.CommandResume:
		if cmd.Agent != model.Human {
			err = ctrl.ResumeAgent(cmd.Agent)
		} else {
			err = ctrl.SetPaused(false)
		}
	case model.CommandTogglePause:
		err = ctrl.TogglePause()
	case model.CommandSelectProvider:
		var agent model.Agent
		agent, err = ctrl.SelectProvider(cmd.Agent, cmd.Provider, cmd.Model)
		if err == nil {
			ack.Agent = &agent
		}
	case model.CommandStartRecording:
		err = ctrl.StartRecording()
	case model.CommandStopRecording:
		// transcription can take a while; keep reading frames meanwhile
		h.later(c, cmd, func() {
			if err := ctrl.StopRecording(ctx); err != nil {
				h.replyError(c, "speech", 0, err.Error())
				return
			}
			h.reply(c, ackFrame(ack))
		})
		return
	case model.CommandText:
		var image *model.ImageRef
		if cmd.Image != "" {
			image = &model.ImageRef{URL: cmd.Image}
		}
		h.later(c, cmd, func() {
			if err := ctrl.SubmitText(ctx, cmd.Text, image); err != nil {
				h.replyError(c, "invalid_request", 0, err.Error())
				return
			}
			h.reply(c, ackFrame(ack))
		})
		return
	default:
		err = fmt.Errorf("unknown command %q", cmd.Command)
	}

	if err != nil {
		h.replyError(c, commandErrorKind(err), cmd.Agent, err.Error())
		return
	}
	h.reply(c, ackFrame(ack))
}

// later queues task behind the client's earlier slow commands so two quick
// messages reach the conversation in the order they were sent.
func (h *Hub) later(c *client, cmd model.CommandFrame, task func()) {
	select {
	case c.tasks <- task:
	default:
		h.replyError(c, "unavailable", cmd.Agent, "too many pending commands")
	}
}

func commandErrorKind(err error) string {
	switch {
	case errors.Is(err, engine.ErrUnknownAgent), errors.Is(err, engine.ErrUnknownProvider):
		return "invalid_request"
	case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrStopped):
		return "unavailable"
	default:
		return "command"
	}
}

func ackFrame(ack Ack) model.WSFrame {
	return model.WSFrame{Type: model.FrameTypeAck, Content: ack, Timestamp: time.Now().Unix()}
}

func (h *Hub) replyError(c *client, kind string, agent model.AgentID, msg string) {
	h.reply(c, model.WSFrame{
		Type:      model.FrameTypeError,
		Content:   model.ErrorFrame{Kind: kind, Agent: agent, Message: msg},
		Timestamp: time.Now().Unix(),
	})
}

// reply sends a frame to one client only.
func (h *Hub) reply(c *client, frame model.WSFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logx.Errorf("Failed to encode %s frame: %v", frame.Type, err)
		return
	}
	h.mu.RLock()
	_, ok := h.clients[c]
	if ok {
		select {
		case c.send <- data:
		default:
			ok = false
		}
	}
	h.mu.RUnlock()
	if !ok {
		h.remove(c)
	}
}

func (c *client) runTasks() {
	for task := range c.tasks {
		threading.RunSafe(task)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logx.Errorf("Failed to send WebSocket message: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
