package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/unclewu3242592726/tritalk/internal/hub"
	"github.com/unclewu3242592726/tritalk/pkg/model"
)

const (
	dialTimeout = 5 * time.Second
	writeWait   = 10 * time.Second
	audioChunk  = 32 << 10
)

// Sender is the outbound half of a server connection.
type Sender interface {
	Send(cmd model.CommandFrame) error
	SendAudio(data []byte) error
}

type (
	welcomeMsg      hub.Welcome
	chatMsg         model.Message
	stateMsg        model.ActivationState
	serverErrorMsg  model.ErrorFrame
	ackMsg          hub.Ack
	speakingMsg     model.AudioChunkFrame
	disconnectedMsg struct{ err error }
	sentMsg         struct {
		cmd model.CommandFrame
		err error
	}
)

// Client is a websocket connection to a running server.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func Dial(ctx context.Context, url string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes a command frame.
func (c *Client) Send(cmd model.CommandFrame) error {
	data, err := json.Marshal(model.WSFrame{Type: model.FrameTypeCommand, Content: cmd})
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// SendAudio streams raw audio as binary frames.
func (c *Client) SendAudio(data []byte) error {
	for len(data) > 0 {
		n := min(len(data), audioChunk)
		if err := c.write(websocket.BinaryMessage, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (c *Client) write(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}

// Listen decodes server frames into out until the connection closes. The
// last value sent is always a disconnectedMsg.
func (c *Client) Listen(out chan<- tea.Msg) {
	defer close(out)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			out <- disconnectedMsg{err: err}
			return
		}
		msg, err := decodeFrame(data)
		if err != nil {
			out <- serverErrorMsg{Kind: "decode", Message: err.Error()}
			continue
		}
		if msg != nil {
			out <- msg
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// decodeFrame maps a server frame to a tea message. Unknown frame types
// are skipped.
func decodeFrame(data []byte) (tea.Msg, error) {
	var f struct {
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	switch f.Type {
	case model.FrameTypeWelcome:
		return decodeAs[welcomeMsg](f.Type, f.Content)
	case model.FrameTypeMessage:
		return decodeAs[chatMsg](f.Type, f.Content)
	case model.FrameTypeState:
		return decodeAs[stateMsg](f.Type, f.Content)
	case model.FrameTypeError:
		return decodeAs[serverErrorMsg](f.Type, f.Content)
	case model.FrameTypeAck:
		return decodeAs[ackMsg](f.Type, f.Content)
	case model.FrameTypeTTS:
		return decodeAs[speakingMsg](f.Type, f.Content)
	default:
		return nil, nil
	}
}

func decodeAs[T any](kind string, raw json.RawMessage) (tea.Msg, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid %s frame: %w", kind, err)
	}
	return v, nil
}

func waitFrame(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
