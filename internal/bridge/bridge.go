package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
)

// OBS websocket v5 opcodes
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opRequest         = 6
	opRequestResponse = 7

	rpcVersion     = 1
	defaultQueue   = 32
	requestTimeout = 5 * time.Second
)

// BridgeError reports a failed animation trigger. It is logged, never
// surfaced to the conversation.
type BridgeError struct {
	Op  string
	Err error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("animation bridge %s: %v", e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Item maps an agent to the scene item shown while it speaks.
type Item struct {
	Agent       int
	SceneItemID int
}

type Conf struct {
	Enabled  bool   `json:",optional"`
	URL      string `json:",default=ws://127.0.0.1:4455"`
	Password string `json:",optional"`
	Scene    string `json:",optional"`
	Items    []Item `json:",optional"`
}

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type hello struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type identify struct {
	RPCVersion     int    `json:"rpcVersion"`
	Authentication string `json:"authentication,omitempty"`
}

type request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestResponse struct {
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
}

type trigger struct {
	id     model.AgentID
	active bool
}

// OBS toggles scene items through obs-websocket. Triggers are queued and
// applied by a single worker which reconnects on demand.
type OBS struct {
	conf   Conf
	items  map[model.AgentID]int
	dialer *websocket.Dialer
	queue  chan trigger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewOBS(c Conf) *OBS {
	items := make(map[model.AgentID]int, len(c.Items))
	for _, it := range c.Items {
		items[model.AgentID(it.Agent)] = it.SceneItemID
	}
	return &OBS{
		conf:   c,
		items:  items,
		dialer: &websocket.Dialer{HandshakeTimeout: requestTimeout},
		queue:  make(chan trigger, defaultQueue),
	}
}

// Trigger queues a visibility change for agent id.
func (o *OBS) Trigger(id model.AgentID, active bool) {
	if _, ok := o.items[id]; !ok {
		return
	}
	select {
	case o.queue <- trigger{id: id, active: active}:
	default:
		logx.Error(&BridgeError{Op: "trigger", Err: errors.New("queue full")})
	}
}

// Run applies queued triggers until ctx is done.
func (o *OBS) Run(ctx context.Context) {
	defer o.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-o.queue:
			if err := o.apply(ctx, t); err != nil {
				logx.Error(err)
				o.Close()
			}
		}
	}
}

func (o *OBS) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		_ = o.conn.Close()
		o.conn = nil
	}
}

func (o *OBS) apply(ctx context.Context, t trigger) error {
	conn, err := o.connect(ctx)
	if err != nil {
		return &BridgeError{Op: "connect", Err: err}
	}
	req := request{
		RequestType: "SetSceneItemEnabled",
		RequestID:   uuid.NewString(),
		RequestData: map[string]any{
			"sceneName":        o.conf.Scene,
			"sceneItemId":      o.items[t.id],
			"sceneItemEnabled": t.active,
		},
	}
	if err := send(conn, opRequest, req); err != nil {
		return &BridgeError{Op: "request", Err: err}
	}

	deadline := time.Now().Add(requestTimeout)
	for {
		var resp requestResponse
		op, err := receive(conn, deadline, &resp)
		if err != nil {
			return &BridgeError{Op: "response", Err: err}
		}
		// events and other responses are interleaved with ours
		if op != opRequestResponse || resp.RequestID != req.RequestID {
			continue
		}
		if !resp.RequestStatus.Result {
			return &BridgeError{
				Op:  "SetSceneItemEnabled",
				Err: fmt.Errorf("code %d: %s", resp.RequestStatus.Code, resp.RequestStatus.Comment),
			}
		}
		return nil
	}
}

func (o *OBS) connect(ctx context.Context) (*websocket.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		return o.conn, nil
	}

	conn, _, err := o.dialer.DialContext(ctx, o.conf.URL, nil)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(requestTimeout)

	var h hello
	op, err := receive(conn, deadline, &h)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if op != opHello {
		conn.Close()
		return nil, fmt.Errorf("expected hello, got op %d", op)
	}

	id := identify{RPCVersion: rpcVersion}
	if h.Authentication != nil {
		if o.conf.Password == "" {
			conn.Close()
			return nil, errors.New("server requires a password")
		}
		id.Authentication = authResponse(o.conf.Password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	if err := send(conn, opIdentify, id); err != nil {
		conn.Close()
		return nil, err
	}
	op, err = receive(conn, deadline, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("identify: %w", err)
	}
	if op != opIdentified {
		conn.Close()
		return nil, fmt.Errorf("expected identified, got op %d", op)
	}

	logx.Infof("connected to obs-websocket at %s", o.conf.URL)
	o.conn = conn
	return conn, nil
}

// authResponse is base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	encoded := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(encoded + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func send(conn *websocket.Conn, op int, d any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(requestTimeout))
	return conn.WriteJSON(frame{Op: op, D: data})
}

func receive(conn *websocket.Conn, deadline time.Time, out any) (int, error) {
	_ = conn.SetReadDeadline(deadline)
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return 0, err
	}
	if out != nil && len(f.D) > 0 {
		if err := json.Unmarshal(f.D, out); err != nil {
			return f.Op, fmt.Errorf("decode op %d: %w", f.Op, err)
		}
	}
	return f.Op, nil
}

// Noop is used when animation is disabled.
type Noop struct{}

func (Noop) Trigger(model.AgentID, bool) {}
