package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AgentID identifies a participant. Agents are numbered from 1, the human is 0.
type AgentID int

const Human AgentID = 0

func (id AgentID) String() string {
	if id == Human {
		return "human"
	}
	return fmt.Sprintf("agent-%d", int(id))
}

// Agent is a snapshot of one conversational agent
type Agent struct {
	ID       AgentID `json:"id"`
	Name     string  `json:"name"`
	Persona  string  `json:"persona"`
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Voice    string  `json:"voice,omitempty"`
	Paused   bool    `json:"paused"`
}

// ImageRef points at an image by http(s) URL or inline data URL
type ImageRef struct {
	URL string `json:"url"`
}

var ErrNotDataURL = errors.New("image is not a data url")

func (i *ImageRef) IsDataURL() bool {
	return i != nil && strings.HasPrefix(i.URL, "data:")
}

// Decode splits a base64 data URL into its mime type and payload.
func (i *ImageRef) Decode() (string, []byte, error) {
	if !i.IsDataURL() {
		return "", nil, ErrNotDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(i.URL, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data url")
	}
	mime, enc, _ := strings.Cut(header, ";")
	if enc != "base64" {
		return "", nil, fmt.Errorf("unsupported data url encoding %q", enc)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return mime, data, nil
}

// DataURL wraps raw image bytes as a data url.
func DataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Message is one immutable utterance in the shared conversation
type Message struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"` // system|user|assistant
	Speaker     AgentID   `json:"speaker"`
	SpeakerName string    `json:"speakerName,omitempty"`
	Content     string    `json:"content"`
	Image       *ImageRef `json:"image,omitempty"`
	Usage       *Usage    `json:"usage,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Entry is a message as seen from one agent's point of view
type Entry struct {
	Role    string   `json:"role"`
	Message *Message `json:"message"`
}

// Text renders the entry for a provider. Messages spoken by someone else
// carry the speaker's name so the agent can tell participants apart.
func (e Entry) Text() string {
	if e.Message == nil {
		return ""
	}
	if e.Role == RoleUser && e.Message.SpeakerName != "" {
		return e.Message.SpeakerName + ": " + e.Message.Content
	}
	return e.Message.Content
}

// ConversationHistory is one agent's ordered view. Index 0 is the persona.
type ConversationHistory []Entry

// Turns returns the history without the leading system entry.
func (h ConversationHistory) Turns() ConversationHistory {
	if len(h) > 0 && h[0].Role == RoleSystem {
		return h[1:]
	}
	return h
}

// System returns the persona text if present.
func (h ConversationHistory) System() string {
	if len(h) > 0 && h[0].Role == RoleSystem && h[0].Message != nil {
		return h[0].Message.Content
	}
	return ""
}

type Usage struct {
	PromptTokens     int  `json:"promptTokens"`
	CompletionTokens int  `json:"completionTokens,omitempty"`
	Estimated        bool `json:"estimated,omitempty"`
}

// ActivationState is the externally visible scheduler state
type ActivationState struct {
	State          string   `json:"state"` // idle|dispatching|paused
	Active         *AgentID `json:"active,omitempty"`
	Paused         bool     `json:"paused"`
	TurnInProgress bool     `json:"turnInProgress"`
	Pending        *AgentID `json:"pending,omitempty"`
}

// WSFrame is the envelope for every frame pushed to UI clients
type WSFrame struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq,omitempty"`
	Content   any    `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type ErrorFrame struct {
	Kind    string  `json:"kind"`
	Agent   AgentID `json:"agent,omitempty"`
	Message string  `json:"message"`
}

type AudioChunkFrame struct {
	Agent    AgentID `json:"agent"`
	Format   string  `json:"format"` // mp3|pcm
	Data     string  `json:"data"`   // base64 encoded
	Sequence int64   `json:"sequence"`
	Text     string  `json:"text,omitempty"`
	Final    bool    `json:"final,omitempty"`
}

// CommandFrame is sent by UI clients
type CommandFrame struct {
	Command  string  `json:"command"`
	Agent    AgentID `json:"agent,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Model    string  `json:"model,omitempty"`
	Text     string  `json:"text,omitempty"`
	Image    string  `json:"image,omitempty"`
}

// Frame types
const (
	FrameTypeWelcome = "welcome"
	FrameTypeMessage = "message"
	FrameTypeError   = "error"
	FrameTypeState   = "state"
	FrameTypeTTS     = "tts"
	FrameTypeCommand = "command"
	FrameTypeAck     = "ack"
)

// Roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Scheduler states
const (
	StateIdle        = "idle"
	StateDispatching = "dispatching"
	StatePaused      = "paused"
)

// Commands accepted from UI clients and the keyboard surface
const (
	CommandActivate       = "activate"
	CommandPause          = "pause"
	CommandResume         = "resume"
	CommandTogglePause    = "toggle_pause"
	CommandSelectProvider = "select_provider"
	CommandStartRecording = "start_recording"
	CommandStopRecording  = "stop_recording"
	CommandText           = "text"
)
