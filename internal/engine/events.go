package engine

import (
	"errors"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
)

var (
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrTurnInProgress  = errors.New("a turn is already in progress")
	ErrQueueFull       = errors.New("scheduler queue is full")
	ErrStopped         = errors.New("scheduler stopped")
)

type EventType string

const (
	EventMessage EventType = model.FrameTypeMessage
	EventError   EventType = model.FrameTypeError
	EventState   EventType = model.FrameTypeState
)

// Event is pushed to UI clients after every observable change.
type Event struct {
	Type    EventType
	Message *model.Message
	Error   *model.ErrorFrame
	State   *model.ActivationState
}

// Publisher delivers events to whoever is watching the conversation.
type Publisher interface {
	Publish(Event)
}

// SpeakRequest asks for an agent reply to be voiced. Done, if set, is
// called once playback data has been fully produced or synthesis failed.
type SpeakRequest struct {
	Agent model.AgentID
	Voice string
	Text  string
	Done  func()
}

// Speaker renders agent replies as audio without blocking the caller.
type Speaker interface {
	Speak(SpeakRequest)
}

// Animator toggles the visual state of an agent.
type Animator interface {
	Trigger(id model.AgentID, active bool)
}

// ErrorFrame converts a failure into the frame sent to UI clients.
func ErrorFrame(id model.AgentID, err error) *model.ErrorFrame {
	kind := "provider"
	var pe *provider.Error
	if errors.As(err, &pe) {
		kind = string(pe.Kind)
	}
	return &model.ErrorFrame{Kind: kind, Agent: id, Message: err.Error()}
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

type nopSpeaker struct{}

func (nopSpeaker) Speak(req SpeakRequest) {
	if req.Done != nil {
		req.Done()
	}
}

type nopAnimator struct{}

func (nopAnimator) Trigger(model.AgentID, bool) {}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) {
	f(e)
}

// Fanout publishes every event to all of its members in order.
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		p.Publish(e)
	}
}
