package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/internal/speech"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
)

const HumanName = "Human"

var (
	ErrEmptyMessage   = errors.New("message has no text or image")
	ErrInvalidImage   = errors.New("image must be an http(s) or data url")
	ErrSpeechDisabled = errors.New("speech input is disabled")
	ErrBusy           = errors.New("a turn is in progress")
)

// Conversation is the single entry point for human input and UI commands.
// Every path that changes who speaks goes through the scheduler.
type Conversation struct {
	roster    *engine.Roster
	history   *engine.HistoryStore
	scheduler *engine.Scheduler
	recorder  *speech.Recorder
	publisher engine.Publisher
}

type Deps struct {
	Roster    *engine.Roster
	History   *engine.HistoryStore
	Scheduler *engine.Scheduler
	// Recorder is nil when speech input is disabled.
	Recorder  *speech.Recorder
	Publisher engine.Publisher
}

func New(d Deps) *Conversation {
	c := &Conversation{
		roster:    d.Roster,
		history:   d.History,
		scheduler: d.Scheduler,
		recorder:  d.Recorder,
		publisher: d.Publisher,
	}
	if c.publisher == nil {
		c.publisher = engine.PublisherFunc(func(engine.Event) {})
	}
	return c
}

func (c *Conversation) Activate(id model.AgentID) error {
	return c.scheduler.Manual(id)
}

func (c *Conversation) SetPaused(paused bool) error {
	return c.scheduler.SetPaused(paused)
}

func (c *Conversation) TogglePause() error {
	return c.scheduler.TogglePause()
}

func (c *Conversation) PauseAgent(id model.AgentID) error {
	if err := c.roster.Pause(id); err != nil {
		return err
	}
	logx.Infof("agent %d paused", int(id))
	return nil
}

func (c *Conversation) ResumeAgent(id model.AgentID) error {
	if err := c.roster.Resume(id); err != nil {
		return err
	}
	logx.Infof("agent %d resumed", int(id))
	return nil
}

func (c *Conversation) SelectProvider(id model.AgentID, provider, modelName string) (model.Agent, error) {
	agent, err := c.roster.SelectProvider(id, provider, modelName)
	if err != nil {
		return model.Agent{}, err
	}
	logx.Infow("provider selected",
		logx.Field("agent", int(id)),
		logx.Field("provider", agent.Provider),
		logx.Field("model", agent.Model))
	return agent, nil
}

func (c *Conversation) Agents() []model.Agent {
	return c.roster.Snapshots()
}

func (c *Conversation) Agent(id model.AgentID) (model.Agent, error) {
	return c.roster.Snapshot(id)
}

func (c *Conversation) History(id model.AgentID) (model.ConversationHistory, error) {
	return c.history.Get(id)
}

func (c *Conversation) Transcript() []*model.Message {
	return c.history.Transcript()
}

func (c *Conversation) State() model.ActivationState {
	return c.scheduler.State()
}

func (c *Conversation) StartRecording() error {
	if c.recorder == nil {
		return &speech.IngestionError{Op: "start", Err: ErrSpeechDisabled}
	}
	return c.recorder.StartRecording()
}

func (c *Conversation) AppendAudio(data []byte) error {
	if c.recorder == nil {
		return &speech.IngestionError{Op: "append", Err: ErrSpeechDisabled}
	}
	return c.recorder.AppendAudio(data)
}

// StopRecording transcribes the session and submits it as human speech.
func (c *Conversation) StopRecording(ctx context.Context) error {
	_, err := c.StopAndSubmit(ctx)
	return err
}

// StopAndSubmit is StopRecording returning the appended message.
func (c *Conversation) StopAndSubmit(ctx context.Context) (*model.Message, error) {
	if c.recorder == nil {
		return nil, &speech.IngestionError{Op: "stop", Err: ErrSpeechDisabled}
	}
	text, err := c.recorder.StopRecording(ctx)
	if err != nil {
		c.publishError(err)
		return nil, err
	}
	return c.Submit(ctx, text, nil)
}

func (c *Conversation) SubmitText(ctx context.Context, text string, image *model.ImageRef) error {
	_, err := c.Submit(ctx, text, image)
	return err
}

// Submit appends a human message to every history and lets the scheduler
// pick who answers.
func (c *Conversation) Submit(ctx context.Context, text string, image *model.ImageRef) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if image != nil && image.URL == "" {
		image = nil
	}
	if text == "" && image == nil {
		return nil, ErrEmptyMessage
	}
	if image != nil && !validImage(image) {
		return nil, ErrInvalidImage
	}

	msg := &model.Message{
		ID:          uuid.NewString(),
		Role:        model.RoleUser,
		Speaker:     model.Human,
		SpeakerName: HumanName,
		Content:     text,
		Image:       image,
		Timestamp:   time.Now(),
	}
	if err := c.history.Append(msg); err != nil {
		return nil, err
	}
	logx.WithContext(ctx).Infow("human message appended", logx.Field("chars", len(text)))
	c.publisher.Publish(engine.Event{Type: engine.EventMessage, Message: msg})

	if err := c.scheduler.HumanSpeechIngested(); err != nil {
		return msg, fmt.Errorf("message saved but no agent was asked to reply: %w", err)
	}
	return msg, nil
}

// Reset clears every history. It is refused while a turn is running, and a
// chained turn that was about to start is dropped.
func (c *Conversation) Reset(ctx context.Context) error {
	err := c.scheduler.Reset(ctx, c.history.Reset)
	if errors.Is(err, engine.ErrTurnInProgress) {
		return ErrBusy
	}
	if err != nil {
		return err
	}
	logx.Info("conversation reset")
	return nil
}

func (c *Conversation) publishError(err error) {
	c.publisher.Publish(engine.Event{
		Type:  engine.EventError,
		Error: &model.ErrorFrame{Kind: "speech", Message: err.Error()},
	})
}

func validImage(img *model.ImageRef) bool {
	if img.IsDataURL() {
		_, _, err := img.Decode()
		return err == nil
	}
	return strings.HasPrefix(img.URL, "http://") || strings.HasPrefix(img.URL, "https://")
}
