package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/breaker"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultContextWindow = 128000
	defaultMaxTokens     = 4096
)

// Adapter turns one agent's history into the next reply from a provider.
type Adapter interface {
	Name() string
	DefaultModel() string
	Capabilities(model string) Capabilities
	EstimateTokens(model string, h model.ConversationHistory) int
	Respond(ctx context.Context, req *TurnRequest) (*model.Message, error)
}

// TurnRequest carries what the adapter needs for a single reply. Agent is
// captured when the turn is dispatched, so later provider switches do not
// affect a call in flight.
type TurnRequest struct {
	Agent   model.Agent
	History model.ConversationHistory
}

// ChatConf holds the connection settings shared by every chat adapter.
type ChatConf struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	ContextWindow int
	MaxTokens     int
	VisionModels  []string
}

type Option func(*chatBase)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *chatBase) {
		b.client = c
	}
}

// WithTokenCounter replaces the adapter's token estimator.
func WithTokenCounter(c TokenCounter) Option {
	return func(b *chatBase) {
		b.counter = c
	}
}

// chatBase implements the provider independent half of an adapter.
type chatBase struct {
	name    string
	conf    ChatConf
	client  *http.Client
	counter TokenCounter
	brk     breaker.Breaker
}

func newChatBase(name string, conf ChatConf, counter TokenCounter, opts []Option) chatBase {
	if conf.Timeout <= 0 {
		conf.Timeout = defaultTimeout
	}
	if conf.ContextWindow <= 0 {
		conf.ContextWindow = defaultContextWindow
	}
	if conf.MaxTokens <= 0 {
		conf.MaxTokens = defaultMaxTokens
	}
	b := chatBase{
		name:    name,
		conf:    conf,
		client:  &http.Client{},
		counter: counter,
		brk:     breaker.NewBreaker(breaker.WithName("provider." + name)),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *chatBase) Name() string {
	return b.name
}

func (b *chatBase) DefaultModel() string {
	return b.conf.Model
}

func (b *chatBase) Capabilities(modelName string) Capabilities {
	return Capabilities{
		ImageInput:    matchModel(b.modelOrDefault(modelName), b.conf.VisionModels),
		ContextWindow: b.conf.ContextWindow,
	}
}

func (b *chatBase) EstimateTokens(modelName string, h model.ConversationHistory) int {
	return EstimateHistory(b.counter, b.modelOrDefault(modelName), h)
}

func (b *chatBase) modelOrDefault(name string) string {
	if name == "" {
		return b.conf.Model
	}
	return name
}

// prepare validates the request and shapes the history for the model:
// images are dropped when unsupported and old turns trimmed to the window.
func (b *chatBase) prepare(req *TurnRequest) (string, model.ConversationHistory, int, error) {
	if req == nil || len(req.History) == 0 {
		return "", nil, 0, errInvalid(b.name, "empty conversation history")
	}
	if b.conf.APIKey == "" {
		return "", nil, 0, errCredential(b.name, "api key not configured")
	}

	modelName := b.modelOrDefault(req.Agent.Model)
	caps := b.Capabilities(modelName)
	h := req.History
	if !caps.ImageInput {
		h = StripImages(h)
	}
	h = Fit(h, caps.ContextWindow, func(e model.Entry) int {
		return b.counter.CountEntry(modelName, e)
	})
	return modelName, h, EstimateHistory(b.counter, modelName, h), nil
}

// call runs fn under the provider timeout and circuit breaker.
func (b *chatBase) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.conf.Timeout)
	defer cancel()

	err := b.brk.DoWithAcceptable(func() error {
		return fn(ctx)
	}, acceptable)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, breaker.ErrServiceUnavailable):
		return &Error{Provider: b.name, Kind: KindUnavailable, Message: "circuit breaker open", Err: err}
	default:
		return transportError(b.name, err)
	}
}

// acceptable keeps caller side mistakes from tripping the breaker.
func acceptable(err error) bool {
	switch KindOf(err) {
	case KindCredential, KindInvalidRequest, KindCanceled:
		return true
	}
	return err == nil
}

// reply builds the agent message for a completed call.
func (b *chatBase) reply(agent model.Agent, text string, usage *model.Usage) (*model.Message, error) {
	if text == "" {
		return nil, errMalformed(b.name, errors.New("empty completion"))
	}
	return &model.Message{
		ID:          uuid.NewString(),
		Role:        model.RoleAssistant,
		Speaker:     agent.ID,
		SpeakerName: agent.Name,
		Content:     text,
		Usage:       usage,
		Timestamp:   time.Now(),
	}, nil
}
