package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
	"github.com/zeromicro/go-zero/core/logx"
)

// TurnOutcome reports how a dispatched turn ended.
type TurnOutcome struct {
	Agent   model.AgentID
	Message *model.Message
	Err     error
}

func (o TurnOutcome) OK() bool {
	return o.Err == nil
}

// Dispatcher runs single agent turns. At most one turn is in progress at a
// time, enforced by an atomic guard that is always released.
type Dispatcher struct {
	roster    *Roster
	history   *HistoryStore
	publisher Publisher
	speaker   Speaker
	animator  Animator

	inProgress atomic.Bool
}

type DispatcherOption func(*Dispatcher)

func WithPublisher(p Publisher) DispatcherOption {
	return func(d *Dispatcher) {
		if p != nil {
			d.publisher = p
		}
	}
}

func WithSpeaker(s Speaker) DispatcherOption {
	return func(d *Dispatcher) {
		if s != nil {
			d.speaker = s
		}
	}
}

func WithAnimator(a Animator) DispatcherOption {
	return func(d *Dispatcher) {
		if a != nil {
			d.animator = a
		}
	}
}

func NewDispatcher(roster *Roster, history *HistoryStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		roster:    roster,
		history:   history,
		publisher: nopPublisher{},
		speaker:   nopSpeaker{},
		animator:  nopAnimator{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InProgress reports whether a turn currently holds the guard.
func (d *Dispatcher) InProgress() bool {
	return d.inProgress.Load()
}

// RunTurn asks agent id for its next reply. On success the reply is
// broadcast to every history, published, voiced and animated. On failure
// an error event is published and history is left unchanged.
func (d *Dispatcher) RunTurn(ctx context.Context, id model.AgentID) TurnOutcome {
	if !d.inProgress.CompareAndSwap(false, true) {
		return TurnOutcome{Agent: id, Err: ErrTurnInProgress}
	}
	defer d.inProgress.Store(false)

	out := d.runTurn(ctx, id)
	if out.Err != nil {
		logx.WithContext(ctx).Errorw("turn failed",
			logx.Field("agent", int(id)),
			logx.Field("error", out.Err.Error()))
		d.publisher.Publish(Event{Type: EventError, Error: ErrorFrame(id, out.Err)})
	}
	return out
}

func (d *Dispatcher) runTurn(ctx context.Context, id model.AgentID) TurnOutcome {
	agent, adapter, err := d.roster.Bind(id)
	if err != nil {
		return TurnOutcome{Agent: id, Err: err}
	}
	history, err := d.history.Get(id)
	if err != nil {
		return TurnOutcome{Agent: id, Err: err}
	}

	start := time.Now()
	reply, err := adapter.Respond(ctx, &provider.TurnRequest{Agent: agent, History: history})
	if err != nil {
		return TurnOutcome{Agent: id, Err: err}
	}
	if err := d.history.Append(reply); err != nil {
		return TurnOutcome{Agent: id, Err: err}
	}

	logx.WithContext(ctx).Infow("turn completed",
		logx.Field("agent", int(id)),
		logx.Field("provider", agent.Provider),
		logx.Field("model", agent.Model),
		logx.Field("duration", time.Since(start).String()))

	d.publisher.Publish(Event{Type: EventMessage, Message: reply})
	d.animator.Trigger(id, true)
	d.speaker.Speak(SpeakRequest{
		Agent: id,
		Voice: agent.Voice,
		Text:  reply.Content,
		Done: func() {
			d.animator.Trigger(id, false)
		},
	})
	return TurnOutcome{Agent: id, Message: reply}
}
