package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

// Cause says why an agent was asked to speak.
type Cause int

const (
	CauseManualKey Cause = iota + 1
	CauseChainedFromAgent
	CauseRandomAfterHuman
)

func (c Cause) String() string {
	switch c {
	case CauseManualKey:
		return "manual"
	case CauseChainedFromAgent:
		return "chained"
	case CauseRandomAfterHuman:
		return "random_after_human"
	default:
		return "unknown"
	}
}

// Activation is a request for an agent to speak. For CauseRandomAfterHuman
// the agent is chosen when the request is applied.
type Activation struct {
	Agent model.AgentID
	Cause Cause
	From  model.AgentID
}

// TurnRunner executes one agent turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, id model.AgentID) TurnOutcome
}

type SchedulerConf struct {
	// ChainDelay is the pause between a completed turn and the chained one.
	ChainDelay time.Duration
	// MaxChainedTurns stops chaining after this many automatic turns in a
	// row. Zero means unlimited.
	MaxChainedTurns int
	QueueSize       int
}

const defaultQueueSize = 64

var errTurnAborted = errors.New("turn aborted")

type (
	manualEvent   struct{ id model.AgentID }
	humanEvent    struct{}
	pauseEvent    struct{ paused bool }
	toggleEvent   struct{}
	turnDoneEvent struct{ outcome TurnOutcome }
	chainEvent    struct {
		epoch uint64
		from  model.AgentID
	}
)

type resetEvent struct {
	erase func() error
	done  chan error
}

// Scheduler decides who speaks next. All state transitions happen on the
// goroutine running Run; callers only enqueue events.
type Scheduler struct {
	roster    *Roster
	turns     TurnRunner
	conf      SchedulerConf
	publisher Publisher
	pick      func(n int) int

	events chan any
	done   chan struct{}

	// owned by the loop goroutine
	runCtx  context.Context
	paused  bool
	active  *model.AgentID
	pending *Activation
	chained int
	epoch   uint64

	mu    sync.RWMutex
	state model.ActivationState
}

type SchedulerOption func(*Scheduler)

// WithStatePublisher receives a state event on every transition.
func WithStatePublisher(p Publisher) SchedulerOption {
	return func(s *Scheduler) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithPicker replaces the uniform random choice, mostly for tests.
func WithPicker(pick func(n int) int) SchedulerOption {
	return func(s *Scheduler) {
		if pick != nil {
			s.pick = pick
		}
	}
}

func NewScheduler(roster *Roster, turns TurnRunner, conf SchedulerConf, opts ...SchedulerOption) *Scheduler {
	if conf.QueueSize <= 0 {
		conf.QueueSize = defaultQueueSize
	}
	s := &Scheduler{
		roster:    roster,
		turns:     turns,
		conf:      conf,
		publisher: nopPublisher{},
		pick:      rand.IntN,
		events:    make(chan any, conf.QueueSize),
		done:      make(chan struct{}),
		state:     model.ActivationState{State: model.StateIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manual requests agent id to speak next.
func (s *Scheduler) Manual(id model.AgentID) error {
	if !s.roster.Has(id) {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return s.enqueue(manualEvent{id: id})
}

// HumanSpeechIngested signals that a human message was appended.
func (s *Scheduler) HumanSpeechIngested() error {
	return s.enqueue(humanEvent{})
}

// SetPaused sets the global pause flag.
func (s *Scheduler) SetPaused(paused bool) error {
	return s.enqueue(pauseEvent{paused: paused})
}

// TogglePause flips the global pause flag.
func (s *Scheduler) TogglePause() error {
	return s.enqueue(toggleEvent{})
}

// Reset runs erase on the scheduler loop while no turn is active and drops
// any pending or delayed activation, so nobody answers into the cleared
// conversation. It fails with ErrTurnInProgress while an agent speaks.
func (s *Scheduler) Reset(ctx context.Context, erase func() error) error {
	ev := resetEvent{erase: erase, done: make(chan error, 1)}
	if err := s.enqueue(ev); err != nil {
		return err
	}
	select {
	case err := <-ev.done:
		return err
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the latest published state.
func (s *Scheduler) State() model.ActivationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) enqueue(ev any) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrStopped
	default:
		return ErrQueueFull
	}
}

// post is used by internal producers that must not lose their event.
func (s *Scheduler) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run processes events until ctx is done. Turns run on their own
// goroutines and report back through the queue.
func (s *Scheduler) Run(ctx context.Context) {
	s.runCtx = ctx
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ev)
			s.publishState()
		}
	}
}

func (s *Scheduler) handle(ev any) {
	switch e := ev.(type) {
	case manualEvent:
		s.request(Activation{Agent: e.id, Cause: CauseManualKey})
	case humanEvent:
		s.request(Activation{Cause: CauseRandomAfterHuman, From: model.Human})
	case pauseEvent:
		s.setPaused(e.paused)
	case toggleEvent:
		s.setPaused(!s.paused)
	case turnDoneEvent:
		s.turnCompleted(e.outcome)
	case chainEvent:
		if e.epoch == s.epoch && !s.paused && s.active == nil {
			s.dispatch(Activation{Cause: CauseChainedFromAgent, From: e.from})
		}
	case resetEvent:
		if s.active != nil {
			e.done <- ErrTurnInProgress
			return
		}
		s.pending = nil
		s.chained = 0
		s.epoch++
		e.done <- e.erase()
	}
}

// request handles manual and post-human activations.
func (s *Scheduler) request(act Activation) {
	if s.paused {
		logx.Infof("scheduler paused, dropping %s activation", act.Cause)
		return
	}
	if s.active != nil {
		// newest request wins the single pending slot
		s.pending = &act
		return
	}
	s.epoch++
	s.chained = 0
	s.dispatch(act)
}

func (s *Scheduler) setPaused(paused bool) {
	if s.paused == paused {
		return
	}
	s.paused = paused
	s.epoch++
	if paused {
		s.pending = nil
	}
	logx.Infof("conversation paused=%v", paused)
}

func (s *Scheduler) turnCompleted(out TurnOutcome) {
	s.active = nil
	if s.paused {
		return
	}
	if s.pending != nil {
		act := *s.pending
		s.pending = nil
		s.epoch++
		s.chained = 0
		s.dispatch(act)
		return
	}
	if s.conf.MaxChainedTurns > 0 && s.chained >= s.conf.MaxChainedTurns {
		logx.Infof("chain limit of %d reached, waiting for input", s.conf.MaxChainedTurns)
		return
	}

	next := chainEvent{epoch: s.epoch, from: out.Agent}
	if s.conf.ChainDelay <= 0 {
		s.handle(next)
		return
	}
	time.AfterFunc(s.conf.ChainDelay, func() {
		s.post(next)
	})
}

// dispatch resolves the agent for act and starts its turn. With nobody
// eligible the scheduler stays idle.
func (s *Scheduler) dispatch(act Activation) {
	id := act.Agent
	switch act.Cause {
	case CauseRandomAfterHuman, CauseChainedFromAgent:
		eligible := s.roster.Eligible(act.From)
		if len(eligible) == 0 {
			logx.Infof("no eligible agent for %s activation", act.Cause)
			return
		}
		id = eligible[s.pick(len(eligible))]
	}
	if act.Cause == CauseChainedFromAgent {
		s.chained++
	}

	s.active = &id
	ctx := s.runCtx
	logx.Infow("dispatching turn",
		logx.Field("agent", int(id)),
		logx.Field("cause", act.Cause.String()))

	threading.GoSafe(func() {
		out := TurnOutcome{Agent: id, Err: errTurnAborted}
		defer func() {
			s.post(turnDoneEvent{outcome: out})
		}()
		out = s.turns.RunTurn(ctx, id)
	})
}

func (s *Scheduler) publishState() {
	st := model.ActivationState{Paused: s.paused, TurnInProgress: s.active != nil}
	switch {
	case s.paused:
		st.State = model.StatePaused
	case s.active != nil:
		st.State = model.StateDispatching
	default:
		st.State = model.StateIdle
	}
	if s.active != nil {
		id := *s.active
		st.Active = &id
	}
	if s.pending != nil && s.pending.Cause == CauseManualKey {
		id := s.pending.Agent
		st.Pending = &id
	}

	s.mu.Lock()
	changed := !sameState(s.state, st)
	s.state = st
	s.mu.Unlock()

	if changed {
		s.publisher.Publish(Event{Type: EventState, State: &st})
	}
}

func sameState(a, b model.ActivationState) bool {
	eq := func(x, y *model.AgentID) bool {
		if x == nil || y == nil {
			return x == y
		}
		return *x == *y
	}
	return a.State == b.State && a.Paused == b.Paused && a.TurnInProgress == b.TurnInProgress &&
		eq(a.Active, b.Active) && eq(a.Pending, b.Pending)
}
