package engine

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

func first(int) int { return 0 }

func startScheduler(t *testing.T, roster *Roster, runner TurnRunner, conf SchedulerConf, opts ...SchedulerOption) *Scheduler {
	t.Helper()
	s := NewScheduler(roster, runner, conf, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s
}

func callsEqual(r *fakeRunner, want ...model.AgentID) func() bool {
	return func() bool {
		return slices.Equal(r.Calls(), want)
	}
}

func stateIs(s *Scheduler, want string) func() bool {
	return func() bool {
		return s.State().State == want
	}
}

func TestHumanMessageTriggersRandomThenChainedTurn(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 1}, WithPicker(first))

	if err := s.HumanSpeechIngested(); err != nil {
		t.Fatal(err)
	}
	// agent 1 is picked among all three, the chained turn excludes it
	waitFor(t, "two turns", callsEqual(runner, 1, 2))
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	settle(t, "turn count", callsEqual(runner, 1, 2))
}

func TestChainedTurnNeverRepeatsSpeaker(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 40})

	_ = s.Manual(1)
	waitFor(t, "chain to finish", func() bool { return len(runner.Calls()) == 41 })
	calls := runner.Calls()
	for i := 1; i < len(calls); i++ {
		if calls[i] == calls[i-1] {
			t.Fatalf("agent %d spoke twice in a row at turn %d", calls[i], i)
		}
	}
}

func TestPausedAgentIsNeverChosen(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	if err := roster.Pause(2); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 30})

	_ = s.HumanSpeechIngested()
	waitFor(t, "chain to finish", func() bool { return len(runner.Calls()) == 31 })
	if slices.Contains(runner.Calls(), 2) {
		t.Fatalf("paused agent 2 was dispatched: %v", runner.Calls())
	}
}

func TestManualActivationOfPausedAgent(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	_ = roster.Pause(2)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 1}, WithPicker(first))

	_ = s.Manual(2)
	waitFor(t, "manual turn then chain", callsEqual(runner, 2, 1))
}

func TestManualUnknownAgent(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	s := NewScheduler(roster, &fakeRunner{}, SchedulerConf{})
	if err := s.Manual(9); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("err = %v", err)
	}
}

func TestPauseDuringTurnStopsChain(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	gate := make(chan struct{})
	runner := &fakeRunner{gates: []chan struct{}{gate}}
	s := startScheduler(t, roster, runner, SchedulerConf{})

	_ = s.Manual(3)
	waitFor(t, "dispatching", stateIs(s, model.StateDispatching))
	_ = s.SetPaused(true)
	close(gate)

	waitFor(t, "paused without active turn", func() bool {
		st := s.State()
		return st.State == model.StatePaused && !st.TurnInProgress
	})
	settle(t, "turn count", callsEqual(runner, 3))
}

func TestPauseClearsPendingAndResumeDoesNotReplay(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	gate := make(chan struct{})
	runner := &fakeRunner{gates: []chan struct{}{gate}}
	s := startScheduler(t, roster, runner, SchedulerConf{})

	_ = s.Manual(1)
	waitFor(t, "dispatching", stateIs(s, model.StateDispatching))
	_ = s.Manual(3)
	waitFor(t, "pending", func() bool {
		p := s.State().Pending
		return p != nil && *p == 3
	})

	_ = s.SetPaused(true)
	waitFor(t, "pending cleared", func() bool { return s.State().Pending == nil })
	close(gate)
	waitFor(t, "paused", func() bool { return !s.State().TurnInProgress })

	_ = s.SetPaused(false)
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	settle(t, "turn count", callsEqual(runner, 1))
}

func TestNewestPendingRequestWins(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	gate, hold := make(chan struct{}), make(chan struct{})
	runner := &fakeRunner{gates: []chan struct{}{gate, hold}}
	s := startScheduler(t, roster, runner, SchedulerConf{})

	_ = s.Manual(1)
	waitFor(t, "dispatching", stateIs(s, model.StateDispatching))
	_ = s.Manual(2)
	_ = s.Manual(3)
	waitFor(t, "pending 3", func() bool {
		p := s.State().Pending
		return p != nil && *p == 3
	})
	close(gate)
	waitFor(t, "pending applied", callsEqual(runner, 1, 3))
	close(hold)
}

func TestAtMostOneTurnAtATime(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 5})

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(id model.AgentID) {
			for j := 0; j < 25; j++ {
				_ = s.Manual(id)
				_ = s.HumanSpeechIngested()
			}
			done <- struct{}{}
		}(model.AgentID(i%3 + 1))
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	if peak := runner.peak.Load(); peak != 1 {
		t.Fatalf("peak concurrent turns = %d", peak)
	}
}

func TestNoEligibleAgentStaysIdle(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	for _, id := range roster.IDs() {
		_ = roster.Pause(id)
	}
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{})

	_ = s.HumanSpeechIngested()
	settle(t, "turn count", callsEqual(runner))
	if st := s.State(); st.State != model.StateIdle {
		t.Fatalf("state = %s", st.State)
	}
}

func TestManualWhilePausedIsIgnored(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{})

	_ = s.TogglePause()
	waitFor(t, "paused", stateIs(s, model.StatePaused))
	_ = s.Manual(1)
	_ = s.HumanSpeechIngested()
	settle(t, "turn count", callsEqual(runner))

	_ = s.TogglePause()
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	settle(t, "turn count", callsEqual(runner))
}

func TestFailedTurnStillChains(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{fail: func(call int, _ model.AgentID) error {
		if call == 0 {
			return errors.New("provider down")
		}
		return nil
	}}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 1}, WithPicker(first))

	_ = s.Manual(3)
	waitFor(t, "chained after failure", callsEqual(runner, 3, 1))
}

func TestPauseCancelsDelayedChain(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{ChainDelay: 200 * time.Millisecond})

	_ = s.Manual(1)
	waitFor(t, "first turn", callsEqual(runner, 1))
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	_ = s.SetPaused(true)
	_ = s.SetPaused(false)

	time.Sleep(300 * time.Millisecond)
	if got := runner.Calls(); len(got) != 1 {
		t.Fatalf("delayed chain survived pause: %v", got)
	}
}

func TestStateEventsPublished(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	gate := make(chan struct{})
	runner := &fakeRunner{gates: []chan struct{}{gate}}
	rec := &recorder{}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 0}, WithStatePublisher(rec))

	_ = s.Manual(2)
	waitFor(t, "dispatching event", func() bool {
		for _, e := range rec.ofType(EventState) {
			if e.State.State == model.StateDispatching && e.State.Active != nil && *e.State.Active == 2 {
				return true
			}
		}
		return false
	})
	_ = s.SetPaused(true)
	close(gate)
	waitFor(t, "paused event", func() bool {
		events := rec.ofType(EventState)
		last := events[len(events)-1].State
		return last.State == model.StatePaused && !last.TurnInProgress
	})
}

func TestResetRefusedDuringTurn(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	gate := make(chan struct{})
	runner := &fakeRunner{gates: []chan struct{}{gate}}
	s := startScheduler(t, roster, runner, SchedulerConf{MaxChainedTurns: 1})

	_ = s.Manual(1)
	waitFor(t, "dispatching", stateIs(s, model.StateDispatching))
	cleared := 0
	erase := func() error {
		cleared++
		return nil
	}
	if err := s.Reset(context.Background(), erase); !errors.Is(err, ErrTurnInProgress) {
		t.Fatalf("err = %v, want ErrTurnInProgress", err)
	}
	if cleared != 0 {
		t.Fatal("history cleared while an agent was speaking")
	}
	close(gate)
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	if err := s.Reset(context.Background(), erase); err != nil {
		t.Fatal(err)
	}
	if cleared != 1 {
		t.Fatalf("cleared %d times", cleared)
	}
}

func TestResetDropsDelayedChain(t *testing.T) {
	roster, _, _ := newTestRoster(t)
	runner := &fakeRunner{}
	s := startScheduler(t, roster, runner, SchedulerConf{ChainDelay: 200 * time.Millisecond})

	_ = s.Manual(1)
	waitFor(t, "first turn", callsEqual(runner, 1))
	waitFor(t, "idle", stateIs(s, model.StateIdle))
	if err := s.Reset(context.Background(), func() error { return nil }); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := runner.Calls(); len(got) != 1 {
		t.Fatalf("chained turn ran after reset: %v", got)
	}
}
