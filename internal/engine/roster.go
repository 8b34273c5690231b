package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
)

// AdapterSource resolves provider names to adapters.
type AdapterSource interface {
	GetLLM(name string) (provider.Adapter, error)
}

// Roster owns the mutable state of every agent: provider binding and the
// individual pause flag. Persona and identity never change after start.
type Roster struct {
	mu       sync.RWMutex
	agents   map[model.AgentID]*model.Agent
	order    []model.AgentID
	adapters AdapterSource
}

func NewRoster(agents []model.Agent, adapters AdapterSource) (*Roster, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents configured")
	}
	r := &Roster{
		agents:   make(map[model.AgentID]*model.Agent, len(agents)),
		adapters: adapters,
	}
	for _, a := range agents {
		if a.ID <= model.Human {
			return nil, fmt.Errorf("agent %q: id must be positive", a.Name)
		}
		if _, dup := r.agents[a.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %d", a.ID)
		}
		adapter, err := adapters.GetLLM(a.Provider)
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w: %s", a.ID, ErrUnknownProvider, a.Provider)
		}
		agent := a
		if agent.Model == "" {
			agent.Model = adapter.DefaultModel()
		}
		if agent.Name == "" {
			agent.Name = fmt.Sprintf("Agent %d", agent.ID)
		}
		r.agents[agent.ID] = &agent
		r.order = append(r.order, agent.ID)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// IDs returns agent ids in ascending order.
func (r *Roster) IDs() []model.AgentID {
	out := make([]model.AgentID, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Roster) Has(id model.AgentID) bool {
	_, ok := r.agents[id]
	return ok
}

func (r *Roster) Snapshot(id model.AgentID) (model.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return model.Agent{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return *a, nil
}

func (r *Roster) Snapshots() []model.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.agents[id])
	}
	return out
}

// SelectProvider rebinds an agent. The change applies from the next turn;
// a call already in flight keeps the adapter it was dispatched with.
func (r *Roster) SelectProvider(id model.AgentID, name, modelName string) (model.Agent, error) {
	adapter, err := r.adapters.GetLLM(name)
	if err != nil {
		return model.Agent{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if modelName == "" {
		modelName = adapter.DefaultModel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return model.Agent{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	a.Provider = name
	a.Model = modelName
	return *a, nil
}

func (r *Roster) Pause(id model.AgentID) error {
	return r.setPaused(id, true)
}

func (r *Roster) Resume(id model.AgentID) error {
	return r.setPaused(id, false)
}

func (r *Roster) setPaused(id model.AgentID, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	a.Paused = paused
	return nil
}

// Eligible lists agents that may be picked automatically: not paused and
// not the excluded speaker. Pass model.Human to exclude nobody.
func (r *Roster) Eligible(exclude model.AgentID) []model.AgentID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.AgentID
	for _, id := range r.order {
		if id == exclude || r.agents[id].Paused {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Bind captures the agent and its adapter for one turn.
func (r *Roster) Bind(id model.AgentID) (model.Agent, provider.Adapter, error) {
	agent, err := r.Snapshot(id)
	if err != nil {
		return model.Agent{}, nil, err
	}
	adapter, err := r.adapters.GetLLM(agent.Provider)
	if err != nil {
		return model.Agent{}, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, agent.Provider)
	}
	return agent, adapter, nil
}
