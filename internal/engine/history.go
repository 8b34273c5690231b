package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

// Backup backends
const (
	BackupFile   = "file"
	BackupSQLite = "sqlite"
	BackupNone   = "none"
)

// OpenBackup creates the backend named by kind. dsn is only used by sqlite
// and defaults to history.db inside dir.
func OpenBackup(kind, dir, dsn string) (Backup, error) {
	switch kind {
	case "", BackupFile:
		b, err := NewFileBackup(dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackupSQLite:
		if dsn == "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
			dsn = filepath.Join(dir, "history.db")
		}
		b, err := NewSQLiteBackup(dsn)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackupNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", kind)
	}
}

// HistoryStore keeps every agent's view of the conversation. Appends are
// broadcast: each message lands in all views or in none.
type HistoryStore struct {
	mu         sync.RWMutex
	ids        []model.AgentID
	personas   map[model.AgentID]*model.Message
	views      map[model.AgentID][]model.Entry
	transcript []*model.Message
	backup     Backup
}

// NewHistoryStore builds empty histories for agents. backup may be nil.
func NewHistoryStore(agents []model.Agent, backup Backup) *HistoryStore {
	h := &HistoryStore{
		personas: make(map[model.AgentID]*model.Message, len(agents)),
		views:    make(map[model.AgentID][]model.Entry, len(agents)),
		backup:   backup,
	}
	for _, a := range agents {
		h.ids = append(h.ids, a.ID)
		h.personas[a.ID] = &model.Message{
			Role:        model.RoleSystem,
			Speaker:     a.ID,
			SpeakerName: a.Name,
			Content:     a.Persona,
		}
		h.views[a.ID] = nil
	}
	return h
}

// Load replaces in-memory state with what the backup holds.
func (h *HistoryStore) Load() error {
	if h.backup == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	loaded, err := h.backup.Load(h.ids)
	if err != nil {
		return err
	}
	var longest []model.Entry
	for _, id := range h.ids {
		h.views[id] = loaded[id]
		if len(loaded[id]) > len(longest) {
			longest = loaded[id]
		}
	}
	h.transcript = h.transcript[:0]
	for _, e := range longest {
		h.transcript = append(h.transcript, e.Message)
	}
	return nil
}

// relabel gives the role msg has from agent id's point of view.
func relabel(id model.AgentID, msg *model.Message) string {
	if msg.Speaker == id && msg.Role == model.RoleAssistant {
		return model.RoleAssistant
	}
	return model.RoleUser
}

// Append broadcasts msg to every agent. The durable backup is written
// before memory changes; if it fails nothing is recorded anywhere.
func (h *HistoryStore) Append(msg *model.Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries := make([]AgentEntry, 0, len(h.ids))
	for _, id := range h.ids {
		entries = append(entries, AgentEntry{Agent: id, Entry: model.Entry{Role: relabel(id, msg), Message: msg}})
	}
	if h.backup != nil {
		if err := h.backup.Append(entries); err != nil {
			return fmt.Errorf("persist history: %w", err)
		}
	}
	for _, ae := range entries {
		h.views[ae.Agent] = append(h.views[ae.Agent], ae.Entry)
	}
	h.transcript = append(h.transcript, msg)
	return nil
}

// Get returns agent id's history with the persona prepended. The returned
// slice is a copy and safe to use after later appends.
func (h *HistoryStore) Get(id model.AgentID) (model.ConversationHistory, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	persona, ok := h.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	view := h.views[id]
	out := make(model.ConversationHistory, 0, len(view)+1)
	out = append(out, model.Entry{Role: model.RoleSystem, Message: persona})
	return append(out, view...), nil
}

// Len is the number of broadcast messages.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.transcript)
}

// Transcript returns every broadcast message in order.
func (h *HistoryStore) Transcript() []*model.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*model.Message, len(h.transcript))
	copy(out, h.transcript)
	return out
}

// Reset clears memory and the durable logs.
func (h *HistoryStore) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.backup != nil {
		if err := h.backup.Reset(); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
	}
	for _, id := range h.ids {
		h.views[id] = nil
	}
	h.transcript = nil
	return nil
}

func (h *HistoryStore) Close() error {
	if h.backup == nil {
		return nil
	}
	return h.backup.Close()
}
