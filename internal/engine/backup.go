package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
)

// AgentEntry is one line of one agent's durable log.
type AgentEntry struct {
	Agent model.AgentID
	Entry model.Entry
}

// Backup persists per-agent histories. Append must be all-or-nothing
// across the entries it is given.
type Backup interface {
	Append(entries []AgentEntry) error
	Load(ids []model.AgentID) (map[model.AgentID][]model.Entry, error)
	Reset() error
	Close() error
}

// FileBackup keeps one append-only JSON-lines log per agent.
type FileBackup struct {
	dir   string
	mu    sync.Mutex
	files map[model.AgentID]*os.File
}

func NewFileBackup(dir string) (*FileBackup, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &FileBackup{dir: dir, files: make(map[model.AgentID]*os.File)}, nil
}

// LogPath is the log file backing one agent's memory.
func (b *FileBackup) LogPath(id model.AgentID) string {
	return filepath.Join(b.dir, fmt.Sprintf("agent_%d.jsonl", int(id)))
}

func (b *FileBackup) file(id model.AgentID) (*os.File, error) {
	if f, ok := b.files[id]; ok {
		return f, nil
	}
	f, err := os.OpenFile(b.LogPath(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	b.files[id] = f
	return f, nil
}

// Append opens every target log before writing to any of them, so a crash
// after the first write leaves no log missing and Load can spot the torn
// broadcast.
func (b *FileBackup) Append(entries []AgentEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	type pending struct {
		f    *os.File
		size int64
		line []byte
	}
	batch := make([]pending, 0, len(entries))
	for _, ae := range entries {
		line, err := json.Marshal(ae.Entry)
		if err != nil {
			return fmt.Errorf("encode entry for agent %d: %w", ae.Agent, err)
		}
		f, err := b.file(ae.Agent)
		if err != nil {
			return fmt.Errorf("open log for agent %d: %w", ae.Agent, err)
		}
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat log for agent %d: %w", ae.Agent, err)
		}
		batch = append(batch, pending{f: f, size: info.Size(), line: append(line, '\n')})
	}

	rollback := func(done int) {
		for _, p := range batch[:done] {
			if err := p.f.Truncate(p.size); err != nil {
				logx.Errorf("history rollback of %s failed: %v", p.f.Name(), err)
			}
		}
	}
	for i, p := range batch {
		if _, err := p.f.Write(p.line); err != nil {
			rollback(i + 1)
			return fmt.Errorf("write log %s: %w", p.f.Name(), err)
		}
		if err := p.f.Sync(); err != nil {
			rollback(i + 1)
			return fmt.Errorf("sync log %s: %w", p.f.Name(), err)
		}
	}
	return nil
}

// Load reads every agent's log. Appends are serialized, so a crash can tear
// at most the newest broadcast: an entry at the end of a log that is missing
// from another existing log never committed and is cut off. A log that does
// not exist at all was reset and does not hold back the others.
func (b *FileBackup) Load(ids []model.AgentID) (map[model.AgentID][]model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logs := make([]*agentLog, 0, len(ids))
	for _, id := range ids {
		l, err := readLog(b.LogPath(id))
		if err != nil {
			return nil, fmt.Errorf("load history for agent %d: %w", id, err)
		}
		logs = append(logs, l)
	}
	dropUncommitted(logs)

	out := make(map[model.AgentID][]model.Entry, len(ids))
	for i, id := range ids {
		if err := logs[i].repair(); err != nil {
			return nil, fmt.Errorf("repair history for agent %d: %w", id, err)
		}
		out[id] = logs[i].entries
	}
	return out, nil
}

type agentLog struct {
	path    string
	exists  bool
	size    int64
	entries []model.Entry
	// ends[i] is the file offset just past entries[i]
	ends []int64
}

func (l *agentLog) has(id string) bool {
	for _, e := range l.entries {
		if e.Message.ID == id {
			return true
		}
	}
	return false
}

func (l *agentLog) validSize() int64 {
	if len(l.ends) == 0 {
		return 0
	}
	return l.ends[len(l.ends)-1]
}

// repair truncates the file to its last committed entry so later appends
// do not land behind a torn or orphaned line.
func (l *agentLog) repair() error {
	if !l.exists || l.size == l.validSize() {
		return nil
	}
	logx.Errorf("truncating %s from %d to %d bytes", l.path, l.size, l.validSize())
	if err := os.Truncate(l.path, l.validSize()); err != nil {
		return err
	}
	l.size = l.validSize()
	return nil
}

func dropUncommitted(logs []*agentLog) {
	committed := func(id string) bool {
		for _, l := range logs {
			if l.exists && !l.has(id) {
				return false
			}
		}
		return true
	}

	var torn []string
	for _, l := range logs {
		if n := len(l.entries); n > 0 && !committed(l.entries[n-1].Message.ID) {
			torn = append(torn, l.entries[n-1].Message.ID)
		}
	}
	for _, id := range torn {
		for _, l := range logs {
			if n := len(l.entries); n > 0 && l.entries[n-1].Message.ID == id {
				l.entries, l.ends = l.entries[:n-1], l.ends[:n-1]
			}
		}
	}
}

func readLog(path string) (*agentLog, error) {
	l := &agentLog{path: path}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	l.exists, l.size = true, info.Size()

	var offset int64
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				logx.Errorf("skipping unterminated line %d of %s", lineNo, path)
			}
			return l, nil
		}
		if err != nil {
			return nil, err
		}
		offset += int64(len(line))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e model.Entry
		if err := json.Unmarshal(line, &e); err != nil || e.Message == nil {
			// a torn write; everything before it is intact
			logx.Errorf("skipping unreadable line %d of %s: %v", lineNo, path, err)
			return l, nil
		}
		l.entries = append(l.entries, e)
		l.ends = append(l.ends, offset)
	}
}

func (b *FileBackup) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeFiles()

	matches, err := filepath.Glob(filepath.Join(b.dir, "agent_*.jsonl"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", m, err)
		}
	}
	return nil
}

func (b *FileBackup) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeFiles()
	return nil
}

func (b *FileBackup) closeFiles() {
	for id, f := range b.files {
		if err := f.Close(); err != nil {
			logx.Errorf("close history log %s: %v", f.Name(), err)
		}
		delete(b.files, id)
	}
}
