package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/unclewu3242592726/tritalk/pkg/model"
	_ "modernc.org/sqlite"
)

const historySchema = `CREATE TABLE IF NOT EXISTS history (
	agent INTEGER NOT NULL,
	seq   INTEGER NOT NULL,
	entry TEXT    NOT NULL,
	PRIMARY KEY (agent, seq)
)`

// SQLiteBackup stores every agent's log in one SQLite table. A broadcast
// append is a single transaction.
type SQLiteBackup struct {
	db *sql.DB
}

func NewSQLiteBackup(path string) (*SQLiteBackup, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps transactions from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &SQLiteBackup{db: db}, nil
}

func (b *SQLiteBackup) Append(entries []AgentEntry) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO history (agent, seq, entry)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM history WHERE agent = ?), 0) + 1, ?)`
	for _, ae := range entries {
		data, err := json.Marshal(ae.Entry)
		if err != nil {
			return fmt.Errorf("encode entry for agent %d: %w", ae.Agent, err)
		}
		if _, err := tx.Exec(insert, int(ae.Agent), int(ae.Agent), string(data)); err != nil {
			return fmt.Errorf("insert entry for agent %d: %w", ae.Agent, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *SQLiteBackup) Load(ids []model.AgentID) (map[model.AgentID][]model.Entry, error) {
	out := make(map[model.AgentID][]model.Entry, len(ids))
	for _, id := range ids {
		rows, err := b.db.Query("SELECT entry FROM history WHERE agent = ? ORDER BY seq", int(id))
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		var entries []model.Entry
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan failed: %w", err)
			}
			var e model.Entry
			if err := json.Unmarshal([]byte(raw), &e); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decode entry for agent %d: %w", id, err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rows iteration error: %w", err)
		}
		rows.Close()
		out[id] = entries
	}
	return out, nil
}

func (b *SQLiteBackup) Reset() error {
	if _, err := b.db.Exec("DELETE FROM history"); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	return nil
}

func (b *SQLiteBackup) Close() error {
	return b.db.Close()
}
