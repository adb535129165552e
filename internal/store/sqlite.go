package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/zhouzirui/weibo-seed/internal/graph"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    dataset_path TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    summary TEXT NOT NULL  -- JSON
);

CREATE TABLE IF NOT EXISTS run_agents (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    agent_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    dataset_id TEXT NOT NULL,
    profile TEXT NOT NULL,  -- JSON
    system_prompt TEXT,
    actions TEXT,           -- JSON array
    PRIMARY KEY (run_id, agent_id)
);

CREATE TABLE IF NOT EXISTS follow_edges (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    source INTEGER NOT NULL,
    target INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_follow_edges_source ON follow_edges(run_id, source);
`

// SQLiteStore persists runs in a SQLite database.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// SaveRun stores run, replacing any run with the same id.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return ErrRunIDRequired
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, dataset_path, started_at, finished_at, summary) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.DatasetPath, formatTime(run.StartedAt), formatTime(run.FinishedAt), string(summary)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, p := range run.Personas {
		profile, err := json.Marshal(p.Profile)
		if err != nil {
			return fmt.Errorf("failed to encode profile of agent %d: %w", p.AgentID, err)
		}
		actions, err := json.Marshal(p.Actions)
		if err != nil {
			return fmt.Errorf("failed to encode actions of agent %d: %w", p.AgentID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_agents (run_id, agent_id, user_id, dataset_id, profile, system_prompt, actions)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, p.AgentID, p.UserID, p.DatasetID, string(profile), p.SystemPrompt, string(actions)); err != nil {
			return fmt.Errorf("failed to insert agent %d: %w", p.AgentID, err)
		}
	}

	for i, e := range run.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO follow_edges (run_id, seq, source, target) VALUES (?, ?, ?, ?)`,
			run.ID, i, e.Source, e.Target); err != nil {
			return fmt.Errorf("failed to insert edge %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its personas and edges.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset_path, started_at, finished_at, summary FROM runs WHERE id = ?`, id)
	info, err := scanRunInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run := Run{RunInfo: info}

	if run.Personas, err = s.personas(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Edges, err = s.edges(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *SQLiteStore) personas(ctx context.Context, runID string) ([]Persona, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, user_id, dataset_id, profile, system_prompt, actions
		 FROM run_agents WHERE run_id = ? ORDER BY agent_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var out []Persona
	for rows.Next() {
		var (
			p       Persona
			profile string
			prompt  sql.NullString
			actions sql.NullString
		)
		if err := rows.Scan(&p.AgentID, &p.UserID, &p.DatasetID, &profile, &prompt, &actions); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		if err := json.Unmarshal([]byte(profile), &p.Profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile of agent %d: %w", p.AgentID, err)
		}
		p.SystemPrompt = prompt.String
		if actions.Valid && actions.String != "" {
			if err := json.Unmarshal([]byte(actions.String), &p.Actions); err != nil {
				return nil, fmt.Errorf("failed to decode actions of agent %d: %w", p.AgentID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) edges(ctx context.Context, runID string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target FROM follow_edges WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_path, started_at, finished_at, summary FROM runs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunInfo, 0)
	for rows.Next() {
		info, err := scanRunInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(out)
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRunInfo(row scanner) (RunInfo, error) {
	var (
		info              RunInfo
		started, finished string
		summary           string
	)
	if err := row.Scan(&info.ID, &info.DatasetPath, &started, &finished, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunInfo{}, err
		}
		return RunInfo{}, fmt.Errorf("failed to scan run: %w", err)
	}

	var err error
	if info.StartedAt, err = parseTime(started); err != nil {
		return RunInfo{}, err
	}
	if info.FinishedAt, err = parseTime(finished); err != nil {
		return RunInfo{}, err
	}
	if err := json.Unmarshal([]byte(summary), &info.Summary); err != nil {
		return RunInfo{}, fmt.Errorf("failed to decode summary of run %s: %w", info.ID, err)
	}
	return info, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
