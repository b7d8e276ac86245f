// Package store persists completed pipeline runs. The relational store keeps
// one request row plus one row per stage result; the vector store keeps
// embedding-ready text blobs; snapshots keep the full state JSON in object
// storage. All sinks are best-effort collaborators of the Recorder.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lossreview/internal/pipeline"
)

// Store keeps analysis runs in Postgres, falling back to an in-process map
// when no DSN is configured. Reads in database mode go through an LRU cache.
type Store struct {
	db *sql.DB

	mu   sync.RWMutex
	byID map[string]pipeline.State

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, pipeline.State]
}

// New returns a memory-backed store.
func New() *Store {
	return &Store{byID: make(map[string]pipeline.State)}
}

// NewPostgres opens a Postgres-backed store over the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, pipeline.State](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS analysis_requests (
  request_id TEXT PRIMARY KEY,
  ticker TEXT NOT NULL DEFAULT '',
  buy_date TEXT NOT NULL DEFAULT '',
  sell_date TEXT NOT NULL DEFAULT '',
  decision_basis TEXT NOT NULL DEFAULT '',
  degraded TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS analysis_results (
  id SERIAL PRIMARY KEY,
  request_id TEXT NOT NULL,
  stage TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  UNIQUE (request_id, stage)
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_request_id ON analysis_results (request_id);
`)
	})
	return s.schemaErr
}

// stagePayloads flattens the non-nil stage outputs of a state.
func stagePayloads(st *pipeline.State) map[string]any {
	out := map[string]any{}
	if st.Payloads != nil {
		out[pipeline.KeyPayloads] = st.Payloads
	}
	if st.Technical != nil {
		out[pipeline.KeyTechnical] = st.Technical
	}
	if st.News != nil {
		out[pipeline.KeyNews] = st.News
	}
	if st.Causes != nil {
		out[pipeline.KeyCauses] = st.Causes
	}
	if st.MarketContext != nil {
		out[pipeline.KeyMarketContext] = st.MarketContext
	}
	if st.BehaviorInput != nil {
		out[pipeline.KeyBehaviorInput] = st.BehaviorInput
	}
	if st.Behavior != nil {
		out[pipeline.KeyBehavior] = st.Behavior
	}
	if st.Report != nil {
		out[pipeline.KeyReport] = st.Report
	}
	if st.Reply != nil {
		out[pipeline.KeyReply] = st.Reply
	}
	return out
}

// SaveRun persists a completed run.
func (s *Store) SaveRun(ctx context.Context, st *pipeline.State) error {
	if st == nil || strings.TrimSpace(st.RequestID) == "" {
		return fmt.Errorf("store: state without request id")
	}
	if s.db == nil {
		s.mu.Lock()
		s.byID[st.RequestID] = *st
		s.mu.Unlock()
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO analysis_requests (request_id, ticker, buy_date, sell_date, decision_basis, degraded)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (request_id) DO UPDATE SET degraded = EXCLUDED.degraded`,
		st.RequestID, st.Input.Ticker, st.Input.BuyDate, st.Input.SellDate,
		st.Input.DecisionBasis, strings.Join(st.Degraded, "; "),
	); err != nil {
		return err
	}

	for stage, payload := range stagePayloads(st) {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO analysis_results (request_id, stage, payload)
VALUES ($1, $2, $3)
ON CONFLICT (request_id, stage) DO UPDATE SET payload = EXCLUDED.payload`,
			st.RequestID, stage, b,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.cache.Add(st.RequestID, *st)
	return nil
}

// GetRun loads a run by request id.
func (s *Store) GetRun(ctx context.Context, requestID string) (pipeline.State, bool) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return pipeline.State{}, false
	}
	if s.db == nil {
		s.mu.RLock()
		st, ok := s.byID[requestID]
		s.mu.RUnlock()
		return st, ok
	}
	if st, ok := s.cache.Get(requestID); ok {
		return st, true
	}
	if err := s.ensureSchema(); err != nil {
		return pipeline.State{}, false
	}

	var st pipeline.State
	row := s.db.QueryRowContext(ctx, `
SELECT request_id, ticker, buy_date, sell_date, decision_basis, degraded
FROM analysis_requests WHERE request_id = $1`, requestID)
	var degraded string
	if err := row.Scan(&st.RequestID, &st.Input.Ticker, &st.Input.BuyDate,
		&st.Input.SellDate, &st.Input.DecisionBasis, &degraded); err != nil {
		return pipeline.State{}, false
	}
	if degraded != "" {
		st.Degraded = strings.Split(degraded, "; ")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, payload FROM analysis_results WHERE request_id = $1`, requestID)
	if err != nil {
		return pipeline.State{}, false
	}
	defer rows.Close()
	for rows.Next() {
		var stage string
		var payload []byte
		if err := rows.Scan(&stage, &payload); err != nil {
			return pipeline.State{}, false
		}
		if err := attachStage(&st, stage, payload); err != nil {
			return pipeline.State{}, false
		}
	}
	if err := rows.Err(); err != nil {
		return pipeline.State{}, false
	}
	s.cache.Add(requestID, st)
	return st, true
}

func attachStage(st *pipeline.State, stage string, payload []byte) error {
	target := map[string]any{
		pipeline.KeyPayloads:      &st.Payloads,
		pipeline.KeyTechnical:     &st.Technical,
		pipeline.KeyNews:          &st.News,
		pipeline.KeyCauses:        &st.Causes,
		pipeline.KeyMarketContext: &st.MarketContext,
		pipeline.KeyBehaviorInput: &st.BehaviorInput,
		pipeline.KeyBehavior:      &st.Behavior,
		pipeline.KeyReport:        &st.Report,
		pipeline.KeyReply:         &st.Reply,
	}[stage]
	if target == nil {
		return nil // unknown stage rows are skipped, not fatal
	}
	return json.Unmarshal(payload, target)
}
