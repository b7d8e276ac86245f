package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lossreview/internal/llm"
	"lossreview/internal/pipeline"
)

// VectorStore writes one embedding-ready text blob per stage result into a
// pgvector table, so past reviews can be retrieved by similarity later.
type VectorStore struct {
	db  *sql.DB
	emb llm.Embedder

	schemaOnce sync.Once
	schemaErr  error
}

func NewVector(dsn string, emb llm.Embedder) (*VectorStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &VectorStore{db: db, emb: emb}, nil
}

func (v *VectorStore) Close() error {
	if v == nil || v.db == nil {
		return nil
	}
	return v.db.Close()
}

func (v *VectorStore) ensureSchema() error {
	v.schemaOnce.Do(func() {
		_, v.schemaErr = v.db.Exec(fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS analysis_embeddings (
  id SERIAL PRIMARY KEY,
  request_id TEXT NOT NULL,
  stage TEXT NOT NULL,
  content TEXT NOT NULL,
  embedding vector(%d),
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  UNIQUE (request_id, stage)
);
CREATE INDEX IF NOT EXISTS idx_analysis_embeddings_request_id ON analysis_embeddings (request_id);
`, v.emb.Dimensions()))
	})
	return v.schemaErr
}

// textBlob is one embeddable unit of a run.
type textBlob struct {
	Stage   string
	Content string
}

// textBlobs flattens a run's stage outputs into prose blobs. The user's
// free-text rationale is indexed as its own blob.
func textBlobs(st *pipeline.State) []textBlob {
	var blobs []textBlob
	add := func(stage string, parts ...string) {
		var kept []string
		for _, p := range parts {
			if strings.TrimSpace(p) != "" {
				kept = append(kept, strings.TrimSpace(p))
			}
		}
		if len(kept) > 0 {
			blobs = append(blobs, textBlob{Stage: stage, Content: strings.Join(kept, "\n")})
		}
	}

	add("rationale", st.Input.DecisionBasis)
	if t := st.Technical; t != nil {
		add(pipeline.KeyTechnical, t.Summary, strings.Join(t.RiskNotes, "\n"))
	}
	if n := st.News; n != nil {
		add(pipeline.KeyNews, n.Summary, n.FactCheck.Explanation)
	}
	if c := st.Causes; c != nil {
		add(pipeline.KeyCauses, c.OneLineSummary, c.DetailedExplanation)
	}
	if b := st.Behavior; b != nil {
		add(pipeline.KeyBehavior, b.InvestorCharacter.Description,
			b.CognitiveAnalysis.PrimaryBias.Name+": "+b.CognitiveAnalysis.PrimaryBias.Description)
	}
	if r := st.Report; r != nil {
		add(pipeline.KeyReport, r.CustomLearningPath.PathSummary, r.InvestmentAdvisor.AdvisorMessage)
	}
	return blobs
}

// vectorLiteral renders a float32 slice in pgvector input syntax.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// IndexRun embeds and stores every blob of a completed run.
func (v *VectorStore) IndexRun(ctx context.Context, st *pipeline.State) error {
	if st == nil || strings.TrimSpace(st.RequestID) == "" {
		return fmt.Errorf("store: state without request id")
	}
	if err := v.ensureSchema(); err != nil {
		return err
	}
	blobs := textBlobs(st)
	if len(blobs) == 0 {
		return nil
	}
	texts := make([]string, len(blobs))
	for i, b := range blobs {
		texts[i] = b.Content
	}
	vecs, err := v.emb.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(blobs) {
		return fmt.Errorf("store: %d embeddings for %d blobs", len(vecs), len(blobs))
	}
	for i, b := range blobs {
		if _, err := v.db.ExecContext(ctx, `
INSERT INTO analysis_embeddings (request_id, stage, content, embedding)
VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (request_id, stage) DO UPDATE
SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			st.RequestID, b.Stage, b.Content, vectorLiteral(vecs[i]),
		); err != nil {
			return err
		}
	}
	return nil
}
