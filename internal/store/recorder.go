package store

import (
	"context"

	"go.uber.org/zap"

	"lossreview/internal/pipeline"
	"lossreview/internal/review"
)

// Recorder fans a completed run out to every configured sink. Writes are
// best-effort: a sink failure is logged and swallowed, never surfaced to the
// pipeline's caller. Nil sinks are skipped.
type Recorder struct {
	Relational *Store
	Vector     *VectorStore
	Snapshots  *SnapshotStore
	Cache      *Cache
	Log        *zap.Logger
}

func NewRecorder(rel *Store, vec *VectorStore, snap *SnapshotStore, cache *Cache, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{Relational: rel, Vector: vec, Snapshots: snap, Cache: cache, Log: log}
}

// Record persists one run to every sink.
func (r *Recorder) Record(ctx context.Context, st *pipeline.State) {
	if r == nil || st == nil {
		return
	}
	if r.Relational != nil {
		if err := r.Relational.SaveRun(ctx, st); err != nil {
			r.Log.Warn("relational sink failed", zap.String("request_id", st.RequestID), zap.Error(err))
		}
	}
	if r.Vector != nil {
		if err := r.Vector.IndexRun(ctx, st); err != nil {
			r.Log.Warn("vector sink failed", zap.String("request_id", st.RequestID), zap.Error(err))
		}
	}
	if r.Snapshots != nil {
		if err := r.Snapshots.PutRun(ctx, st); err != nil {
			r.Log.Warn("snapshot sink failed", zap.String("request_id", st.RequestID), zap.Error(err))
		}
	}
	if r.Cache != nil {
		if err := r.Cache.PutRun(ctx, st); err != nil {
			r.Log.Warn("cache sink failed", zap.String("request_id", st.RequestID), zap.Error(err))
		}
	}
}

// RecordReport archives a per-stage quality report. Best-effort, like Record.
func (r *Recorder) RecordReport(ctx context.Context, requestID, stage string, report review.QualityReport) {
	if r == nil || r.Snapshots == nil {
		return
	}
	if err := r.Snapshots.PutReport(ctx, requestID, stage, report); err != nil {
		r.Log.Warn("report snapshot failed",
			zap.String("request_id", requestID), zap.String("stage", stage), zap.Error(err))
	}
}

// Lookup loads a run, preferring the shared cache over the database.
func (r *Recorder) Lookup(ctx context.Context, requestID string) (pipeline.State, bool) {
	if r == nil {
		return pipeline.State{}, false
	}
	if r.Cache != nil {
		if st, ok, err := r.Cache.GetRun(ctx, requestID); err == nil && ok {
			return st, true
		} else if err != nil {
			r.Log.Warn("cache lookup failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	if r.Relational != nil {
		return r.Relational.GetRun(ctx, requestID)
	}
	return pipeline.State{}, false
}
