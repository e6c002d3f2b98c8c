package main

import (
	"context"

	"itpsession/internal/historydb"
	"itpsession/internal/prooftree"
	"itpsession/internal/session"
)

// historyRecorder stores session lifecycles in the history database.
type historyRecorder struct {
	store *historydb.Store
}

func (r *historyRecorder) Begin(ctx context.Context, info session.Info) error {
	return r.store.Begin(ctx, historydb.SessionInfo{
		ID:         info.ID,
		SourceFile: info.SourceFile,
		Command:    info.Command,
		StartedAt:  info.StartedAt,
	})
}

func (r *historyRecorder) Finish(ctx context.Context, id string, outcome session.Outcome, rows []prooftree.Row) error {
	return r.store.Finish(ctx, id, string(outcome), rows)
}
