// Package historydb records proof sessions and the tree each one ended with.
package historydb

import (
	"context"
	"errors"
	"strings"
	"time"

	dbmodel "itpsession/internal/db"
	"itpsession/internal/prooftree"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("session not found")

type SessionInfo struct {
	ID         string
	SourceFile string
	Command    string
	StartedAt  time.Time
}

type Entry struct {
	ID          string
	SourceFile  string
	Command     string
	Outcome     string
	NodeCount   int
	ProvedRoots int
	StartedAt   time.Time
	EndedAt     time.Time
}

// Active reports whether the session has not been finished yet.
func (e Entry) Active() bool {
	return e.EndedAt.IsZero()
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore uses a DB owned by the caller. Caller must not close the db
// while the store is in use.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Begin(ctx context.Context, info SessionInfo) error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	id := strings.TrimSpace(info.ID)
	if id == "" {
		return errors.New("session id is required")
	}
	started := info.StartedAt
	if started.IsZero() {
		started = s.now()
	}
	row := dbmodel.ProofSession{
		SessionID:  id,
		SourceFile: info.SourceFile,
		Command:    info.Command,
		StartedAt:  started.UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"source_file": row.SourceFile,
			"command":     row.Command,
			"started_at":  row.StartedAt,
			"outcome":     "",
			"ended_at":    0,
		}),
	}).Create(&row).Error
}

// Finish stores the outcome and replaces the node snapshot of session id
// in one transaction.
func (s *Store) Finish(ctx context.Context, id string, outcome string, rows []prooftree.Row) error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	ended := s.now().UTC().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&dbmodel.ProofSession{}).
			Where("session_id = ?", id).
			Updates(map[string]any{
				"outcome":      outcome,
				"node_count":   len(rows),
				"proved_roots": provedRoots(rows),
				"ended_at":     ended,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("session_id = ?", id).Delete(&dbmodel.NodeSnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		snaps := make([]dbmodel.NodeSnapshot, 0, len(rows))
		for i, row := range rows {
			snaps = append(snaps, dbmodel.NodeSnapshot{
				SessionID:     id,
				Position:      i,
				NodeID:        row.ID,
				ParentID:      row.ParentID,
				DisplayParent: row.DisplayParent,
				Name:          row.Name,
				NodeType:      row.NodeType,
				Status:        string(row.Status),
				Color:         string(row.Color),
			})
		}
		return tx.CreateInBatches(snaps, 200).Error
	})
}

func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows := make([]dbmodel.ProofSession, 0, limit)
	if err := s.db.WithContext(ctx).Order("started_at DESC").Order("session_id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toEntry(row))
	}
	return entries, nil
}

func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	if s == nil || s.db == nil {
		return Entry{}, errors.New("history store is not initialized")
	}
	var row dbmodel.ProofSession
	err := s.db.WithContext(ctx).Where("session_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return toEntry(row), nil
}

// Nodes returns the final tree of session id in pre-order.
func (s *Store) Nodes(ctx context.Context, id string) ([]prooftree.Row, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store is not initialized")
	}
	var snaps []dbmodel.NodeSnapshot
	if err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("position").Find(&snaps).Error; err != nil {
		return nil, err
	}
	rows := make([]prooftree.Row, 0, len(snaps))
	for _, snap := range snaps {
		rows = append(rows, prooftree.Row{
			ID:            snap.NodeID,
			ParentID:      snap.ParentID,
			DisplayParent: snap.DisplayParent,
			Name:          snap.Name,
			NodeType:      snap.NodeType,
			Status:        prooftree.Status(snap.Status),
			Color:         prooftree.Color(snap.Color),
		})
	}
	return rows, nil
}

func toEntry(row dbmodel.ProofSession) Entry {
	e := Entry{
		ID:          row.SessionID,
		SourceFile:  row.SourceFile,
		Command:     row.Command,
		Outcome:     row.Outcome,
		NodeCount:   row.NodeCount,
		ProvedRoots: row.ProvedRoots,
		StartedAt:   time.Unix(row.StartedAt, 0).UTC(),
	}
	if row.EndedAt > 0 {
		e.EndedAt = time.Unix(row.EndedAt, 0).UTC()
	}
	return e
}

// provedRoots counts proved rows whose parent is not part of the snapshot.
func provedRoots(rows []prooftree.Row) int {
	ids := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		ids[row.ID] = struct{}{}
	}
	n := 0
	for _, row := range rows {
		if _, ok := ids[row.ParentID]; !ok && row.Status == prooftree.Proved {
			n++
		}
	}
	return n
}
