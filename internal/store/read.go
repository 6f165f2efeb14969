package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
)

// LoggedEvent is an audit event with its chain hashes.
type LoggedEvent struct {
	ir.Event
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// EventFilter narrows Events. Zero fields match everything.
type EventFilter struct {
	StreamID ir.StreamID
	Kind     ir.EventKind
	AfterSeq int64
	Limit    int
}

// Load reads the state an engine restores from.
func (s *Store) Load(ctx context.Context) (engine.Snapshot, error) {
	streams, err := s.Streams(ctx)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("load: %w", err)
	}
	grants, err := s.Grants(ctx)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("load: %w", err)
	}

	var lastID int64
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_stream_id'`).Scan(&lastID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, fmt.Errorf("load: last stream id: %w", err)
	}

	return engine.Snapshot{Streams: streams, Grants: grants, LastID: ir.StreamID(lastID)}, nil
}

// Stream reads one stream row.
func (s *Store) Stream(ctx context.Context, id ir.StreamID) (ir.Stream, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = ?`, int64(id))
	st, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Stream{}, ir.StreamError(ir.CodeNotFound, id, "no such stream")
	}
	if err != nil {
		return ir.Stream{}, fmt.Errorf("read stream %d: %w", id, err)
	}
	return st, nil
}

// Streams returns every stream ordered by id.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) Streams(ctx context.Context) ([]ir.Stream, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+streamColumns+` FROM streams ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	streams := []ir.Stream{}
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
	}
	return streams, nil
}

// Grants returns every recorded triple, revoked ones included.
func (s *Store) Grants(ctx context.Context) ([]ir.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT grantor, delegate, action, allowed
		FROM grants
		ORDER BY grantor COLLATE BINARY ASC, delegate COLLATE BINARY ASC, action ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	grants := []ir.Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

// Events returns audit events matching f, ORDER BY seq ASC.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]LoggedEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.StreamID != 0 {
		where = append(where, "stream_id = ?")
		args = append(args, int64(f.StreamID))
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := `SELECT seq, payload, prev_hash, hash FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []LoggedEvent{}
	for rows.Next() {
		le, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, le)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest event seq, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEvent(row scanner) (LoggedEvent, error) {
	var (
		seq     int64
		payload string
		le      LoggedEvent
	)
	if err := row.Scan(&seq, &payload, &le.PrevHash, &le.Hash); err != nil {
		return LoggedEvent{}, fmt.Errorf("scan event: %w", err)
	}
	e, err := unmarshalEvent(payload)
	if err != nil {
		return LoggedEvent{}, fmt.Errorf("event %d: %w", seq, err)
	}
	if e.Seq != seq {
		return LoggedEvent{}, fmt.Errorf("event %d: payload carries seq %d", seq, e.Seq)
	}
	le.Event = e
	return le, nil
}
