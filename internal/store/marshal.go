package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/tokenstream/internal/ir"
)

// streamRow is the flattened column form of ir.Stream.
type streamRow struct {
	status   string
	start    int64
	stop     int64
	timeLeft int64
	pausedAt int64
}

func flattenState(st ir.State) (streamRow, error) {
	switch st := st.(type) {
	case ir.Active:
		return streamRow{status: "active", start: st.Start, stop: st.Stop}, nil
	case ir.Paused:
		return streamRow{status: "paused", start: st.Start, stop: st.Stop, timeLeft: st.TimeLeft, pausedAt: st.PausedAt}, nil
	case ir.Terminated:
		return streamRow{status: "terminated", start: st.Start, stop: st.Stop}, nil
	default:
		return streamRow{}, fmt.Errorf("unknown stream state %T", st)
	}
}

func (r streamRow) state() (ir.State, error) {
	status, err := ir.ParseStatus(r.status)
	if err != nil {
		return nil, err
	}
	switch status {
	case ir.StatusActive:
		return ir.Active{Start: r.start, Stop: r.stop}, nil
	case ir.StatusPaused:
		return ir.Paused{Start: r.start, Stop: r.stop, TimeLeft: r.timeLeft, PausedAt: r.pausedAt}, nil
	default:
		return ir.Terminated{Start: r.start, Stop: r.stop}, nil
	}
}

type scanner interface {
	Scan(dest ...any) error
}

const streamColumns = `id, sender, recipient, token, deposit, rate, remaining, carried,
	status, start_time, stop_time, time_left, paused_at`

func scanStream(row scanner) (ir.Stream, error) {
	var (
		s                        ir.Stream
		sender, recipient, token string
		deposit, rate, remaining int64
		carried                  int64
		r                        streamRow
	)
	if err := row.Scan(&s.ID, &sender, &recipient, &token, &deposit, &rate, &remaining, &carried,
		&r.status, &r.start, &r.stop, &r.timeLeft, &r.pausedAt); err != nil {
		return ir.Stream{}, err
	}
	st, err := r.state()
	if err != nil {
		return ir.Stream{}, fmt.Errorf("stream %d: %w", s.ID, err)
	}
	s.Sender = ir.Address(sender)
	s.Recipient = ir.Address(recipient)
	s.Token = ir.Address(token)
	s.Deposit = uint64(deposit)
	s.Rate = uint64(rate)
	s.Remaining = uint64(remaining)
	s.Carried = uint64(carried)
	s.State = st
	return s, nil
}

func scanGrant(row scanner) (ir.Grant, error) {
	var (
		grantor, delegate, action string
		allowed                   bool
	)
	if err := row.Scan(&grantor, &delegate, &action, &allowed); err != nil {
		return ir.Grant{}, err
	}
	a, err := ir.ParseAction(action)
	if err != nil {
		return ir.Grant{}, err
	}
	return ir.Grant{Grantor: ir.Address(grantor), Delegate: ir.Address(delegate), Action: a, Allowed: allowed}, nil
}

// marshalEvent converts an event to JSON TEXT for the payload column.
// Uses json.Encoder with HTML escaping disabled so addresses are stored verbatim.
func marshalEvent(e ir.Event) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalEvent parses the payload column. Large integers decode exactly
// because every numeric Event field is a Go integer type.
func unmarshalEvent(data string) (ir.Event, error) {
	var e ir.Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

func nullStreamID(id ir.StreamID) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}
