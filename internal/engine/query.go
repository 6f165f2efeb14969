package engine

import (
	"github.com/roach88/tokenstream/internal/accrual"
	"github.com/roach88/tokenstream/internal/ir"
)

// BasicInfo is the static view of a stream.
type BasicInfo struct {
	ID        ir.StreamID `json:"id"`
	Sender    ir.Address  `json:"sender"`
	Recipient ir.Address  `json:"recipient"`
	Token     ir.Address  `json:"token"`
	Deposit   ir.Amount   `json:"deposit"`
	Remaining ir.Amount   `json:"remaining"`
	Status    string      `json:"status"`
}

// TimeInfo is the time-dependent view of a stream at At.
type TimeInfo struct {
	ID           ir.StreamID  `json:"id"`
	At           ir.Timestamp `json:"at"`
	Start        ir.Timestamp `json:"start"`
	Stop         ir.Timestamp `json:"stop"`
	Rate         ir.Amount    `json:"rate"`
	Withdrawable ir.Amount    `json:"withdrawable"`
	TimeLeft     int64        `json:"time_left"`
	Status       string       `json:"status"`
}

// Stream returns a snapshot of one stream.
func (e *Engine) Stream(id ir.StreamID) (ir.Stream, error) {
	return e.ledger.Get(id)
}

// Streams returns snapshots of all streams ordered by id.
func (e *Engine) Streams() []ir.Stream {
	return e.ledger.List()
}

// BasicInfo returns the parties and balances of a stream.
func (e *Engine) BasicInfo(id ir.StreamID) (BasicInfo, error) {
	s, err := e.ledger.Get(id)
	if err != nil {
		return BasicInfo{}, err
	}
	return BasicInfo{
		ID:        s.ID,
		Sender:    s.Sender,
		Recipient: s.Recipient,
		Token:     s.Token,
		Deposit:   s.Deposit,
		Remaining: s.Remaining,
		Status:    s.Status().String(),
	}, nil
}

// TimeInfo returns the window, rate and withdrawable amount of a stream now.
// For a paused stream the window is the interrupted one and TimeLeft is
// what a resume would restore.
func (e *Engine) TimeInfo(id ir.StreamID) (TimeInfo, error) {
	s, err := e.ledger.Get(id)
	if err != nil {
		return TimeInfo{}, err
	}
	now := unix(e.clock)
	w, err := accrual.Withdrawable(s, now)
	if err != nil {
		return TimeInfo{}, err
	}

	start, stop := s.Window()
	info := TimeInfo{
		ID:           s.ID,
		At:           now,
		Start:        start,
		Stop:         stop,
		Rate:         s.Rate,
		Withdrawable: w,
		Status:       s.Status().String(),
	}
	switch st := s.State.(type) {
	case ir.Active:
		info.TimeLeft = accrual.TimeLeft(s, now)
	case ir.Paused:
		info.TimeLeft = st.TimeLeft
	}
	return info, nil
}
