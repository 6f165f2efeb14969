package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Address identifies an account, a token, or the ledger itself.
// The zero value is the null identifier.
type Address string

// ZeroAddress is the null identifier.
const ZeroAddress Address = ""

// IsZero reports whether a is the null identifier.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Address) String() string {
	return string(a)
}

// StreamID identifies a stream. IDs start at 1 and are never reused.
type StreamID uint64

func (id StreamID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseStreamID parses a decimal stream id.
func ParseStreamID(s string) (StreamID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream id %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid stream id %q: ids start at 1", s)
	}
	return StreamID(n), nil
}

// Amount is a token quantity in base units.
type Amount = uint64

// Timestamp is an absolute time in Unix seconds.
type Timestamp = int64

// Status is the coarse lifecycle state of a stream.
type Status int

const (
	StatusActive Status = iota + 1
	StatusPaused
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "paused":
		return StatusPaused, nil
	case "terminated":
		return StatusTerminated, nil
	default:
		return 0, fmt.Errorf("unknown stream status %q", s)
	}
}

// State is the sealed lifecycle state of a stream.
// Only Active, Paused and Terminated implement it.
type State interface {
	Status() Status
	// Window returns the most recent accrual window.
	Window() (start, stop Timestamp)
	state()
}

// Active streams accrue linearly between Start and Stop.
type Active struct {
	Start Timestamp
	Stop  Timestamp
}

func (Active) state() {}
func (Active) Status() Status { return StatusActive }
func (a Active) Window() (start, stop Timestamp) { return a.Start, a.Stop }

// Paused streams accrue nothing. TimeLeft is the portion of the
// interrupted window (Start, Stop) restored on resume.
type Paused struct {
	Start    Timestamp
	Stop     Timestamp
	TimeLeft int64
	PausedAt Timestamp
}

func (Paused) state() {}
func (Paused) Status() Status { return StatusPaused }
func (p Paused) Window() (start, stop Timestamp) { return p.Start, p.Stop }

// Terminated streams are read-only.
type Terminated struct {
	Start Timestamp
	Stop  Timestamp
}

func (Terminated) state() {}
func (Terminated) Status() Status { return StatusTerminated }
func (t Terminated) Window() (start, stop Timestamp) { return t.Start, t.Stop }

// Stream is the ledger record for one payment stream.
type Stream struct {
	ID        StreamID `json:"id"`
	Sender    Address  `json:"sender"`
	Recipient Address  `json:"recipient"`
	Token     Address  `json:"token"`

	// Deposit is the quantity committed at creation. Immutable.
	Deposit Amount `json:"deposit"`

	// Rate is floor(Deposit / (stop - start)) at creation. Immutable.
	Rate Amount `json:"rate"`

	// Remaining is the quantity still held by the ledger.
	Remaining Amount `json:"remaining"`

	// Carried is the quantity vested in windows before the current one.
	Carried Amount `json:"carried"`

	State State `json:"-"`
}

// Status returns the lifecycle status, or 0 for a record without state.
func (s Stream) Status() Status {
	if s.State == nil {
		return 0
	}
	return s.State.Status()
}

// IsActive reports whether the stream is currently accruing.
func (s Stream) IsActive() bool {
	return s.Status() == StatusActive
}

// Disbursed is the quantity already paid out of the stream.
func (s Stream) Disbursed() Amount {
	return s.Deposit - s.Remaining
}

// Window returns the most recent accrual window.
func (s Stream) Window() (start, stop Timestamp) {
	if s.State == nil {
		return 0, 0
	}
	return s.State.Window()
}

// Terminate returns the terminated form of s.State, keeping the window.
func (s Stream) Terminate() State {
	start, stop := s.Window()
	return Terminated{Start: start, Stop: stop}
}

// Grant is one capability record: Grantor lets Delegate perform Action
// on its behalf.
type Grant struct {
	Grantor  Address `json:"grantor"`
	Delegate Address `json:"delegate"`
	Action   Action  `json:"action"`
	Allowed  bool    `json:"allowed"`
}
