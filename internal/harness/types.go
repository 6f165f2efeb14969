package harness

import "github.com/roach88/tokenstream/internal/store"

// StepOutcome records what one step did.
type StepOutcome struct {
	Index int    `json:"index"`
	Op    string `json:"op"`
	At    int64  `json:"at"`

	// Code is the error code, empty on success.
	Code string `json:"code,omitempty"`

	Stream     uint64 `json:"stream,omitempty"`
	Amount     uint64 `json:"amount,omitempty"`
	Refund     uint64 `json:"refund,omitempty"`
	Terminated bool   `json:"terminated,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	Steps []StepOutcome `json:"steps"`

	// Trace is the committed audit log in seq order.
	Trace []store.LoggedEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Trace:  []store.LoggedEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
