package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
)

// DefaultEpoch anchors relative scenario times when epoch is omitted.
const DefaultEpoch int64 = 1_700_000_000

// Scenario defines one end-to-end run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Ledger is the account holding deposits. Default: engine.DefaultLedgerAddress.
	Ledger string `yaml:"ledger,omitempty"`

	// Epoch is the absolute Unix time that relative times count from.
	Epoch int64 `yaml:"epoch,omitempty"`

	Policy PolicySpec `yaml:"policy,omitempty"`

	// Balances fund accounts before the first step.
	Balances []Funding `yaml:"balances"`

	// Steps run in order; their at values must not decrease.
	Steps []Step `yaml:"steps"`

	// Assertions check the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// PolicySpec mirrors engine.Policy in YAML form.
type PolicySpec struct {
	SweepDust            bool   `yaml:"sweep_dust,omitempty"`
	Resume               string `yaml:"resume,omitempty"`
	RecipientResumeDelay int64  `yaml:"recipient_resume_delay,omitempty"`
}

// Funding credits an account before the run.
type Funding struct {
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
	Amount  uint64 `yaml:"amount"`
}

// Step is one engine operation at one point in time.
type Step struct {
	At     int64  `yaml:"at"`
	Op     string `yaml:"op"`
	Caller string `yaml:"caller"`

	// create, create_on_behalf
	Sender    string `yaml:"sender,omitempty"`
	Recipient string `yaml:"recipient,omitempty"`
	Token     string `yaml:"token,omitempty"`
	Deposit   uint64 `yaml:"deposit,omitempty"`
	Start     int64  `yaml:"start,omitempty"`
	Stop      int64  `yaml:"stop,omitempty"`

	// withdraw, cancel, pause, resume and their delegated forms
	Stream uint64 `yaml:"stream,omitempty"`
	Amount uint64 `yaml:"amount,omitempty"`

	// grant, revoke
	Delegate string `yaml:"delegate,omitempty"`
	Action   string `yaml:"action,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step's outcome. Unset fields are not checked.
type Expect struct {
	// Error is the expected error code, e.g. UNAUTHORIZED.
	Error string `yaml:"error,omitempty"`

	// Stream is the id a create must return.
	Stream uint64 `yaml:"stream,omitempty"`

	// Amount is what reached the recipient.
	Amount *uint64 `yaml:"amount,omitempty"`

	// Refund is what went back to the sender.
	Refund *uint64 `yaml:"refund,omitempty"`

	Terminated *bool `yaml:"terminated,omitempty"`
}

// Assertion checks the final state.
type Assertion struct {
	// Type is one of stream, balance, conservation, event_count.
	Type string `yaml:"type"`

	// stream
	Stream       uint64  `yaml:"stream,omitempty"`
	Status       string  `yaml:"status,omitempty"`
	Remaining    *uint64 `yaml:"remaining,omitempty"`
	Carried      *uint64 `yaml:"carried,omitempty"`
	Withdrawable *uint64 `yaml:"withdrawable,omitempty"`

	// balance (Token also scopes conservation)
	Account string  `yaml:"account,omitempty"`
	Token   string  `yaml:"token,omitempty"`
	Amount  *uint64 `yaml:"amount,omitempty"`

	// event_count
	Kind  string `yaml:"kind,omitempty"`
	Count *int   `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStream       = "stream"
	AssertBalance      = "balance"
	AssertConservation = "conservation"
	AssertEventCount   = "event_count"
)

// ops lists every operation a step may name.
var ops = map[string]bool{
	engine.OpCreate:           true,
	engine.OpCreateOnBehalf:   true,
	engine.OpWithdraw:         true,
	engine.OpWithdrawOnBehalf: true,
	engine.OpCancel:           true,
	engine.OpCancelOnBehalf:   true,
	engine.OpPause:            true,
	engine.OpResume:           true,
	engine.OpGrant:            true,
	engine.OpRevoke:           true,
}

var eventKinds = map[ir.EventKind]bool{
	ir.EventStreamCreated:      true,
	ir.EventStreamWithdrawn:    true,
	ir.EventStreamPaused:       true,
	ir.EventStreamResumed:      true,
	ir.EventStreamCancelled:    true,
	ir.EventDelegateAuthorized: true,
	ir.EventDelegateRevoked:    true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, ordered by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		seen[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Policy.Resume != "" {
		if _, err := engine.ParseResumePolicy(s.Policy.Resume); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}

	for i, f := range s.Balances {
		if f.Account == "" || f.Token == "" {
			return fmt.Errorf("balances[%d]: account and token are required", i)
		}
	}

	for i, step := range s.Steps {
		if !ops[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Caller == "" {
			return fmt.Errorf("steps[%d]: caller is required", i)
		}
		if i > 0 && step.At < s.Steps[i-1].At {
			return fmt.Errorf("steps[%d]: at %d is before the previous step", i, step.At)
		}
		switch step.Op {
		case engine.OpCreateOnBehalf:
			if step.Sender == "" {
				return fmt.Errorf("steps[%d]: sender is required for %s", i, step.Op)
			}
		case engine.OpGrant, engine.OpRevoke:
			if step.Action == "" {
				return fmt.Errorf("steps[%d]: action is required for %s", i, step.Op)
			}
		case engine.OpCreate:
		default:
			if step.Stream == 0 {
				return fmt.Errorf("steps[%d]: stream is required for %s", i, step.Op)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertStream:
		if a.Stream == 0 {
			return fmt.Errorf("assertions[%d]: stream is required for stream", index)
		}
		if a.Status == "" && a.Remaining == nil && a.Carried == nil && a.Withdrawable == nil {
			return fmt.Errorf("assertions[%d]: stream assertion checks nothing", index)
		}
		if a.Status != "" {
			if _, err := ir.ParseStatus(a.Status); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertBalance:
		if a.Account == "" || a.Token == "" || a.Amount == nil {
			return fmt.Errorf("assertions[%d]: account, token and amount are required for balance", index)
		}
	case AssertConservation:
		if a.Token == "" {
			return fmt.Errorf("assertions[%d]: token is required for conservation", index)
		}
	case AssertEventCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
		if a.Kind != "" && !eventKinds[ir.EventKind(a.Kind)] {
			return fmt.Errorf("assertions[%d]: unknown event kind %q", index, a.Kind)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
