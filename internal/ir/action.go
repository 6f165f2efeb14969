package ir

import "fmt"

// Action is a privileged operation that may be delegated.
// The set is closed: values outside the declared constants are invalid
// and never authorized.
type Action uint8

const (
	// CreateOnBehalf lets a delegate create streams funded by the grantor.
	CreateOnBehalf Action = iota + 1
	// WithdrawOnBehalf lets a delegate withdraw to the grantor as recipient.
	WithdrawOnBehalf
	// CancelOnBehalf lets a delegate cancel the grantor's outgoing streams.
	CancelOnBehalf
)

// Actions lists every delegable action in declaration order.
var Actions = []Action{CreateOnBehalf, WithdrawOnBehalf, CancelOnBehalf}

var actionNames = map[Action]string{
	CreateOnBehalf:   "create_on_behalf",
	WithdrawOnBehalf: "withdraw_on_behalf",
	CancelOnBehalf:   "cancel_on_behalf",
}

// Valid reports whether a is one of the declared actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction parses the canonical snake_case action name.
// Anything else is rejected so similarly named operations cannot collide.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, NewError(CodeInvalidAction, fmt.Sprintf("unknown action %q", s))
}

// MarshalText encodes the canonical name.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes the canonical name.
func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
