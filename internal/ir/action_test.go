package ir

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRoundTrip(t *testing.T) {
	for _, a := range Actions {
		t.Run(a.String(), func(t *testing.T) {
			parsed, err := ParseAction(a.String())
			require.NoError(t, err)
			assert.Equal(t, a, parsed)
			assert.True(t, parsed.Valid())
		})
	}
}

func TestActionNamesDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Actions {
		assert.False(t, seen[a.String()], "duplicate action name %q", a.String())
		seen[a.String()] = true
	}
	assert.Len(t, seen, 3)
}

func TestParseActionRejectsLookalikes(t *testing.T) {
	for _, s := range []string{"", "withdraw", "WithdrawOnBehalf", "create-on-behalf", "cancel_on_behalf "} {
		_, err := ParseAction(s)
		require.Error(t, err, "input %q", s)
		assert.True(t, errors.Is(err, ErrInvalidAction))
	}
}

func TestActionInvalidValues(t *testing.T) {
	assert.False(t, Action(0).Valid())
	assert.False(t, Action(4).Valid())
	assert.Equal(t, "action(9)", Action(9).String())

	_, err := Action(0).MarshalText()
	assert.Error(t, err)
}

func TestActionJSON(t *testing.T) {
	data, err := json.Marshal(Grant{Grantor: "alice", Delegate: "dave", Action: WithdrawOnBehalf, Allowed: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"grantor":"alice","delegate":"dave","action":"withdraw_on_behalf","allowed":true}`, string(data))

	var g Grant
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, WithdrawOnBehalf, g.Action)

	err = json.Unmarshal([]byte(`{"action":"steal"}`), &g)
	assert.Error(t, err)
}
