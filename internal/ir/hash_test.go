package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		ID:        "evt-1",
		Seq:       1,
		Kind:      EventStreamWithdrawn,
		At:        1040,
		StreamID:  1,
		Caller:    "bob",
		Recipient: "bob",
		Token:     "TKN",
		Amount:    400,
	}
}

func TestEventHashDeterminism(t *testing.T) {
	h1, err := EventHash(GenesisHash, sampleEvent())
	require.NoError(t, err)
	h2, err := EventHash(GenesisHash, sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "EventHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestEventHashChangesWithInput(t *testing.T) {
	base := MustEventHash(GenesisHash, sampleEvent())

	amount := sampleEvent()
	amount.Amount = 401

	id := sampleEvent()
	id.ID = "evt-2"

	seq := sampleEvent()
	seq.Seq = 2

	assert.NotEqual(t, base, MustEventHash(GenesisHash, amount), "amount must be committed")
	assert.NotEqual(t, base, MustEventHash(GenesisHash, id), "id must be committed")
	assert.NotEqual(t, base, MustEventHash(GenesisHash, seq), "seq must be committed")
	assert.NotEqual(t, base, MustEventHash(base, sampleEvent()), "prev hash must be committed")
}

func TestEventHashDomainSeparation(t *testing.T) {
	canonical, err := MarshalCanonical(map[string]any{"a": int64(1)})
	require.NoError(t, err)

	assert.NotEqual(t,
		hashWithDomain(DomainEvent, canonical),
		hashWithDomain("tokenstream/other/v1", canonical),
	)
}

func TestEventFieldsOmitZero(t *testing.T) {
	fields := Event{Seq: 3, Kind: EventDelegateAuthorized, At: 5, Caller: "alice", Delegate: "dave", Action: CancelOnBehalf}.Fields()

	assert.Equal(t, map[string]any{
		"kind":     "delegate.authorized",
		"seq":      int64(3),
		"at":       int64(5),
		"caller":   "alice",
		"delegate": "dave",
		"action":   "cancel_on_behalf",
	}, fields)
}
