package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())
	assert.True(t, Address("  ").IsZero())
	assert.False(t, Address("alice").IsZero())
}

func TestParseStreamID(t *testing.T) {
	id, err := ParseStreamID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, StreamID(42), id)

	_, err = ParseStreamID("0")
	assert.Error(t, err)
	_, err = ParseStreamID("-1")
	assert.Error(t, err)
	_, err = ParseStreamID("abc")
	assert.Error(t, err)
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusPaused, StatusTerminated} {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStatus("frozen")
	assert.Error(t, err)
}

func TestStreamStateAccessors(t *testing.T) {
	s := Stream{Deposit: 1000, Remaining: 600, State: Active{Start: 10, Stop: 110}}

	assert.True(t, s.IsActive())
	assert.Equal(t, Amount(400), s.Disbursed())
	start, stop := s.Window()
	assert.Equal(t, Timestamp(10), start)
	assert.Equal(t, Timestamp(110), stop)

	s.State = Paused{Start: 10, Stop: 110, TimeLeft: 60, PausedAt: 50}
	assert.False(t, s.IsActive())
	assert.Equal(t, StatusPaused, s.Status())

	s.State = s.Terminate()
	assert.Equal(t, Terminated{Start: 10, Stop: 110}, s.State)

	var empty Stream
	assert.Equal(t, Status(0), empty.Status())
}

func TestErrorIsByCode(t *testing.T) {
	err := fmt.Errorf("engine: %w", StreamError(CodeNotActive, 7, "stream is paused"))

	assert.True(t, errors.Is(err, ErrNotActive))
	assert.False(t, errors.Is(err, ErrAlreadyActive))
	assert.Equal(t, CodeNotActive, CodeOf(err))
	assert.True(t, HasCode(err, CodeNotActive))
	assert.Equal(t, "NOT_ACTIVE: stream is paused (stream=7)", errors.Unwrap(err).Error())
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("insufficient balance")
	err := WrapError(CodeTransferFailed, "pull deposit", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrTransferFailed))
	assert.Equal(t, "TRANSFER_FAILED: pull deposit: insufficient balance", err.Error())
	assert.Equal(t, Code(""), CodeOf(cause))
	assert.False(t, HasCode(nil, CodeTransferFailed))
}
