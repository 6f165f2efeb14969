package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenstream/internal/ir"
)

func TestPause_SettlesAndStashesTimeLeft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	f.at(40)
	paid, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(400), paid)
	assert.Equal(t, ir.Amount(400), f.port.Balance(token, bob))

	s := f.stream(t, id)
	assert.Equal(t, ir.Amount(600), s.Remaining)
	assert.Equal(t, ir.Paused{Start: T, Stop: T + 100, TimeLeft: 60, PausedAt: T + 40}, s.State)

	f.at(70)
	info, err := f.e.TimeInfo(id)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(0), info.Withdrawable, "paused streams accrue nothing")
	assert.Equal(t, int64(60), info.TimeLeft)
	assert.Equal(t, "paused", info.Status)

	_, err = f.e.Withdraw(ctx, bob, id, 0)
	assertCode(t, ir.CodeNotActive, err)
	_, err = f.e.Cancel(ctx, alice, id)
	assertCode(t, ir.CodeNotActive, err)
	_, err = f.e.Pause(ctx, alice, id)
	assertCode(t, ir.CodeNotActive, err)
}

func TestPauseResume_RestoresWindowAtOriginalRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	f.at(40)
	_, err := f.e.Pause(ctx, bob, id)
	require.NoError(t, err)

	f.at(50)
	require.NoError(t, f.e.Resume(ctx, alice, id))

	s := f.stream(t, id)
	assert.Equal(t, ir.Active{Start: T + 50, Stop: T + 110}, s.State)
	assert.Equal(t, ir.Amount(10), s.Rate)
	assert.Equal(t, ir.Amount(400), s.Carried)

	f.at(60)
	info, err := f.e.TimeInfo(id)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(100), info.Withdrawable)

	f.at(110)
	out, err := f.e.Withdraw(ctx, bob, id, 0)
	require.NoError(t, err)
	assert.Equal(t, Withdrawal{Amount: 600, Terminated: true}, out)
	assert.Equal(t, ir.Amount(1000), f.port.Balance(token, bob))
}

func TestPauseResume_ImmediatePreservesAccrual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	f.at(30)
	before, err := f.e.TimeInfo(id)
	require.NoError(t, err)
	paid, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)
	require.NoError(t, f.e.Resume(ctx, alice, id))

	assert.Equal(t, before.Withdrawable, paid, "the pause paid exactly what was withdrawable")
	after, err := f.e.TimeInfo(id)
	require.NoError(t, err)
	assert.Equal(t, before.Rate, after.Rate)
	assert.Equal(t, before.Stop, after.Stop)
	assert.Equal(t, before.TimeLeft, after.TimeLeft)

	f.at(45)
	info, err := f.e.TimeInfo(id)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(150), info.Withdrawable)
}

func TestPause_BeforeStartKeepsWholeWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	f.at(-5)
	paid, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(0), paid)
	assert.Len(t, f.port.Legs(), 1, "no zero push")

	s := f.stream(t, id)
	assert.Equal(t, int64(100), s.State.(ir.Paused).TimeLeft)

	f.at(20)
	require.NoError(t, f.e.Resume(ctx, alice, id))
	assert.Equal(t, ir.Active{Start: T + 20, Stop: T + 120}, f.stream(t, id).State)

	f.at(120)
	out, err := f.e.Withdraw(ctx, bob, id, 0)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(1000), out.Amount)
}

func TestPause_DrainingTerminates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	f.at(100)
	paid, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, ir.Amount(1000), paid)

	s := f.stream(t, id)
	assert.Equal(t, ir.StatusTerminated, s.Status())
	assert.True(t, f.events[len(f.events)-1].Terminated)

	assertCode(t, ir.CodeNotActive, f.e.Resume(ctx, alice, id))
}

func TestPause_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	_, err := f.e.Pause(ctx, carol, id)
	assertCode(t, ir.CodeUnauthorized, err)
	_, err = f.e.Pause(ctx, carol, 77)
	assertCode(t, ir.CodeNotFound, err)
}

func TestResume_StateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	assertCode(t, ir.CodeAlreadyActive, f.e.Resume(ctx, alice, id))

	_, err := f.e.Cancel(ctx, alice, id)
	require.NoError(t, err)
	assertCode(t, ir.CodeNotActive, f.e.Resume(ctx, alice, id))
}

func TestResume_SenderOnlyByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	f.at(10)
	_, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)

	f.at(10_000)
	assertCode(t, ir.CodeUnauthorized, f.e.Resume(ctx, bob, id))
	assertCode(t, ir.CodeUnauthorized, f.e.Resume(ctx, carol, id))
	assert.Equal(t, ir.StatusPaused, f.stream(t, id).Status())
}

func TestResume_EitherPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithPolicy(Policy{Resume: ResumeEither}))
	id := f.open(t, 1000, 100)

	f.at(10)
	_, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)

	assertCode(t, ir.CodeUnauthorized, f.e.Resume(ctx, carol, id))
	require.NoError(t, f.e.Resume(ctx, bob, id))
}

func TestResume_RecipientAfterDelay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithPolicy(Policy{Resume: ResumeRecipientAfter, RecipientResumeDelay: 30}))
	id := f.open(t, 1000, 100)

	f.at(10)
	_, err := f.e.Pause(ctx, alice, id)
	require.NoError(t, err)

	f.at(39)
	assertCode(t, ir.CodeUnauthorized, f.e.Resume(ctx, bob, id))

	f.at(40)
	require.NoError(t, f.e.Resume(ctx, bob, id))
	assert.Equal(t, ir.Active{Start: T + 40, Stop: T + 130}, f.stream(t, id).State)
}

func TestResumePolicy_Parse(t *testing.T) {
	for _, p := range []ResumePolicy{ResumeSender, ResumeEither, ResumeRecipientAfter} {
		got, err := ParseResumePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseResumePolicy("anyone")
	assert.Error(t, err)
	assert.Equal(t, "resume_policy(7)", ResumePolicy(7).String())
}
