package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

func TestRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lease := r.Register("s1", ModeVoice, cancel)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, "s1", lease.ID())

	lease.UpdateStep(screening.StepAskSalary)
	info, err := r.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, ModeVoice, info.Mode)
	assert.Equal(t, screening.StepAskSalary, info.Step)

	lease.Release()
	lease.Release()
	assert.Equal(t, 0, r.Count())
	_, err = r.Get("s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, ctx.Err())
}

func TestDuplicateIDCancelsOldSession(t *testing.T) {
	r := NewRegistry()
	oldCtx, oldCancel := context.WithCancel(context.Background())
	_, newCancel := context.WithCancel(context.Background())
	defer newCancel()

	oldLease := r.Register("dup", ModeText, oldCancel)
	newLease := r.Register("dup", ModeText, newCancel)

	assert.ErrorIs(t, oldCtx.Err(), context.Canceled)
	assert.Equal(t, 1, r.Count())

	oldLease.Release()
	assert.Equal(t, 1, r.Count(), "stale release must not remove the newer session")

	newLease.Release()
	assert.Equal(t, 0, r.Count())
}

func TestCancelAllAndWait(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b"} {
		ctx, cancel := context.WithCancel(context.Background())
		lease := r.Register(id, ModeVoice, cancel)
		go func() {
			<-ctx.Done()
			lease.Release()
		}()
	}
	assert.Len(t, r.List(), 2)

	r.CancelAll()
	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Wait(waitCtx))
	assert.Equal(t, 0, r.Count())
}

func TestWaitHonoursContext(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	lease := r.Register("stuck", ModeVoice, cancel)
	defer lease.Release()

	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestStaleLeaseCannotOverwriteStep(t *testing.T) {
	r := NewRegistry()
	_, oldCancel := context.WithCancel(context.Background())
	_, newCancel := context.WithCancel(context.Background())
	defer oldCancel()
	defer newCancel()

	oldLease := r.Register("abc", ModeVoice, oldCancel)
	newLease := r.Register("abc", ModeVoice, newCancel)
	defer newLease.Release()

	newLease.UpdateStep(screening.StepAskSalary)
	oldLease.UpdateStep(screening.StepEnd)

	info, err := r.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, screening.StepAskSalary, info.Step)
}
