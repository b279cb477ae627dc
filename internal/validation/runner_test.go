package validation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/lifecycle"
	"github.com/JaimeStill/rtoval/pkg/llm"
)

func TestValidateQueuesOnce(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.QueueSize = 4
	sys := New(h.rt)
	id := h.store.addSession(testUnit, "assessment.pdf")

	s, err := sys.Validate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sessions.StatePending, s.State)
	assert.True(t, sys.Active(id))

	_, err = sys.Validate(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestValidateQueueFull(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.QueueSize = 1
	sys := New(h.rt)

	_, err := sys.Validate(context.Background(), h.store.addSession(testUnit, "a.pdf"))
	require.NoError(t, err)

	second := h.store.addSession(testUnit, "b.pdf")
	_, err = sys.Validate(context.Background(), second)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, sys.Active(second))
}

func TestValidateRejectsTerminalStates(t *testing.T) {
	h := newHarness(t)
	sys := New(h.rt)
	id := h.store.addSession(testUnit, "assessment.pdf")
	_, err := h.store.Fail(context.Background(), id, "boom")
	require.NoError(t, err)

	_, err = sys.Validate(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotRunnable)
	assert.Equal(t, 409, MapHTTPStatus(err))
}

func TestRevalidateRefusedWhileActive(t *testing.T) {
	h := newHarness(t)
	sys := New(h.rt)
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := sys.Validate(context.Background(), id)
	require.NoError(t, err)

	_, err = sys.Revalidate(context.Background(), RevalidateCommand{
		SessionID:         id,
		RequirementType:   requirements.KnowledgeEvidence,
		RequirementNumber: "1",
	})
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestRevalidateHoldsSessionClaim(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.QueueSize = 4
	sys := New(h.rt)
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(interruptAt(h, 10), h.rt, id)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, sessions.StateUnderReview, h.store.session(id).State)

	started := make(chan struct{})
	unblock := make(chan struct{})
	h.provider.respond = func(_ int, req llm.Request) (*llm.Response, error) {
		close(started)
		<-unblock
		return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := sys.Revalidate(context.Background(), RevalidateCommand{
			SessionID:         id,
			RequirementType:   requirements.KnowledgeEvidence,
			RequirementNumber: "1",
		})
		done <- err
	}()

	<-started
	assert.True(t, sys.Active(id))
	_, err = sys.Validate(context.Background(), id)
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(unblock)
	require.NoError(t, <-done)
	assert.False(t, sys.Active(id))

	_, err = sys.Validate(context.Background(), id)
	assert.NoError(t, err)
}

func TestRunnerExecutesQueuedSessions(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.Workers = 2
	sys := New(h.rt)

	lc := lifecycle.New()
	require.NoError(t, sys.Start(lc))
	lc.WaitForStartup()
	defer lc.Shutdown(5 * time.Second)

	a := h.store.addSession(testUnit, "a.pdf")
	b := h.store.addSession(testUnit, "b.pdf")
	_, err := sys.Validate(context.Background(), a)
	require.NoError(t, err)
	_, err = sys.Validate(context.Background(), b)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.store.session(a).State == sessions.StateFinalised &&
			h.store.session(b).State == sessions.StateFinalised
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return !sys.Active(a) && !sys.Active(b)
	}, time.Second, 5*time.Millisecond)
}

func TestRunnerResumesStalledSessions(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	_, err := h.store.BeginProcessing(context.Background(), id)
	require.NoError(t, err)

	sys := New(h.rt)
	lc := lifecycle.New()
	require.NoError(t, sys.Start(lc))
	lc.WaitForStartup()
	defer lc.Shutdown(5 * time.Second)

	require.Eventually(t, func() bool {
		return h.store.session(id).State == sessions.StateFinalised
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSweepFailsIdleExpiredSessions(t *testing.T) {
	h := newHarness(t)

	expiredID := h.store.addSession(testUnit, "old.pdf")
	expireHandles(t, h, expiredID)
	liveID := h.store.addSession(testUnit, "new.pdf")

	moveToReview(t, h, expiredID)
	moveToReview(t, h, liveID)

	r := New(h.rt).(*runner)
	n, err := r.sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s := h.store.session(expiredID)
	assert.Equal(t, sessions.StateError, s.State)
	require.NotNil(t, s.ErrorReason)
	assert.Contains(t, *s.ErrorReason, "old.pdf")
	assert.Equal(t, sessions.StateUnderReview, h.store.session(liveID).State)
}

func TestSweepSkipsActiveSessions(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "old.pdf")
	expireHandles(t, h, id)
	moveToReview(t, h, id)

	r := New(h.rt).(*runner)
	require.NoError(t, r.enqueue(id))

	n, err := r.sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, sessions.StateUnderReview, h.store.session(id).State)
}

func moveToReview(t *testing.T, h *harness, id uuid.UUID) {
	t.Helper()
	_, err := h.store.BeginProcessing(context.Background(), id)
	require.NoError(t, err)
	_, err = h.store.BeginReview(context.Background(), id, unitTotal)
	require.NoError(t, err)
}
