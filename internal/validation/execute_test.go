package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/llm"
)

const unitTotal = 12 + 9 + 1 + 12 + 5 + 8

func TestExecuteFullSession(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	assert.Equal(t, sessions.StateFinalised, out.State)
	assert.Equal(t, unitTotal, out.Total)
	assert.Equal(t, unitTotal, out.Written)
	assert.Zero(t, out.Failed)
	assert.Zero(t, out.Skipped)

	s, err := h.store.Find(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sessions.StateFinalised, s.State)
	assert.Equal(t, unitTotal, s.ResultTotal)
	assert.Equal(t, unitTotal, s.ResultCount)
	assert.Equal(t, 100.0, s.ProgressPercent)
	assert.NotNil(t, s.CompletedAt)

	assert.Equal(t, 1, h.provider.uploadCount())
	assert.Equal(t, unitTotal, h.provider.callCount())
}

func TestExecuteCallsInTypeOrder(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	calls := h.provider.calls
	require.Len(t, calls, unitTotal)
	assert.True(t, strings.HasSuffix(calls[0].Prompt, "knowledge_evidence item 1"))
	assert.True(t, strings.HasSuffix(calls[12].Prompt, "performance_evidence item 1"))
	assert.Contains(t, calls[unitTotal-1].Prompt, "Instructions explain the candidate's rights")

	for _, c := range calls {
		assert.Equal(t, []byte(VerdictSchema), []byte(c.ResponseSchema))
		require.Len(t, c.Files, 1)
		assert.Equal(t, "files/assessment.pdf", c.Files[0].Name)
	}
}

func TestExecuteProgressMonotonic(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	progress := h.store.progress[id]
	require.Len(t, progress, unitTotal)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestExecuteCitationsNeverEmpty(t *testing.T) {
	h := newHarness(t)
	h.provider.respond = func(n int, req llm.Request) (*llm.Response, error) {
		if n%5 == 0 {
			return &llm.Response{Text: "I could not find anything."}, nil
		}
		return &llm.Response{Text: verdictJSON(req, results.StatusPartiallyMet)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)
	assert.Equal(t, unitTotal/5, out.Failed)

	for _, r := range h.store.resultRows(id) {
		assert.NotEmpty(t, r.Citations, "%s %s", r.RequirementType, r.RequirementNumber)
		if r.Failed {
			assert.Equal(t, []string{results.NoEvidenceCitation}, r.Citations)
		}
	}
}

func TestExecuteRequirementFailures(t *testing.T) {
	h := newHarness(t)
	h.provider.respond = func(_ int, req llm.Request) (*llm.Response, error) {
		switch {
		case strings.HasSuffix(req.Prompt, "knowledge_evidence item 2"):
			return nil, &llm.StatusError{StatusCode: 400, Body: "bad request"}
		case strings.HasSuffix(req.Prompt, "knowledge_evidence item 3"):
			return nil, &llm.StatusError{StatusCode: 503, Body: "unavailable"}
		case strings.HasSuffix(req.Prompt, "performance_evidence item 1"):
			return &llm.Response{Text: `{"status": "Met"}`}, nil
		}
		return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	assert.Equal(t, sessions.StateFinalised, out.State)
	assert.Equal(t, unitTotal, out.Written)
	assert.Equal(t, 3, out.Failed)

	// The 503 is retried once before it is recorded.
	assert.Equal(t, unitTotal+1, h.provider.callCount())

	rs := resultStore{h.store}
	ke2, err := rs.FindByKey(context.Background(), id, results.Key{Type: requirements.KnowledgeEvidence, Number: "2"})
	require.NoError(t, err)
	assert.True(t, ke2.Failed)
	assert.Equal(t, results.StatusNotMet, ke2.Status)
	require.NotNil(t, ke2.Error)
	assert.Contains(t, *ke2.Error, "provider http 400")

	ke3, err := rs.FindByKey(context.Background(), id, results.Key{Type: requirements.KnowledgeEvidence, Number: "3"})
	require.NoError(t, err)
	assert.True(t, ke3.Failed)
	assert.Contains(t, *ke3.Error, ErrTransient.Error())

	pe1, err := rs.FindByKey(context.Background(), id, results.Key{Type: requirements.PerformanceEvidence, Number: "1"})
	require.NoError(t, err)
	assert.True(t, pe1.Failed)
	assert.Contains(t, pe1.Reasoning, "validation failed: ")
}

func TestExecuteHandleExpiresMidRun(t *testing.T) {
	h := newHarness(t)
	h.provider.ttl = time.Hour
	h.provider.respond = func(_ int, req llm.Request) (*llm.Response, error) {
		h.clock.Advance(30 * time.Minute)
		return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrHandleExpired)

	assert.Equal(t, sessions.StateError, out.State)
	assert.Equal(t, 2, h.provider.callCount())

	s := h.store.session(id)
	assert.Equal(t, sessions.StateError, s.State)
	require.NotNil(t, s.ErrorReason)
	assert.Contains(t, *s.ErrorReason, ErrHandleExpired.Error())
	assert.Len(t, h.store.resultRows(id), 2)
}

func TestExecuteMissingPromptFailsSession(t *testing.T) {
	h := newHarness(t)
	h.store.dropPrompt(prompts.Key{
		TaskType:        prompts.TaskValidation,
		RequirementType: requirements.KnowledgeEvidence,
		DocumentType:    requirements.DocumentUnit,
	})
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrConfiguration)
	require.ErrorIs(t, err, prompts.ErrNoDefault)

	assert.Equal(t, sessions.StateError, out.State)
	assert.Zero(t, h.provider.callCount())

	s := h.store.session(id)
	assert.True(t, hasPrefix(s.ErrorReason, ErrConfiguration.Error()))
	assert.Equal(t, unitTotal, s.ResultTotal)
}

func TestExecuteMissingPromptKeepsEarlierResults(t *testing.T) {
	h := newHarness(t)
	h.store.dropPrompt(prompts.Key{
		TaskType:        prompts.TaskValidation,
		RequirementType: requirements.PerformanceCriteria,
		DocumentType:    requirements.DocumentUnit,
	})
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrConfiguration)

	rows := h.store.resultRows(id)
	assert.Len(t, rows, 12+9+1)
	for _, r := range rows {
		assert.NotEqual(t, requirements.PerformanceCriteria, r.RequirementType)
	}
	assert.Equal(t, sessions.StateError, h.store.session(id).State)
}

func TestExecuteConcurrentSessionsIsolated(t *testing.T) {
	h := newHarness(t)
	a := h.store.addSession(testUnit, "a.pdf")
	b := h.store.addSession(testUnit, "b.pdf")

	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{a, b} {
		wg.Go(func() {
			_, err := Execute(context.Background(), h.rt, id)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	check := func(id uuid.UUID, own, other string) {
		rows := h.store.resultRows(id)
		require.Len(t, rows, unitTotal)
		for _, r := range rows {
			assert.Equal(t, id, r.SessionID)
			joined := strings.Join(r.Citations, " ")
			assert.Contains(t, joined, own)
			assert.NotContains(t, joined, other)
		}
	}
	check(a, "files/a.pdf", "files/b.pdf")
	check(b, "files/b.pdf", "files/a.pdf")

	assert.Equal(t, sessions.StateFinalised, h.store.session(a).State)
	assert.Equal(t, sessions.StateFinalised, h.store.session(b).State)
}

func TestExecuteResumesAfterInterruption(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.provider.respond = func(n int, req llm.Request) (*llm.Response, error) {
		if n == 10 {
			cancel()
			return nil, context.Canceled
		}
		return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(ctx, h.rt, id)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, sessions.StateUnderReview, out.State)
	assert.Equal(t, sessions.StateUnderReview, h.store.session(id).State)
	assert.Len(t, h.store.resultRows(id), 9)

	h.provider.respond = nil
	out, err = Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	assert.Equal(t, sessions.StateFinalised, out.State)
	assert.Equal(t, 9, out.Skipped)
	assert.Equal(t, unitTotal-9, out.Written)
	assert.Equal(t, 10+unitTotal-9, h.provider.callCount())

	s := h.store.session(id)
	assert.Equal(t, unitTotal, s.ResultTotal)
	assert.Equal(t, unitTotal, s.ResultCount)
	assert.Len(t, h.store.resultRows(id), unitTotal)
}

// interruptAt cancels the run on provider call n and answers Met otherwise.
func interruptAt(h *harness, n int) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	h.provider.respond = func(call int, req llm.Request) (*llm.Response, error) {
		if call == n {
			cancel()
			return nil, context.Canceled
		}
		return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
	}
	return ctx
}

func TestExecuteResumeRejectsGrownRequirementSet(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(interruptAt(h, 10), h.rt, id)
	require.ErrorIs(t, err, context.Canceled)

	h.store.editUnit(testUnit, func(reqs []requirements.Requirement) []requirements.Requirement {
		for i := 13; i <= 17; i++ {
			reqs = append(reqs, requirements.Requirement{
				ID:       int64(100 + i),
				UnitCode: testUnit,
				Type:     requirements.KnowledgeEvidence,
				Number:   fmt.Sprintf("%d", i),
				Text:     fmt.Sprintf("knowledge_evidence item %d", i),
			})
		}
		return reqs
	})
	h.provider.respond = nil
	calls := h.provider.callCount()

	out, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrConfiguration)

	assert.Equal(t, sessions.StateError, out.State)
	assert.Equal(t, calls, h.provider.callCount())

	s := h.store.session(id)
	assert.Equal(t, unitTotal, s.ResultTotal)
	assert.Equal(t, 9, s.ResultCount)
	assert.LessOrEqual(t, sessions.Progress(s.ResultCount, s.ResultTotal), 100.0)
	assert.Len(t, h.store.resultRows(id), 9)
}

func TestExecuteResumeRejectsRenumberedRequirements(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(interruptAt(h, 10), h.rt, id)
	require.ErrorIs(t, err, context.Canceled)

	h.store.editUnit(testUnit, func(reqs []requirements.Requirement) []requirements.Requirement {
		reqs[0].Number = "1a"
		return reqs
	})
	h.provider.respond = nil

	out, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, sessions.StateError, out.State)
	assert.Len(t, h.store.resultRows(id), 9)
}

func TestExecuteBatchStrategy(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.Strategy = config.StrategyBatch
	h.rt.Config.BatchSize = 10
	h.provider.respond = func(_ int, req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Prompt, "knowledge_evidence item 5") {
			return &llm.Response{Text: batchJSON(req, "5")}, nil
		}
		return &llm.Response{Text: batchJSON(req)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	// KE 12 -> 2, PE 9 -> 1, FS 1 -> 1, PC 12 -> 2, AC 5 -> 1, AI 8 -> 1.
	assert.Equal(t, 8, h.provider.callCount())
	assert.Equal(t, unitTotal, out.Written)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, sessions.StateFinalised, out.State)

	for _, c := range h.provider.calls {
		assert.True(t, bytes.Equal(BatchSchema, c.ResponseSchema))
	}

	ke5, err := resultStore{h.store}.FindByKey(context.Background(), id, results.Key{Type: requirements.KnowledgeEvidence, Number: "5"})
	require.NoError(t, err)
	assert.True(t, ke5.Failed)
	assert.Contains(t, *ke5.Error, "no verdict returned for requirement 5")
}

func TestExecuteBatchRejectsPerRequirementPrompt(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.Strategy = config.StrategyBatch
	h.rt.Config.BatchSize = 10
	h.store.setPrompt(prompts.Key{
		TaskType:        prompts.TaskBatchValidation,
		RequirementType: requirements.KnowledgeEvidence,
		DocumentType:    requirements.DocumentUnit,
	}, "Assess {{requirement_type}} {{requirement_number}}: {{requirement_text}}")
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrConfiguration)

	assert.Equal(t, sessions.StateError, out.State)
	assert.Zero(t, h.provider.callCount())

	s := h.store.session(id)
	require.NotNil(t, s.ErrorReason)
	assert.Contains(t, *s.ErrorReason, "requirement_number")
	assert.Contains(t, *s.ErrorReason, "requirement_text")
}

func TestExecuteBatchUnreadableFailsChunk(t *testing.T) {
	h := newHarness(t)
	h.rt.Config.Strategy = config.StrategyBatch
	h.rt.Config.BatchSize = 50
	h.provider.respond = func(n int, req llm.Request) (*llm.Response, error) {
		if n == 1 {
			return &llm.Response{Text: "no json here"}, nil
		}
		return &llm.Response{Text: batchJSON(req)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)
	assert.Equal(t, 12, out.Failed)
	assert.Equal(t, sessions.StateFinalised, out.State)
}

func TestExecuteNoRequirements(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession("UNKNOWN01", "assessment.pdf")

	out, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, sessions.StateError, out.State)
	assert.Zero(t, h.provider.callCount())

	s := h.store.session(id)
	assert.Zero(t, s.ResultTotal)
}

func TestExecuteNoDocuments(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit)

	_, err := Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrNoDocuments)
	assert.Equal(t, sessions.StateError, h.store.session(id).State)
}

func TestExecuteForeignDocument(t *testing.T) {
	h := newHarness(t)
	a := h.store.addSession(testUnit, "a.pdf")
	b := h.store.addSession(testUnit, "b.pdf")

	h.store.mu.Lock()
	h.store.docs[a] = append(h.store.docs[a], h.store.docs[b]...)
	h.store.mu.Unlock()

	_, err := Execute(context.Background(), h.rt, a)
	require.ErrorIs(t, err, ErrSessionIntegrity)
	assert.Equal(t, sessions.StateError, h.store.session(a).State)
	assert.Equal(t, sessions.StatePending, h.store.session(b).State)
	assert.Zero(t, h.provider.uploadCount())
}

func TestExecuteNotRunnable(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	_, err := h.store.Fail(context.Background(), id, "boom")
	require.NoError(t, err)

	_, err = Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrNotRunnable)
	assert.Equal(t, "boom", *h.store.session(id).ErrorReason)
}

func TestExecuteReuploadsExpiredHandleWhileProcessing(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	expireHandles(t, h, id)
	_, err := h.store.BeginProcessing(context.Background(), id)
	require.NoError(t, err)

	out, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)
	assert.Equal(t, sessions.StateFinalised, out.State)
	assert.Equal(t, 1, h.provider.uploadCount())
}

func TestExecuteExpiredHandleUnderReview(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	expireHandles(t, h, id)
	_, err := h.store.BeginProcessing(context.Background(), id)
	require.NoError(t, err)
	_, err = h.store.BeginReview(context.Background(), id, unitTotal)
	require.NoError(t, err)

	_, err = Execute(context.Background(), h.rt, id)
	require.ErrorIs(t, err, ErrHandleExpired)
	assert.Zero(t, h.provider.callCount())
	assert.Equal(t, sessions.StateError, h.store.session(id).State)
}

func TestRevalidateReplacesRow(t *testing.T) {
	h := newHarness(t)
	h.provider.respond = func(n int, req llm.Request) (*llm.Response, error) {
		if n == 1 {
			return &llm.Response{Text: verdictJSON(req, results.StatusNotMet)}, nil
		}
		return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
	}
	id := h.store.addSession(testUnit, "assessment.pdf")

	_, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	key := results.Key{Type: requirements.KnowledgeEvidence, Number: "1"}
	before, err := resultStore{h.store}.FindByKey(context.Background(), id, key)
	require.NoError(t, err)
	require.Equal(t, results.StatusNotMet, before.Status)

	h.store.mu.Lock()
	h.store.prompts[prompts.Key{
		TaskType:        prompts.TaskRevalidation,
		RequirementType: requirements.KnowledgeEvidence,
		DocumentType:    requirements.DocumentUnit,
	}] = &prompts.Prompt{
		TaskType:        prompts.TaskRevalidation,
		RequirementType: requirements.KnowledgeEvidence,
		DocumentType:    requirements.DocumentUnit,
		Text:            "Previously {{prior_status}}. Reassess {{requirement_number}}: {{requirement_text}}",
		IsActive:        true,
		IsDefault:       true,
	}
	h.store.mu.Unlock()

	res, err := Revalidate(context.Background(), h.rt, RevalidateCommand{
		SessionID:         id,
		RequirementType:   requirements.KnowledgeEvidence,
		RequirementNumber: "1",
	})
	require.NoError(t, err)

	assert.Equal(t, before.ID, res.ID)
	assert.Equal(t, results.StatusMet, res.Status)
	assert.NotEmpty(t, res.Citations)

	last := h.provider.calls[h.provider.callCount()-1]
	assert.True(t, strings.HasPrefix(last.Prompt, "Previously Not Met."))

	s := h.store.session(id)
	assert.Equal(t, unitTotal, s.ResultCount)
	assert.Equal(t, sessions.StateFinalised, s.State)
	assert.Len(t, h.store.resultRows(id), unitTotal)
}

func TestRevalidateFallsBackToValidationPrompt(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	_, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)

	_, err = Revalidate(context.Background(), h.rt, RevalidateCommand{
		SessionID:         id,
		RequirementType:   requirements.AssessmentConditions,
		RequirementNumber: "3",
	})
	require.NoError(t, err)

	last := h.provider.calls[h.provider.callCount()-1]
	assert.True(t, strings.HasPrefix(last.Prompt, "Assess "))
}

func TestRevalidateRejects(t *testing.T) {
	h := newHarness(t)
	pending := h.store.addSession(testUnit, "assessment.pdf")

	reviewed := h.store.addSession(testUnit, "assessment.pdf")
	_, err := Execute(context.Background(), h.rt, reviewed)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  RevalidateCommand
		want error
	}{
		{"invalid type", RevalidateCommand{SessionID: reviewed, RequirementType: "bogus", RequirementNumber: "1"}, ErrInvalidRequest},
		{"blank number", RevalidateCommand{SessionID: reviewed, RequirementType: requirements.KnowledgeEvidence, RequirementNumber: " "}, ErrInvalidRequest},
		{"pending session", RevalidateCommand{SessionID: pending, RequirementType: requirements.KnowledgeEvidence, RequirementNumber: "1"}, ErrNotRunnable},
		{"unknown requirement", RevalidateCommand{SessionID: reviewed, RequirementType: requirements.KnowledgeEvidence, RequirementNumber: "99"}, requirements.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Revalidate(context.Background(), h.rt, tt.cmd)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRevalidateRejectsChangedRequirementSet(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	_, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)
	calls := h.provider.callCount()

	h.store.editUnit(testUnit, func(reqs []requirements.Requirement) []requirements.Requirement {
		return append(reqs, requirements.Requirement{
			ID:       200,
			UnitCode: testUnit,
			Type:     requirements.KnowledgeEvidence,
			Number:   "13",
			Text:     "knowledge_evidence item 13",
		})
	})

	_, err = Revalidate(context.Background(), h.rt, RevalidateCommand{
		SessionID:         id,
		RequirementType:   requirements.KnowledgeEvidence,
		RequirementNumber: "13",
	})
	require.ErrorIs(t, err, ErrConfiguration)

	assert.Equal(t, calls, h.provider.callCount())
	s := h.store.session(id)
	assert.Equal(t, sessions.StateFinalised, s.State)
	assert.Equal(t, unitTotal, s.ResultCount)
	assert.Len(t, h.store.resultRows(id), unitTotal)
}

func TestRevalidateExpiredHandleKeepsState(t *testing.T) {
	h := newHarness(t)
	id := h.store.addSession(testUnit, "assessment.pdf")
	_, err := Execute(context.Background(), h.rt, id)
	require.NoError(t, err)
	calls := h.provider.callCount()

	h.clock.Advance(72 * time.Hour)

	_, err = Revalidate(context.Background(), h.rt, RevalidateCommand{
		SessionID:         id,
		RequirementType:   requirements.KnowledgeEvidence,
		RequirementNumber: "1",
	})
	require.ErrorIs(t, err, ErrHandleExpired)
	assert.Equal(t, calls, h.provider.callCount())
	assert.Equal(t, sessions.StateFinalised, h.store.session(id).State)
}

// expireHandles attaches an already expired handle to every document of id.
func expireHandles(t *testing.T, h *harness, id uuid.UUID) {
	t.Helper()
	past := h.clock.Now().Add(-time.Minute)
	for _, d := range h.store.ListBySessionDocs(id) {
		_, err := h.store.AttachHandle(context.Background(), d.ID, id, llm.FileHandle{
			URI:       "https://files.test/old",
			Name:      "files/old",
			ExpiresAt: past,
		})
		require.NoError(t, err)
	}
}
