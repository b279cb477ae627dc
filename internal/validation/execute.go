package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/llm"
)

// Outcome summarises one Execute call.
type Outcome struct {
	SessionID uuid.UUID      `json:"session_id"`
	State     sessions.State `json:"state"`
	Total     int            `json:"total"`
	Skipped   int            `json:"skipped"`
	Written   int            `json:"written"`
	Failed    int            `json:"failed"`
}

// Execute runs validation for a session from whatever point it reached.
// A pending session starts from document preparation; a processing or
// under_review session resumes and skips requirements that already have a
// result. Any error other than cancellation or deletion leaves the session in
// error with the error text as its reason. Cancellation leaves the session
// where it is so a later run can resume it.
func Execute(ctx context.Context, rt *Runtime, sessionID uuid.UUID) (*Outcome, error) {
	ctx, span := rt.Tracer.Start(ctx, "validation.execute",
		trace.WithAttributes(attribute.String("session_id", sessionID.String())),
	)
	defer span.End()

	out := &Outcome{SessionID: sessionID}

	s, err := rt.Sessions.Find(ctx, sessionID)
	if err != nil {
		return out, err
	}

	switch s.State {
	case sessions.StatePending:
		if s, err = rt.Sessions.BeginProcessing(ctx, sessionID); err != nil {
			return out, err
		}
	case sessions.StateProcessing, sessions.StateUnderReview:
		rt.Logger.InfoContext(ctx, "resuming session", "session_id", sessionID, "state", s.State)
	default:
		return out, fmt.Errorf("%w: %s", ErrNotRunnable, s.State)
	}

	out.State = s.State
	err = run(ctx, rt, s, out)
	if err == nil {
		span.SetAttributes(
			attribute.Int("written", out.Written),
			attribute.Int("failed", out.Failed),
			attribute.String("state", string(out.State)),
		)
		return out, nil
	}

	span.SetStatus(codes.Error, err.Error())

	if ctx.Err() != nil {
		rt.Logger.WarnContext(ctx, "session run interrupted", "session_id", sessionID, "error", err)
		return out, err
	}
	if errors.Is(err, sessions.ErrNotFound) || errors.Is(err, results.ErrSessionNotFound) {
		rt.Logger.WarnContext(ctx, "session removed during run", "session_id", sessionID)
		return out, err
	}

	rt.Logger.ErrorContext(ctx, "session failed", "session_id", sessionID, "error", err)
	if _, ferr := rt.Sessions.Fail(context.WithoutCancel(ctx), sessionID, err.Error()); ferr != nil {
		rt.Logger.ErrorContext(ctx, "record session failure", "session_id", sessionID, "error", ferr)
	} else {
		out.State = sessions.StateError
	}
	return out, err
}

func run(ctx context.Context, rt *Runtime, s *sessions.Session, out *Outcome) error {
	docs, handles, err := prepare(ctx, rt, s, s.State == sessions.StateProcessing)
	if err != nil {
		return err
	}

	reqs, err := rt.Requirements.Resolve(ctx, requirements.Query{
		UnitCode:     s.UnitCode,
		DocumentType: s.DocumentType,
		IncludeFixed: true,
	})
	if err != nil {
		if errors.Is(err, requirements.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return fmt.Errorf("resolve requirements: %w", err)
	}
	if len(reqs) <= requirements.FixedCount() {
		return fmt.Errorf("%w: no requirements imported for unit %s", ErrConfiguration, s.UnitCode)
	}
	out.Total = len(reqs)

	if s.State == sessions.StateProcessing {
		if s, err = rt.Sessions.BeginReview(ctx, s.ID, len(reqs)); err != nil {
			return err
		}
		out.State = s.State
	}
	if s.ResultTotal != len(reqs) {
		return fmt.Errorf("%w: unit %s now has %d requirements but the session total is fixed at %d",
			ErrConfiguration, s.UnitCode, len(reqs), s.ResultTotal)
	}

	wanted := make(map[results.Key]bool, len(reqs))
	for _, r := range reqs {
		wanted[results.KeyOf(r)] = true
	}

	existing, err := rt.Results.ListBySession(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("list existing results: %w", err)
	}
	done := make(map[results.Key]bool, len(existing))
	for _, r := range existing {
		if !wanted[r.Key()] {
			return fmt.Errorf("%w: result %s %s is not in the current requirement set of unit %s",
				ErrConfiguration, r.RequirementType, r.RequirementNumber, s.UnitCode)
		}
		done[r.Key()] = true
	}

	var todo []requirements.Requirement
	for _, r := range reqs {
		if !done[results.KeyOf(r)] {
			todo = append(todo, r)
		}
	}
	out.Skipped = len(reqs) - len(todo)

	base := sessionVars(s, docs)
	groups := requirements.GroupByType(todo)

	for _, t := range requirements.Types() {
		group := groups[t]
		if len(group) == 0 {
			continue
		}

		p, err := resolvePrompt(ctx, rt, prompts.Key{
			TaskType:        validationTask(rt.Config.Strategy),
			RequirementType: t,
			DocumentType:    s.DocumentType,
		})
		if err != nil {
			return err
		}

		for _, chunk := range chunks(group, rt.Config) {
			if h, ok := expired(handles, rt.now()); ok {
				return fmt.Errorf("%w: %s expired at %s", ErrHandleExpired, h.URI, h.ExpiresAt.UTC().Format(time.RFC3339))
			}

			var written []results.Result
			if len(chunk) == 1 && rt.Config.Strategy != config.StrategyBatch {
				written, err = validateOne(ctx, rt, s, p, base, handles, chunk[0])
			} else {
				written, err = validateBatch(ctx, rt, s, p, base, handles, chunk)
			}
			for _, r := range written {
				out.Written++
				if r.Failed {
					out.Failed++
				}
			}
			if err != nil {
				return err
			}
		}
	}

	fin, err := rt.Sessions.Finalise(ctx, s.ID)
	if err != nil {
		if errors.Is(err, sessions.ErrIncomplete) {
			rt.Logger.WarnContext(ctx, "session left under review", "session_id", s.ID, "error", err)
			return nil
		}
		return err
	}
	out.State = fin.State

	rt.Logger.InfoContext(ctx, "session validated",
		"session_id", s.ID,
		"total", out.Total,
		"skipped", out.Skipped,
		"written", out.Written,
		"failed", out.Failed,
	)
	return nil
}

// chunks splits a same-type group into provider calls: one requirement per
// call for the individual strategy, batch_size per call for batch.
func chunks(group []requirements.Requirement, cfg config.ValidationConfig) [][]requirements.Requirement {
	size := 1
	if cfg.Strategy == config.StrategyBatch {
		size = max(cfg.BatchSize, 1)
	}

	var out [][]requirements.Requirement
	for start := 0; start < len(group); start += size {
		out = append(out, group[start:min(start+size, len(group))])
	}
	return out
}

func validateOne(
	ctx context.Context,
	rt *Runtime,
	s *sessions.Session,
	p *prompts.Prompt,
	base prompts.Vars,
	handles []llm.FileHandle,
	req requirements.Requirement,
) ([]results.Result, error) {
	ctx, span := rt.Tracer.Start(ctx, "validation.requirement", trace.WithAttributes(
		attribute.String("requirement_type", string(req.Type)),
		attribute.String("requirement_number", req.Number),
	))
	defer span.End()

	text := renderSingle(p, requirementVars(base, req))
	cmd, err := judge(ctx, rt, s, req, buildRequest(p, text, handles, false))
	if err != nil {
		return nil, err
	}
	if cmd.Failed {
		span.SetStatus(codes.Error, *cmd.Error)
	}

	res, err := storeResult(ctx, rt, cmd)
	if err != nil {
		return nil, err
	}
	return []results.Result{*res}, nil
}

// judge calls the provider for one requirement and turns the outcome into an
// upsert. Provider and parse failures become failed rows; only cancellation
// is returned as an error.
func judge(
	ctx context.Context,
	rt *Runtime,
	s *sessions.Session,
	req requirements.Requirement,
	call llm.Request,
) (results.UpsertCommand, error) {
	resp, err := generate(ctx, rt, call)
	if err != nil {
		if ctx.Err() != nil {
			return results.UpsertCommand{}, err
		}
		return failure(ctx, rt, s, req, err), nil
	}

	v, err := ParseVerdict(resp.Text)
	if err != nil {
		return failure(ctx, rt, s, req, err), nil
	}
	return results.Succeeded(s.ID, req, v), nil
}

func validateBatch(
	ctx context.Context,
	rt *Runtime,
	s *sessions.Session,
	p *prompts.Prompt,
	base prompts.Vars,
	handles []llm.FileHandle,
	chunk []requirements.Requirement,
) ([]results.Result, error) {
	ctx, span := rt.Tracer.Start(ctx, "validation.requirement", trace.WithAttributes(
		attribute.String("requirement_type", string(chunk[0].Type)),
		attribute.Int("batch_size", len(chunk)),
	))
	defer span.End()

	text, err := renderBatch(p, batchVars(base, chunk))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		verdicts map[string]results.Verdict
		failures map[string]error
		callErr  error
	)
	resp, err := generate(ctx, rt, buildRequest(p, text, handles, true))
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, err
	case err != nil:
		callErr = err
	default:
		verdicts, failures, callErr = ParseBatch(resp.Text)
	}

	written := make([]results.Result, 0, len(chunk))
	for _, req := range chunk {
		var cmd results.UpsertCommand
		switch v, ok := verdicts[req.Number]; {
		case callErr != nil:
			cmd = failure(ctx, rt, s, req, callErr)
		case ok:
			cmd = results.Succeeded(s.ID, req, v)
		case failures[req.Number] != nil:
			cmd = failure(ctx, rt, s, req, failures[req.Number])
		default:
			cmd = failure(ctx, rt, s, req, fmt.Errorf("%w: no verdict returned for requirement %s", ErrRequirementFailed, req.Number))
		}

		res, err := storeResult(ctx, rt, cmd)
		if err != nil {
			return written, err
		}
		written = append(written, *res)
	}
	return written, nil
}

func failure(ctx context.Context, rt *Runtime, s *sessions.Session, req requirements.Requirement, err error) results.UpsertCommand {
	reason := failureReason(err)
	rt.Logger.WarnContext(ctx, "requirement failed",
		"session_id", s.ID,
		"requirement_type", req.Type,
		"requirement_number", req.Number,
		"reason", reason,
	)
	return results.Failure(s.ID, req, reason)
}

// storeResult upserts a result. A session that stopped accepting results mid-run
// is an integrity violation.
func storeResult(ctx context.Context, rt *Runtime, cmd results.UpsertCommand) (*results.Result, error) {
	res, err := rt.Results.Upsert(ctx, cmd)
	if err != nil {
		if errors.Is(err, results.ErrSessionNotWritable) {
			return nil, fmt.Errorf("%w: %w", ErrSessionIntegrity, err)
		}
		return nil, fmt.Errorf("upsert result %s %s: %w", cmd.Requirement.Type, cmd.Requirement.Number, err)
	}
	return res, nil
}
