package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
)

// RevalidateCommand names one requirement of a session to run again.
type RevalidateCommand struct {
	SessionID         uuid.UUID         `json:"-"`
	RequirementType   requirements.Type `json:"requirement_type"`
	RequirementNumber string            `json:"requirement_number"`
}

// Validate checks the requirement key.
func (c RevalidateCommand) Validate() error {
	if _, err := requirements.ParseType(string(c.RequirementType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(c.RequirementNumber) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Revalidate re-runs one requirement of an under_review or finalised
// session and replaces its row. The session state and total are untouched;
// expired document handles and configuration errors are returned to the
// caller instead of failing the session.
func Revalidate(ctx context.Context, rt *Runtime, cmd RevalidateCommand) (*results.Result, error) {
	ctx, span := rt.Tracer.Start(ctx, "validation.revalidate", trace.WithAttributes(
		attribute.String("session_id", cmd.SessionID.String()),
		attribute.String("requirement_type", string(cmd.RequirementType)),
		attribute.String("requirement_number", cmd.RequirementNumber),
	))
	defer span.End()

	res, err := revalidate(ctx, rt, cmd)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func revalidate(ctx context.Context, rt *Runtime, cmd RevalidateCommand) (*results.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	s, err := rt.Sessions.Find(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if !s.State.AcceptsResults() {
		return nil, fmt.Errorf("%w: revalidation needs a reviewed session, got %s", ErrNotRunnable, s.State)
	}

	docs, err := rt.Documents.ListBySession(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	handles, err := liveHandles(s, docs, rt.now())
	if err != nil {
		return nil, err
	}

	reqs, err := rt.Requirements.Resolve(ctx, requirements.Query{
		UnitCode:     s.UnitCode,
		DocumentType: s.DocumentType,
		IncludeFixed: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve requirements: %w", err)
	}
	if len(reqs) != s.ResultTotal {
		return nil, fmt.Errorf("%w: unit %s now has %d requirements but the session total is fixed at %d",
			ErrConfiguration, s.UnitCode, len(reqs), s.ResultTotal)
	}

	key := results.Key{Type: cmd.RequirementType, Number: strings.TrimSpace(cmd.RequirementNumber)}
	idx := -1
	for i, r := range reqs {
		if results.KeyOf(r) == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s %s for unit %s", requirements.ErrNotFound, key.Type, key.Number, s.UnitCode)
	}
	req := reqs[idx]

	p, err := resolveRevalidationPrompt(ctx, rt, req.Type, s.DocumentType)
	if err != nil {
		return nil, err
	}

	vars := requirementVars(sessionVars(s, docs), req)
	prior, err := rt.Results.FindByKey(ctx, s.ID, key)
	switch {
	case err == nil:
		vars[prompts.VarPriorStatus] = string(prior.Status)
		vars[prompts.VarPriorReasoning] = prior.Reasoning
	case errors.Is(err, results.ErrNotFound):
	default:
		return nil, fmt.Errorf("load prior result: %w", err)
	}

	upsert, err := judge(ctx, rt, s, req, buildRequest(p, renderSingle(p, vars), handles, false))
	if err != nil {
		return nil, err
	}

	res, err := storeResult(ctx, rt, upsert)
	if err != nil {
		return nil, err
	}

	rt.Logger.InfoContext(ctx, "requirement revalidated",
		"session_id", s.ID,
		"requirement_type", req.Type,
		"requirement_number", req.Number,
		"status", res.Status,
		"failed", res.Failed,
	)
	return res, nil
}
