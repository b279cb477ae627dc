package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/documents"
	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/llm"
)

// resolvePrompt loads the default prompt for a key. Missing or ambiguous
// defaults are configuration errors.
func resolvePrompt(ctx context.Context, rt *Runtime, key prompts.Key) (*prompts.Prompt, error) {
	p, err := rt.Prompts.ResolveDefault(ctx, key)
	if err != nil {
		if errors.Is(err, prompts.ErrNoDefault) || errors.Is(err, prompts.ErrMultipleDefaults) {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("resolve prompt %s: %w", key, err)
	}
	return p, nil
}

// resolveRevalidationPrompt prefers the revalidation default and falls back
// to the validation default when none is configured.
func resolveRevalidationPrompt(
	ctx context.Context,
	rt *Runtime,
	reqType requirements.Type,
	docType requirements.DocumentType,
) (*prompts.Prompt, error) {
	key := prompts.Key{TaskType: prompts.TaskRevalidation, RequirementType: reqType, DocumentType: docType}

	p, err := rt.Prompts.ResolveDefault(ctx, key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, prompts.ErrNoDefault) {
		return resolvePrompt(ctx, rt, key)
	}

	rt.Logger.InfoContext(ctx, "no revalidation prompt, using validation prompt", "key", key.String())
	key.TaskType = prompts.TaskValidation
	return resolvePrompt(ctx, rt, key)
}

func sessionVars(s *sessions.Session, docs []documents.Document) prompts.Vars {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.FileName
	}
	return prompts.Vars{
		prompts.VarSessionID:     s.ID.String(),
		prompts.VarUnitCode:      s.UnitCode,
		prompts.VarRTOCode:       s.RTOCode,
		prompts.VarDocumentType:  string(s.DocumentType),
		prompts.VarDocumentNames: strings.Join(names, ", "),
	}
}

func requirementVars(base prompts.Vars, req requirements.Requirement) prompts.Vars {
	vars := maps.Clone(base)
	vars[prompts.VarRequirementType] = req.Type.Label()
	vars[prompts.VarRequirementNumber] = req.Number
	vars[prompts.VarRequirementText] = req.Text
	vars[prompts.VarElementNumber] = deref(req.ElementNumber)
	vars[prompts.VarElementName] = deref(req.ElementName)
	return vars
}

func batchVars(base prompts.Vars, reqs []requirements.Requirement) prompts.Vars {
	vars := maps.Clone(base)
	if len(reqs) > 0 {
		vars[prompts.VarRequirementType] = reqs[0].Type.Label()
	}
	vars[prompts.VarRequirements] = requirementList(reqs)
	return vars
}

// renderSingle renders a one-requirement prompt. Templates that do not
// reference the requirement get it appended so the call is never ambiguous.
func renderSingle(p *prompts.Prompt, vars prompts.Vars) string {
	text := p.Render(vars)
	placeholders := prompts.Placeholders(p.Text)
	if slices.Contains(placeholders, prompts.VarRequirementText) {
		return text
	}
	return text + fmt.Sprintf("\n\nRequirement %s (%s): %s",
		vars[prompts.VarRequirementNumber],
		vars[prompts.VarRequirementType],
		vars[prompts.VarRequirementText],
	)
}

// renderBatch renders a batch prompt and the response contract for it. A
// template with placeholders the batch does not supply, such as a
// per-requirement {{requirement_text}}, is a configuration error.
func renderBatch(p *prompts.Prompt, vars prompts.Vars) (string, error) {
	if missing := prompts.Unresolved(p.Text, vars); len(missing) > 0 {
		return "", fmt.Errorf("%w: prompt %q leaves %s unfilled in a batch call",
			ErrConfiguration, p.Name, strings.Join(missing, ", "))
	}

	var sb strings.Builder
	sb.WriteString(p.Render(vars))
	if !slices.Contains(prompts.Placeholders(p.Text), prompts.VarRequirements) {
		sb.WriteString("\n\nRequirements:\n")
		sb.WriteString(vars[prompts.VarRequirements])
	}
	sb.WriteString("\n\nReturn one entry in \"results\" per requirement, keyed by requirement_number.")
	return sb.String(), nil
}

// validationTask is the prompt task a strategy resolves.
func validationTask(strategy string) prompts.TaskType {
	if strategy == config.StrategyBatch {
		return prompts.TaskBatchValidation
	}
	return prompts.TaskValidation
}

func requirementList(reqs []requirements.Requirement) string {
	lines := make([]string, len(reqs))
	for i, r := range reqs {
		lines[i] = fmt.Sprintf("- %s: %s", r.Number, r.Text)
	}
	return strings.Join(lines, "\n")
}

// buildRequest assembles the provider call. A prompt's own schema applies to
// single-requirement calls only; batches always use BatchSchema.
func buildRequest(p *prompts.Prompt, text string, handles []llm.FileHandle, batch bool) llm.Request {
	var schema json.RawMessage
	switch {
	case batch:
		schema = BatchSchema
	case len(p.OutputSchema) > 0:
		schema = p.OutputSchema
	default:
		schema = VerdictSchema
	}
	return llm.Request{
		Files:             handles,
		SystemInstruction: deref(p.SystemInstruction),
		Prompt:            text,
		ResponseSchema:    schema,
		GenerationConfig:  p.GenerationConfig,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
