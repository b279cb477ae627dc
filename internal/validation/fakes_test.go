package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/JaimeStill/rtoval/internal/config"
	"github.com/JaimeStill/rtoval/internal/documents"
	"github.com/JaimeStill/rtoval/internal/prompts"
	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/internal/results"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/ratelimit"
	"github.com/JaimeStill/rtoval/pkg/retry"
)

const testUnit = "TLIF0025"

// clock is a settable time source shared by the store and provider fakes.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// store is an in-memory implementation of every store the runtime uses.
// Transitions and upserts follow the same rules as the SQL repositories.
type store struct {
	mu       sync.Mutex
	clock    *clock
	sessions map[uuid.UUID]*sessions.Session
	docs     map[uuid.UUID][]documents.Document
	blobs    map[uuid.UUID][]byte
	reqs     map[string][]requirements.Requirement
	prompts  map[prompts.Key]*prompts.Prompt
	results  map[uuid.UUID]map[results.Key]results.Result

	// progress records every result_count a session reported after an upsert.
	progress map[uuid.UUID][]int
}

func newStore(c *clock) *store {
	return &store{
		clock:    c,
		sessions: make(map[uuid.UUID]*sessions.Session),
		docs:     make(map[uuid.UUID][]documents.Document),
		blobs:    make(map[uuid.UUID][]byte),
		reqs:     make(map[string][]requirements.Requirement),
		prompts:  make(map[prompts.Key]*prompts.Prompt),
		results:  make(map[uuid.UUID]map[results.Key]results.Result),
		progress: make(map[uuid.UUID][]int),
	}
}

// seedUnit loads a unit with 12 knowledge evidence,
// 9 performance evidence, 1 foundation skill and 12 performance criteria.
func (s *store) seedUnit(unit string) {
	counts := []struct {
		t requirements.Type
		n int
	}{
		{requirements.KnowledgeEvidence, 12},
		{requirements.PerformanceEvidence, 9},
		{requirements.FoundationSkills, 1},
		{requirements.PerformanceCriteria, 12},
	}

	var id int64
	var reqs []requirements.Requirement
	for _, c := range counts {
		for i := 1; i <= c.n; i++ {
			id++
			reqs = append(reqs, requirements.Requirement{
				ID:       id,
				UnitCode: unit,
				Type:     c.t,
				Number:   fmt.Sprintf("%d", i),
				Text:     fmt.Sprintf("%s item %d", c.t, i),
			})
		}
	}

	s.mu.Lock()
	s.reqs[unit] = reqs
	s.mu.Unlock()
}

// seedPrompts installs a validation and a batch validation default for every
// requirement type.
func (s *store) seedPrompts(docType requirements.DocumentType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := map[prompts.TaskType]string{
		prompts.TaskValidation:      "Assess {{requirement_type}} {{requirement_number}} for {{unit_code}}: {{requirement_text}}",
		prompts.TaskBatchValidation: "Assess these {{requirement_type}} requirements for {{unit_code}}:\n{{requirements}}",
	}
	for task, text := range texts {
		for _, t := range requirements.Types() {
			key := prompts.Key{TaskType: task, RequirementType: t, DocumentType: docType}
			s.prompts[key] = &prompts.Prompt{
				ID:              uuid.New(),
				Name:            "default " + string(task) + " " + string(t),
				TaskType:        task,
				RequirementType: t,
				DocumentType:    docType,
				Text:            text,
				IsActive:        true,
				IsDefault:       true,
			}
		}
	}
}

// editUnit replaces a unit's database rows, as a re-import would.
func (s *store) editUnit(unit string, edit func([]requirements.Requirement) []requirements.Requirement) {
	s.mu.Lock()
	s.reqs[unit] = edit(slices.Clone(s.reqs[unit]))
	s.mu.Unlock()
}

// setPrompt replaces the default prompt text for a key.
func (s *store) setPrompt(key prompts.Key, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[key] = &prompts.Prompt{
		ID:              uuid.New(),
		Name:            "custom " + key.String(),
		TaskType:        key.TaskType,
		RequirementType: key.RequirementType,
		DocumentType:    key.DocumentType,
		Text:            text,
		IsActive:        true,
		IsDefault:       true,
	}
}

func (s *store) dropPrompt(key prompts.Key) {
	s.mu.Lock()
	delete(s.prompts, key)
	s.mu.Unlock()
}

// addSession opens a pending session with one document per file name.
func (s *store) addSession(unit string, files ...string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	id := uuid.New()
	s.sessions[id] = &sessions.Session{
		ID:           id,
		UnitCode:     unit,
		RTOCode:      "RTO-1",
		DocumentType: requirements.DocumentUnit,
		State:        sessions.StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, f := range files {
		d := documents.Document{
			ID:           uuid.New(),
			SessionID:    id,
			FileName:     f,
			DocumentType: requirements.DocumentUnit,
			ContentType:  "application/pdf",
			UploadedAt:   now,
			UpdatedAt:    now,
		}
		s.docs[id] = append(s.docs[id], d)
		s.blobs[d.ID] = []byte("%PDF-" + f)
	}
	return id
}

func (s *store) session(id uuid.UUID) sessions.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

func (s *store) resultRows(id uuid.UUID) []results.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.results[id]))
}

// SessionStore

func (s *store) Find(_ context.Context, id uuid.UUID) (*sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	cp := *sess
	cp.Derive()
	return &cp, nil
}

func (s *store) ListByState(_ context.Context, states ...sessions.State) ([]sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sessions.Session
	for _, sess := range s.sessions {
		if slices.Contains(states, sess.State) {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *store) transition(id uuid.UUID, to sessions.State, apply func(*sessions.Session) error) (*sessions.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	if !sessions.CanTransition(sess.State, to) {
		return nil, fmt.Errorf("%w: %s to %s", sessions.ErrInvalidTransition, sess.State, to)
	}
	if apply != nil {
		if err := apply(sess); err != nil {
			return nil, err
		}
	}
	sess.State = to
	sess.UpdatedAt = s.clock.Now()
	cp := *sess
	cp.Derive()
	return &cp, nil
}

func (s *store) BeginProcessing(_ context.Context, id uuid.UUID) (*sessions.Session, error) {
	return s.transition(id, sessions.StateProcessing, nil)
}

func (s *store) BeginReview(_ context.Context, id uuid.UUID, total int) (*sessions.Session, error) {
	return s.transition(id, sessions.StateUnderReview, func(sess *sessions.Session) error {
		if sess.ResultTotal == 0 {
			sess.ResultTotal = total
		}
		return nil
	})
}

func (s *store) Finalise(_ context.Context, id uuid.UUID) (*sessions.Session, error) {
	return s.transition(id, sessions.StateFinalised, func(sess *sessions.Session) error {
		if sess.ResultTotal == 0 || sess.ResultCount != sess.ResultTotal {
			return fmt.Errorf("%w: %d of %d", sessions.ErrIncomplete, sess.ResultCount, sess.ResultTotal)
		}
		now := s.clock.Now()
		sess.CompletedAt = &now
		return nil
	})
}

func (s *store) Fail(_ context.Context, id uuid.UUID, reason string) (*sessions.Session, error) {
	return s.transition(id, sessions.StateError, func(sess *sessions.Session) error {
		sess.ErrorReason = &reason
		return nil
	})
}

// DocumentStore

func (s *store) ListBySessionDocs(id uuid.UUID) []documents.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.docs[id])
}

func (s *store) Open(_ context.Context, id uuid.UUID) (*documents.Document, io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, nil, documents.ErrNotFound
	}
	return &documents.Document{ID: id}, io.NopCloser(bytes.NewReader(data)), nil
}

func (s *store) AttachHandle(_ context.Context, id, sessionID uuid.UUID, h llm.FileHandle) (*documents.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.docs[sessionID] {
		if d.ID != id {
			continue
		}
		uri, name, expires := h.URI, h.Name, h.ExpiresAt
		d.ProviderFileURI = &uri
		d.ProviderFileName = &name
		d.ExpiresAt = &expires
		s.docs[sessionID][i] = d
		return &d, nil
	}
	return nil, documents.ErrNotFound
}

// RequirementStore

func (s *store) Resolve(_ context.Context, q requirements.Query) ([]requirements.Requirement, error) {
	s.mu.Lock()
	reqs := slices.Clone(s.reqs[q.UnitCode])
	s.mu.Unlock()
	return requirements.Assemble(q.UnitCode, reqs, q.IncludeFixed)
}

// PromptStore

func (s *store) ResolveDefault(_ context.Context, key prompts.Key) (*prompts.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", prompts.ErrNoDefault, key)
	}
	cp := *p
	return &cp, nil
}

// resultStore adapts store to ResultStore; ListBySession collides with the
// document store method of the same name.
type resultStore struct{ *store }

func (r resultStore) ListBySession(_ context.Context, id uuid.UUID) ([]results.Result, error) {
	rows := r.resultRows(id)
	slices.SortFunc(rows, func(a, b results.Result) int {
		return requirements.Compare(a.RequirementType, a.RequirementNumber, b.RequirementType, b.RequirementNumber)
	})
	return rows, nil
}

func (r resultStore) FindByKey(_ context.Context, id uuid.UUID, key results.Key) (*results.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id][key]
	if !ok {
		return nil, results.ErrNotFound
	}
	return &res, nil
}

func (r resultStore) Upsert(_ context.Context, cmd results.UpsertCommand) (*results.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[cmd.SessionID]
	if !ok {
		return nil, results.ErrSessionNotFound
	}
	if !sess.State.AcceptsResults() {
		return nil, fmt.Errorf("%w: %s", results.ErrSessionNotWritable, sess.State)
	}

	rows := r.results[cmd.SessionID]
	if rows == nil {
		rows = make(map[results.Key]results.Result)
		r.results[cmd.SessionID] = rows
	}

	now := r.clock.Now()
	key := results.KeyOf(cmd.Requirement)
	res, exists := rows[key]
	if !exists {
		res = results.Result{ID: uuid.New(), SessionID: cmd.SessionID, CreatedAt: now}
	}
	res.RequirementID = cmd.Requirement.ID
	res.RequirementType = cmd.Requirement.Type
	res.RequirementNumber = cmd.Requirement.Number
	res.RequirementText = cmd.Requirement.Text
	res.Status = cmd.Verdict.Status
	res.Reasoning = cmd.Verdict.Reasoning
	res.MappedContent = cmd.Verdict.MappedContent
	res.Citations = slices.Clone(cmd.Verdict.Citations)
	res.SmartQuestion = cmd.Verdict.SmartQuestion
	res.BenchmarkAnswer = cmd.Verdict.BenchmarkAnswer
	res.Failed = cmd.Failed
	res.Error = cmd.Error
	res.UpdatedAt = now
	rows[key] = res

	sess.ResultCount = max(sess.ResultCount, len(rows))
	r.progress[cmd.SessionID] = append(r.progress[cmd.SessionID], sess.ResultCount)
	return &res, nil
}

// documentStore adapts store to DocumentStore.
type documentStore struct{ *store }

func (d documentStore) ListBySession(_ context.Context, id uuid.UUID) ([]documents.Document, error) {
	return d.ListBySessionDocs(id), nil
}

// provider is a scripted llm.Provider. By default every call returns a Met
// verdict citing the files attached to the request; respond overrides that.
type provider struct {
	mu      sync.Mutex
	clock   *clock
	ttl     time.Duration
	uploads int
	calls   []llm.Request
	respond func(n int, req llm.Request) (*llm.Response, error)
}

func (p *provider) Name() string  { return "fake" }
func (p *provider) Model() string { return "fake-model" }

func (p *provider) Upload(_ context.Context, name, mimeType string, _ []byte) (llm.FileHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads++
	return llm.FileHandle{
		URI:       "https://files.test/" + name,
		Name:      "files/" + name,
		MimeType:  mimeType,
		ExpiresAt: p.clock.Now().Add(p.ttl),
	}, nil
}

func (p *provider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	n := len(p.calls)
	respond := p.respond
	p.mu.Unlock()

	if respond != nil {
		return respond(n, req)
	}
	return &llm.Response{Text: verdictJSON(req, results.StatusMet)}, nil
}

func (p *provider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *provider) uploadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploads
}

func citations(req llm.Request) []string {
	out := make([]string, len(req.Files))
	for i, f := range req.Files {
		out[i] = f.Name + " p.1"
	}
	return out
}

func verdict(req llm.Request, status results.Status) results.Verdict {
	return results.Verdict{
		Status:          status,
		Reasoning:       "The assessment addresses the requirement.",
		MappedContent:   "Task 1, question 3.",
		Citations:       citations(req),
		SmartQuestion:   "Describe the procedure.",
		BenchmarkAnswer: "The candidate follows the procedure.",
	}
}

func verdictJSON(req llm.Request, status results.Status) string {
	b, _ := json.Marshal(verdict(req, status))
	return string(b)
}

var batchLine = regexp.MustCompile(`(?m)^- (\S+):`)

// batchJSON answers every requirement listed in a batch prompt except skip.
func batchJSON(req llm.Request, skip ...string) string {
	type item struct {
		RequirementNumber string `json:"requirement_number"`
		results.Verdict
	}
	var items []item
	for _, m := range batchLine.FindAllStringSubmatch(req.Prompt, -1) {
		if slices.Contains(skip, m[1]) {
			continue
		}
		items = append(items, item{RequirementNumber: m[1], Verdict: verdict(req, results.StatusMet)})
	}
	b, _ := json.Marshal(map[string]any{"results": items})
	return string(b)
}

type harness struct {
	clock    *clock
	store    *store
	provider *provider
	rt       *Runtime
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	c := &clock{now: time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)}
	st := newStore(c)
	st.seedUnit(testUnit)
	st.seedPrompts(requirements.DocumentUnit)

	p := &provider{clock: c, ttl: 48 * time.Hour}

	cfg := config.ValidationConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize config: %v", err)
	}

	return &harness{
		clock:    c,
		store:    st,
		provider: p,
		rt: &Runtime{
			Provider:     p,
			Pacer:        ratelimit.NewPacer(0, 0),
			Retry:        retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			Tracer:       noop.NewTracerProvider().Tracer("test"),
			Sessions:     st,
			Documents:    documentStore{st},
			Requirements: st,
			Prompts:      st,
			Results:      resultStore{st},
			Config:       cfg,
			Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			Now:          c.Now,
		},
	}
}

func hasPrefix(reason *string, prefix string) bool {
	return reason != nil && strings.HasPrefix(*reason, prefix)
}
