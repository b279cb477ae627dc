package validation

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/rtoval/internal/documents"
	"github.com/JaimeStill/rtoval/internal/sessions"
	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/retry"
)

// prepare loads the session's documents, checks that each belongs to the
// session and returns a live provider handle per document. Documents without
// a handle are uploaded concurrently. When reupload is false an expired
// handle fails with ErrHandleExpired instead of being replaced.
func prepare(
	ctx context.Context,
	rt *Runtime,
	s *sessions.Session,
	reupload bool,
) ([]documents.Document, []llm.FileHandle, error) {
	ctx, span := rt.Tracer.Start(ctx, "validation.prepare")
	defer span.End()

	docs, err := rt.Documents.ListBySession(ctx, s.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNoDocuments)
	}
	if err := checkOwnership(s, docs); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	now := rt.now()
	var pending []int
	for i, d := range docs {
		_, ok := d.Handle()
		switch {
		case !ok:
			pending = append(pending, i)
		case d.HandleExpired(now) && reupload:
			pending = append(pending, i)
		case d.HandleExpired(now):
			err := fmt.Errorf("%w: %s expired at %s", ErrHandleExpired, d.FileName, d.ExpiresAt.Format(time.RFC3339))
			span.SetStatus(codes.Error, err.Error())
			return nil, nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("documents", len(docs)),
		attribute.Int("uploads", len(pending)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(rt.Config.UploadConcurrency, 1))

	for _, i := range pending {
		g.Go(func() error {
			doc, err := upload(gctx, rt, docs[i])
			if err != nil {
				return fmt.Errorf("upload %s: %w", docs[i].FileName, err)
			}
			docs[i] = *doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	handles := make([]llm.FileHandle, len(docs))
	for i, d := range docs {
		h, _ := d.Handle()
		handles[i] = h
	}

	rt.Logger.InfoContext(ctx, "documents prepared",
		"session_id", s.ID,
		"documents", len(docs),
		"uploaded", len(pending),
	)
	return docs, handles, nil
}

// liveHandles returns the handles of docs, failing with ErrHandleExpired
// when any is missing or past its expiry.
func liveHandles(s *sessions.Session, docs []documents.Document, now time.Time) ([]llm.FileHandle, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, ErrNoDocuments)
	}
	if err := checkOwnership(s, docs); err != nil {
		return nil, err
	}

	handles := make([]llm.FileHandle, len(docs))
	for i, d := range docs {
		h, ok := d.Handle()
		if !ok {
			return nil, fmt.Errorf("%w: %s was never uploaded", ErrHandleExpired, d.FileName)
		}
		if h.Expired(now) {
			return nil, fmt.Errorf("%w: %s expired at %s", ErrHandleExpired, d.FileName, h.ExpiresAt.Format(time.RFC3339))
		}
		handles[i] = h
	}
	return handles, nil
}

// expired reports the first handle past its expiry at now.
func expired(handles []llm.FileHandle, now time.Time) (llm.FileHandle, bool) {
	for _, h := range handles {
		if h.Expired(now) {
			return h, true
		}
	}
	return llm.FileHandle{}, false
}

func checkOwnership(s *sessions.Session, docs []documents.Document) error {
	for _, d := range docs {
		if d.SessionID != s.ID {
			return fmt.Errorf("%w: document %s belongs to session %s, not %s",
				ErrSessionIntegrity, d.ID, d.SessionID, s.ID)
		}
	}
	return nil
}

func upload(ctx context.Context, rt *Runtime, d documents.Document) (*documents.Document, error) {
	_, rc, err := rt.Documents.Open(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	handle, err := retry.DoValue(ctx, rt.Retry, func(ctx context.Context) (llm.FileHandle, error) {
		return rt.Provider.Upload(ctx, d.FileName, d.ContentType, data)
	}, func(attempt int, delay time.Duration, err error) {
		rt.Logger.WarnContext(ctx, "document upload retry",
			"document_id", d.ID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	})
	if err != nil {
		return nil, err
	}

	return rt.Documents.AttachHandle(ctx, d.ID, d.SessionID, handle)
}
