package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/pkg/llm"
	"github.com/JaimeStill/rtoval/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)

	// ListBySession returns every document of a session, oldest first.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Document, error)

	// Create stores the blob and registers the document against a pending
	// or errored session, inheriting the session's document type.
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)

	// Open returns the document and a reader over its blob. The caller
	// must close the reader.
	Open(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error)

	// AttachHandle records the provider file handle for a document of sessionID.
	AttachHandle(ctx context.Context, id, sessionID uuid.UUID, handle llm.FileHandle) (*Document, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
