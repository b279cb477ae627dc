package documents

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/pkg/query"
	"github.com/JaimeStill/rtoval/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("session_id", "SessionID").
	Project("file_name", "FileName").
	Project("document_type", "DocumentType").
	Project("storage_key", "StorageKey").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("provider_file_uri", "ProviderFileURI").
	Project("provider_file_name", "ProviderFileName").
	Project("provider_mime_type", "ProviderMimeType").
	Project("uploaded_at", "UploadedAt").
	Project("expires_at", "ExpiresAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, session_id, file_name, document_type, storage_key, content_type, size_bytes,
	page_count, provider_file_uri, provider_file_name, provider_mime_type, uploaded_at, expires_at, updated_at`

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. FileName uses case-insensitive contains matching.
type Filters struct {
	SessionID    *uuid.UUID                 `json:"session_id,omitempty"`
	DocumentType *requirements.DocumentType `json:"document_type,omitempty"`
	FileName     *string                    `json:"file_name,omitempty"`
	ContentType  *string                    `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("SessionID", f.SessionID).
		WhereEquals("DocumentType", f.DocumentType).
		WhereContains("FileName", f.FileName).
		WhereEquals("ContentType", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("session_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.SessionID = &id
		}
	}

	if dt := values.Get("document_type"); dt != "" {
		if v, err := requirements.ParseDocumentType(dt); err == nil {
			f.DocumentType = &v
		}
	}

	if fn := values.Get("file_name"); fn != "" {
		f.FileName = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.SessionID,
		&d.FileName,
		&d.DocumentType,
		&d.StorageKey,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.ProviderFileURI,
		&d.ProviderFileName,
		&d.ProviderMimeType,
		&d.UploadedAt,
		&d.ExpiresAt,
		&d.UpdatedAt,
	)
	return d, err
}
