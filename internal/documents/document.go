// Package documents implements the session document store. Each uploaded
// file is kept in blob storage under its session and carries the
// time-limited provider file handle the validation calls reference.
package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rtoval/internal/requirements"
	"github.com/JaimeStill/rtoval/pkg/llm"
)

// Document represents an uploaded assessment file belonging to one session.
type Document struct {
	ID               uuid.UUID                 `json:"id"`
	SessionID        uuid.UUID                 `json:"session_id"`
	FileName         string                    `json:"file_name"`
	DocumentType     requirements.DocumentType `json:"document_type"`
	StorageKey       string                    `json:"storage_key"`
	ContentType      string                    `json:"content_type"`
	SizeBytes        int64                     `json:"size_bytes"`
	PageCount        *int                      `json:"page_count"`
	ProviderFileURI  *string                   `json:"provider_file_uri"`
	ProviderFileName *string                   `json:"provider_file_name"`
	ProviderMimeType *string                   `json:"provider_mime_type"`
	UploadedAt       time.Time                 `json:"uploaded_at"`
	ExpiresAt        *time.Time                `json:"expires_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Handle returns the provider file handle, or false when none is attached.
func (d Document) Handle() (llm.FileHandle, bool) {
	if d.ProviderFileURI == nil || *d.ProviderFileURI == "" {
		return llm.FileHandle{}, false
	}

	h := llm.FileHandle{URI: *d.ProviderFileURI, MimeType: d.ContentType}
	if d.ProviderFileName != nil {
		h.Name = *d.ProviderFileName
	}
	if d.ProviderMimeType != nil && *d.ProviderMimeType != "" {
		h.MimeType = *d.ProviderMimeType
	}
	if d.ExpiresAt != nil {
		h.ExpiresAt = *d.ExpiresAt
	}
	return h, true
}

// HandleExpired reports whether an attached handle is no longer usable at now.
// Documents without a handle are not expired; they still need uploading.
func (d Document) HandleExpired(now time.Time) bool {
	h, ok := d.Handle()
	return ok && h.Expired(now)
}

// CreateCommand carries the data needed to upload and register a document.
// PageCount is optional and extracted by the handler via pdfcpu.
type CreateCommand struct {
	SessionID   uuid.UUID
	Data        []byte
	FileName    string
	ContentType string
	PageCount   *int
}
