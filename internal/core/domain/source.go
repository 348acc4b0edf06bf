package domain

import "time"

type SourceStatus string

const (
	SourceUploaded   SourceStatus = "uploaded"
	SourceProcessing SourceStatus = "processing"
	SourceIndexed    SourceStatus = "indexed"
	SourceFailed     SourceStatus = "failed"
)

// SourceDocument is one uploaded source text (a statute, an ordinance, a
// legal-code section) destined for a vector index namespace.
type SourceDocument struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Type        string       `json:"type,omitempty"`
	Namespace   string       `json:"namespace"`
	Filename    string       `json:"filename"`
	MimeType    string       `json:"mime_type"`
	StoragePath string       `json:"storage_path"`
	Status      SourceStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
