package models

import (
	"time"

	"github.com/google/uuid"
)

// Media — фотография с места происшествия, прикреплённая к вызову.
type Media struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EmergencyID uuid.UUID `db:"emergency_id" json:"emergency_id"`
	UploaderID  uuid.UUID `db:"uploader_id" json:"uploader_id"`
	Path        string    `db:"path" json:"path"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
