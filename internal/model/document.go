package model

import "time"

// Document represents a stored medical record.
// Filepath is the object storage key; clients treat it as opaque.
// JSON names follow the public API contract.
type Document struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Filepath    string    `json:"filepath"`
	Filesize    int64     `json:"filesize"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
