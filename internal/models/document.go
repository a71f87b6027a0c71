package models

import (
	"time"
)

// DocumentMetadata describes an uploaded document.
type DocumentMetadata struct {
	Filename  string    `json:"filename"`
	Extension string    `json:"extension"`
	MimeType  string    `json:"mimeType"`
	FileSize  int64     `json:"fileSize"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExtractionTask is the payload of a queued text extraction.
type ExtractionTask struct {
	ID         string           `json:"id"`
	StorageKey string           `json:"storageKey"`
	Document   DocumentMetadata `json:"document"`
	Priority   int              `json:"priority"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)

// IsFinal reports whether no further transitions happen from s.
func (s ProcessingStatus) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
