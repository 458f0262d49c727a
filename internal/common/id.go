package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique render job ID
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewBatchID generates a unique render batch ID
// Format: batch_<uuid>
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}
