package common

import (
	"github.com/google/uuid"
)

// NewResultID generates a unique sync result ID with the "res_" prefix
// Format: res_<uuid>
func NewResultID() string {
	return "res_" + uuid.New().String()
}

// NewRunID generates a unique batch run ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}
