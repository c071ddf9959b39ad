package engine

import "errors"

var (
	ErrSubjectRequired = errors.New("subject is required")
	ErrRunNotFound     = errors.New("verification run not found")
	ErrProfileNotFound = errors.New("organization profile not found")
	ErrSameSubject     = errors.New("cannot merge a subject into itself")
	ErrQuotaExceeded   = errors.New("monthly document quota exceeded")
	ErrTamperedRun     = errors.New("verification run content hash mismatch")
	ErrAlreadyCredited = errors.New("records already credited by another run")
)
