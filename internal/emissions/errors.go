package emissions

import "errors"

var (
	// ErrExtractionFailed is returned when the upstream extractor reported a failure.
	// It blocks the pipeline, unlike scoring degradation which only lowers the score.
	ErrExtractionFailed = errors.New("document extraction failed")

	// ErrInvalidPayload is returned for ExtractedData that cannot be decoded at all
	ErrInvalidPayload = errors.New("invalid extracted data payload")

	// ErrInvalidRecord is returned when a record violates a data model invariant
	ErrInvalidRecord = errors.New("invalid emission record")
)
