package tiers

import "errors"

var (
	// ErrUnknownTier is returned by Parse for an unrecognised tier name
	ErrUnknownTier = errors.New("unknown subscription tier")

	// ErrFeatureNotAvailable is returned when a tier lacks the requested capability
	ErrFeatureNotAvailable = errors.New("feature not available on this tier")
)
