package verification

import "errors"

// ErrInvalidConfig is returned for scorer weights or thresholds that cannot be applied
var ErrInvalidConfig = errors.New("invalid verification config")
