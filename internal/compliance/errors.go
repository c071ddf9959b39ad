package compliance

import "errors"

// ErrUnknownFramework is returned when an override names an unsupported framework
var ErrUnknownFramework = errors.New("unknown framework")
