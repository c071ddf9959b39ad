package credits

import "errors"

var (
	// ErrInvalidGradeBands is returned when grade cut-offs overlap, leave a gap or fall outside [0,1]
	ErrInvalidGradeBands = errors.New("invalid grade bands")
)
