package button

import "errors"

// ErrNoEdge is returned when no press is observed before the first-edge
// timeout expires during classification.
var ErrNoEdge = errors.New("no edge observed")
