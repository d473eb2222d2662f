package falling

import "errors"

// ErrNoItems is returned when a lottery is built from an empty item list.
var ErrNoItems = errors.New("no items to draw from")
