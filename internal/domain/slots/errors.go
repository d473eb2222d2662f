package slots

import "errors"

// ErrInvariant marks a broken slot/identity invariant.
var ErrInvariant = errors.New("slot invariant violated")
