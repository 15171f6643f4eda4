package embedding

import "errors"

// ErrLocalUnavailable is returned when the local model cannot be used, for
// example in a binary built without cgo.
var ErrLocalUnavailable = errors.New("local embedding model unavailable")
