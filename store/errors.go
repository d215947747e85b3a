package store

import "errors"

// ErrNotFound is the "null" error class spec.md §4.2 describes: the key is
// missing or has expired. Command handlers translate it to a RESP3 Null
// reply rather than a SimpleError.
var ErrNotFound = errors.New("store: key not found")
