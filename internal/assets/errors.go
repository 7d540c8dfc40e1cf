package assets

import "errors"

// ErrNotFound indicates the requested asset does not exist, typically because
// it was deleted while another operation was in flight.
var ErrNotFound = errors.New("asset not found")
