package testutil

import "errors"

// ErrMockConnection stands in for a broker or store that is unreachable.
var ErrMockConnection = errors.New("mock connection error")
