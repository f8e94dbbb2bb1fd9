package dispatch

import "errors"

// ErrProviderPanic is reported to the log when a provider panics during a
// lookup. The dispatcher treats it like any other provider failure.
var ErrProviderPanic = errors.New("provider panicked")
