package provider

import "errors"

// Setup errors. These are fatal: they are reported before any crawling starts.
var (
	// ErrUnknownProvider is returned when a config section key names no provider.
	ErrUnknownProvider = errors.New("unknown passive DNS provider")

	// ErrUnknownLetter is returned when a -d letter selects no provider.
	ErrUnknownLetter = errors.New("unknown passive DNS database identifier")

	// ErrMissingCredential is returned when a required setting is absent
	// from the provider's config section.
	ErrMissingCredential = errors.New("required provider setting is missing")
)

// Lookup errors. These are recoverable and are swallowed by the dispatcher.
var (
	// ErrRateLimited is returned when the provider kept refusing requests
	// after every retry attempt.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrUnexpectedStatus is returned for HTTP status codes the provider
	// does not document as success.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrMalformedReply is returned when a reply cannot be parsed.
	ErrMalformedReply = errors.New("malformed provider reply")

	// ErrProviderError is returned when the provider reports an error in
	// an otherwise well-formed reply.
	ErrProviderError = errors.New("provider reported an error")
)

// MissingSettingError names the setting a provider could not find.
type MissingSettingError struct {
	Section string
	Key     string
}

// Error implements the error interface.
func (e *MissingSettingError) Error() string {
	return e.Section + ": " + ErrMissingCredential.Error() + ": " + e.Key
}

// Unwrap returns ErrMissingCredential so callers can use errors.Is.
func (e *MissingSettingError) Unwrap() error {
	return ErrMissingCredential
}
