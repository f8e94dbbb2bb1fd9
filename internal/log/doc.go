// Package log provides slog loggers that never write provider credentials.
//
// pdnstool talks to passive DNS services that authenticate with API keys in
// headers, in basic auth and in query strings. Debug logging of requests is
// the main troubleshooting tool, so SecureHandler masks:
//   - attributes whose key names a credential (apikey, api_token, x-api-key, ...)
//   - string values that look like keys or auth headers
//   - credential query parameters and passwords inside logged URLs
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("request", "url", "https://api.example/?apikey=abc")
//	// url=https://api.example/?apikey=%2A%2A%2AREDACTED%2A%2A%2A
package log
