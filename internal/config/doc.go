// Package config provides the run configuration of pdnstool and the
// provider file that carries credentials for each passive DNS service.
//
// Run options come from CLI flags and are validated once, before any
// provider is contacted. Provider credentials live in a YAML file
// (.pdnstool) so they never appear on the command line or in shell history.
package config
