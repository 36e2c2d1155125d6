package config

import "errors"

// Sentinel errors for configuration failures. Both are fatal to the
// cycle: nothing is reconciled on top of broken config.
var (
	ErrMissingFile     = errors.New("config file missing")
	ErrMalformedRecord = errors.New("malformed config record")
)
