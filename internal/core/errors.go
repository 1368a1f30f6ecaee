package core

import "errors"

var (
	// Classification errors
	ErrMalformedFirstLine = errors.New("sipcounter: malformed first line")

	// Link resolution errors
	ErrMissingInferenceData = errors.New("sipcounter: missing inference data")
	ErrUnknownProtocol      = errors.New("sipcounter: unknown transport protocol")

	// Producer errors
	ErrMalformedRecord  = errors.New("sipcounter: malformed input record")
	ErrSourceNotStarted = errors.New("sipcounter: source not started")

	// Configuration errors
	ErrConfigInvalid = errors.New("sipcounter: invalid configuration")
)
