package domain

import "errors"

var (
	// ErrTransport covers network failures and non-2xx feed responses.
	ErrTransport = errors.New("feed transport error")

	// ErrMalformedPayload is returned when the body parses but does not have
	// the expected shape, including an explicit status=false.
	ErrMalformedPayload = errors.New("malformed feed payload")
)
