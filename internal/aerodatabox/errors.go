package aerodatabox

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials means no API key is configured. No call is made.
	ErrMissingCredentials = errors.New("aerodatabox: missing api key")

	// ErrInvalidInput means a required parameter is missing or malformed
	ErrInvalidInput = errors.New("aerodatabox: invalid input")

	// ErrEmptyBody means the provider answered with success but no data
	ErrEmptyBody = errors.New("empty response body")

	// ErrParse means the provider answered with something that is not the expected JSON
	ErrParse = errors.New("malformed provider response")
)

// ProviderError is a failed call to one provider endpoint. Status is zero
// when the request never got a response (transport failure).
type ProviderError struct {
	Call   string
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Call, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status code: %d", e.Call, e.Status)
}

func (e *ProviderError) Unwrap() error { return e.Err }
