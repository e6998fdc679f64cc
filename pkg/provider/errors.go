package provider

import "fmt"

// ProviderError reports a response the provider returned but that cannot be
// used: a non-success status or a body that fails validation.
// StatusCode is zero for validation failures on a 2xx response.
type ProviderError struct {
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Detail)
	}
	return "provider response invalid: " + e.Detail
}

// NetworkError reports a transport failure talking to the provider:
// timeout, DNS, refused or reset connection, or a cancelled context
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
