package provider

import "fmt"

// UpstreamUnavailableError is returned when the network call to an
// upstream source fails categorically (timeout, connection refused,
// non-2xx status). Retrying the whole run later may succeed.
type UpstreamUnavailableError struct {
	Provider string
	URL      string
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("provider %s: upstream unavailable at %s: %v", e.Provider, e.URL, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

// UpstreamFormatError is returned when an upstream response cannot be
// parsed into the expected shape. Not retryable without a code change.
type UpstreamFormatError struct {
	Provider string
	URL      string
	Err      error
}

func (e *UpstreamFormatError) Error() string {
	return fmt.Sprintf("provider %s: unexpected response format from %s: %v", e.Provider, e.URL, e.Err)
}

func (e *UpstreamFormatError) Unwrap() error {
	return e.Err
}

// NoVersionsFoundError is returned when provider-side filtering yields an
// empty version set. Whether this is fatal is the caller's policy.
type NoVersionsFoundError struct {
	Provider string
	Reason   string
}

func (e *NoVersionsFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("provider %s: no versions found: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("provider %s: no versions found", e.Provider)
}

// UnknownProviderError is returned when a registry lookup names an
// unregistered provider.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Name)
}

// DuplicateProviderError is returned when two providers register under
// the same name. Registration collisions are a programming error.
type DuplicateProviderError struct {
	Name string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider already registered: %s", e.Name)
}

// OutputWriteError is returned when a manifest cannot be written to its
// destination.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("failed to write manifest to %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}
