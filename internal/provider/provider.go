package provider

import (
	"context"

	"github.com/mxcd/renovate-datasource/internal/manifest"
)

// Provider is the contract every version source implements. FetchVersions
// performs all I/O; CreateManifest is a pure transformation so it can be
// exercised without network access.
type Provider interface {
	// Name returns the stable identifier used for registry lookup and
	// error attribution. Must be non-empty and unique.
	Name() string

	// FetchVersions queries the upstream source and returns raw releases.
	// It fails with an UpstreamUnavailableError when the network call
	// fails categorically and with an UpstreamFormatError when the
	// response cannot be parsed into the expected shape.
	FetchVersions(ctx context.Context, opts Options) ([]manifest.Release, error)

	// CreateManifest applies provider-specific filtering and the shared
	// normalization to the raw releases. It returns the (possibly empty)
	// manifest together with a NoVersionsFoundError when filtering yields
	// no releases; callers decide whether that is fatal.
	CreateManifest(releases []manifest.Release) (*manifest.Manifest, error)
}

// Factory produces a fresh provider instance.
type Factory func() Provider
