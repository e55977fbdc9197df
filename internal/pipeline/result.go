package pipeline

import "github.com/mxcd/renovate-datasource/internal/manifest"

// ProviderResult is the outcome of invoking one provider within a batch
// run: a manifest on success, an error on failure. A provider that found
// no versions carries both the empty manifest and the error.
type ProviderResult struct {
	Provider string
	Manifest *manifest.Manifest
	Err      error
}

// BatchResult aggregates the outcomes of one RunAll call in registration
// order.
type BatchResult struct {
	Results   []ProviderResult
	Succeeded int
	Failed    int
}

// HasErrors reports whether any provider failed.
func (r *BatchResult) HasErrors() bool {
	return r.Failed > 0
}

// Manifests returns the successful manifests paired with their provider
// names, preserving batch order.
func (r *BatchResult) Manifests() map[string]*manifest.Manifest {
	manifests := make(map[string]*manifest.Manifest, r.Succeeded)
	for _, result := range r.Results {
		if result.Err == nil && result.Manifest != nil {
			manifests[result.Provider] = result.Manifest
		}
	}
	return manifests
}
