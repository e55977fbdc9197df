// Package pipeline orchestrates manifest generation: provider lookup,
// invocation with per-provider failure isolation, and aggregate
// reporting for batch runs.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

const DefaultWorkers = 4

type Pipeline struct {
	registry *provider.Registry
	workers  int
	// Progress controls whether batch runs render a progress bar.
	Progress bool
}

func New(registry *provider.Registry, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		registry: registry,
		workers:  workers,
	}
}

// Run executes a single provider by name. Errors propagate directly to
// the caller; a NoVersionsFoundError is returned together with the empty
// manifest so the caller can decide whether it is fatal.
func (p *Pipeline) Run(ctx context.Context, name string, opts provider.Options) (*manifest.Manifest, error) {
	factory, err := p.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return invoke(ctx, factory(), opts)
}

// RunAll executes every registered provider. Failures are captured as
// ProviderResult entries and never abort sibling providers; results are
// reported in registration order after every provider has completed.
func (p *Pipeline) RunAll(ctx context.Context, optsByProvider map[string]provider.Options) *BatchResult {
	names := p.registry.Names()

	log.Debug().
		Int("count", len(names)).
		Int("workers", p.workers).
		Msg("starting batch manifest generation")

	var bar *progressbar.ProgressBar
	if p.Progress {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetDescription("Generating manifests:"),
			progressbar.OptionSetItsString("provider"),
			progressbar.OptionShowIts(),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	results := make([]ProviderResult, len(names))

	group := &errgroup.Group{}
	group.SetLimit(p.workers)
	for i, name := range names {
		group.Go(func() error {
			factory, err := p.registry.Get(name)
			if err != nil {
				// Names came from the registry itself, so this cannot
				// happen; recorded rather than dropped regardless.
				results[i] = ProviderResult{Provider: name, Err: err}
				return nil
			}

			m, err := safeInvoke(ctx, factory(), optsByProvider[name])
			results[i] = ProviderResult{Provider: name, Manifest: m, Err: err}

			if err != nil {
				log.Error().Err(err).Str("provider", name).Msg("provider failed")
			} else {
				log.Debug().
					Str("provider", name).
					Int("releases", len(m.Releases)).
					Msg("provider completed")
			}

			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	group.Wait()

	if bar != nil {
		bar.Finish()
		fmt.Printf("\n")
	}

	result := &BatchResult{Results: results}
	for _, r := range results {
		if r.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	if result.HasErrors() {
		log.Warn().
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Msg("batch run finished with errors")
	} else {
		log.Debug().Int("succeeded", result.Succeeded).Msg("batch run finished")
	}

	return result
}

func invoke(ctx context.Context, p provider.Provider, opts provider.Options) (*manifest.Manifest, error) {
	releases, err := p.FetchVersions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p.CreateManifest(releases)
}

// safeInvoke shields sibling batch units from a panicking provider.
func safeInvoke(ctx context.Context, p provider.Provider, opts provider.Options) (m *manifest.Manifest, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return invoke(ctx, p, opts)
}
