package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

type fakeProvider struct {
	name     string
	releases []manifest.Release
	fetchErr error
	panics   bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchVersions(ctx context.Context, opts provider.Options) ([]manifest.Release, error) {
	if p.panics {
		panic("fetch exploded")
	}
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.releases, nil
}

func (p *fakeProvider) CreateManifest(releases []manifest.Release) (*manifest.Manifest, error) {
	m := &manifest.Manifest{
		Releases:   manifest.Normalize(releases, nil),
		SourceURL:  "https://example.com/" + p.name,
		Datasource: manifest.DatasourceCustom,
	}
	if len(m.Releases) == 0 {
		return m, &provider.NoVersionsFoundError{Provider: p.name}
	}
	return m, nil
}

func registryWith(t *testing.T, providers ...*fakeProvider) *provider.Registry {
	t.Helper()
	registry := provider.NewRegistry()
	for _, p := range providers {
		if err := registry.Register(p.name, func() provider.Provider { return p }); err != nil {
			t.Fatalf("failed to register %s: %v", p.name, err)
		}
	}
	return registry
}

func TestRunSingleProvider(t *testing.T) {
	registry := registryWith(t, &fakeProvider{
		name:     "alpha",
		releases: []manifest.Release{{Version: "1.1.0"}, {Version: "1.0.0"}},
	})

	p := New(registry, 1)
	m, err := p.Run(context.Background(), "alpha", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(m.Releases))
	}
	if m.Releases[0].Version != "1.0.0" {
		t.Errorf("expected normalized ascending order, got %q first", m.Releases[0].Version)
	}
}

func TestRunUnknownProvider(t *testing.T) {
	p := New(provider.NewRegistry(), 1)

	_, err := p.Run(context.Background(), "missing", nil)
	var unknownErr *provider.UnknownProviderError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownProviderError, got %T: %v", err, err)
	}
}

func TestRunPropagatesFetchError(t *testing.T) {
	fetchErr := &provider.UpstreamUnavailableError{Provider: "alpha", URL: "https://example.com", Err: errors.New("timeout")}
	registry := registryWith(t, &fakeProvider{name: "alpha", fetchErr: fetchErr})

	p := New(registry, 1)
	_, err := p.Run(context.Background(), "alpha", nil)
	var unavailable *provider.UpstreamUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UpstreamUnavailableError, got %T: %v", err, err)
	}
}

func TestRunAllIsolatesFailures(t *testing.T) {
	registry := registryWith(t,
		&fakeProvider{name: "first", releases: []manifest.Release{{Version: "1.0.0"}}},
		&fakeProvider{name: "second", fetchErr: &provider.UpstreamUnavailableError{
			Provider: "second", URL: "https://example.com", Err: errors.New("connection refused"),
		}},
		&fakeProvider{name: "third", releases: []manifest.Release{{Version: "2.0.0"}}},
	)

	p := New(registry, 1)
	result := p.RunAll(context.Background(), nil)

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d / %d", result.Succeeded, result.Failed)
	}
	if !result.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(result.Results))
	}

	// Results keep registration order regardless of completion order.
	for i, name := range []string{"first", "second", "third"} {
		if result.Results[i].Provider != name {
			t.Errorf("position %d: expected %q, got %q", i, name, result.Results[i].Provider)
		}
	}
	if result.Results[0].Err != nil || result.Results[2].Err != nil {
		t.Error("expected first and third providers to succeed")
	}
	if result.Results[1].Err == nil {
		t.Error("expected second provider to fail")
	}

	manifests := result.Manifests()
	if len(manifests) != 2 {
		t.Fatalf("expected 2 successful manifests, got %d", len(manifests))
	}
	if manifests["first"] == nil || manifests["third"] == nil {
		t.Error("expected manifests for first and third providers")
	}
}

func TestRunAllRecoversFromPanic(t *testing.T) {
	registry := registryWith(t,
		&fakeProvider{name: "stable", releases: []manifest.Release{{Version: "1.0.0"}}},
		&fakeProvider{name: "panicky", panics: true},
	)

	p := New(registry, 2)
	result := p.RunAll(context.Background(), nil)

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 succeeded / 1 failed, got %d / %d", result.Succeeded, result.Failed)
	}
	if result.Results[1].Err == nil {
		t.Fatal("expected panicking provider to be recorded as failed")
	}
}

func TestRunAllNoVersionsFound(t *testing.T) {
	registry := registryWith(t, &fakeProvider{name: "empty"})

	p := New(registry, 1)
	result := p.RunAll(context.Background(), nil)

	if result.Failed != 1 {
		t.Fatalf("expected 1 failed result, got %d", result.Failed)
	}
	var noVersions *provider.NoVersionsFoundError
	if !errors.As(result.Results[0].Err, &noVersions) {
		t.Fatalf("expected NoVersionsFoundError, got %T: %v", result.Results[0].Err, result.Results[0].Err)
	}
	// The empty manifest still rides along for callers that treat this
	// as informational.
	if result.Results[0].Manifest == nil {
		t.Error("expected the empty manifest to be attached to the result")
	}
}

func TestRunAllOptionsRouting(t *testing.T) {
	captured := make(map[string]string)
	registry := provider.NewRegistry()
	registry.Register("alpha", func() provider.Provider {
		return &optionCapturingProvider{name: "alpha", captured: captured}
	})
	registry.Register("beta", func() provider.Provider {
		return &optionCapturingProvider{name: "beta", captured: captured}
	})

	p := New(registry, 1)
	p.RunAll(context.Background(), map[string]provider.Options{
		"alpha": {"flavor": "vanilla"},
		"beta":  {"flavor": "chocolate"},
	})

	if captured["alpha"] != "vanilla" || captured["beta"] != "chocolate" {
		t.Errorf("options were not routed per provider: %v", captured)
	}
}

type optionCapturingProvider struct {
	name     string
	captured map[string]string
}

func (p *optionCapturingProvider) Name() string { return p.name }

func (p *optionCapturingProvider) FetchVersions(ctx context.Context, opts provider.Options) ([]manifest.Release, error) {
	p.captured[p.name] = opts.String("flavor", "")
	return []manifest.Release{{Version: "1.0.0"}}, nil
}

func (p *optionCapturingProvider) CreateManifest(releases []manifest.Release) (*manifest.Manifest, error) {
	return &manifest.Manifest{Releases: releases, Datasource: manifest.DatasourceCustom}, nil
}
