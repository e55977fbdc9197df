package k3s

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

const mockReleasesPage = `[
  {"tag_name": "v1.28.5+k3s1", "draft": false, "prerelease": false, "published_at": "2024-01-10T18:00:00Z"},
  {"tag_name": "v1.28.5-rc1+k3s1", "draft": false, "prerelease": true, "published_at": "2024-01-05T18:00:00Z"},
  {"tag_name": "v1.27.9+k3s1", "draft": false, "prerelease": false, "published_at": "2023-12-20T18:00:00Z"},
  {"tag_name": "v1.29.0+k3s1", "draft": true, "prerelease": false, "published_at": ""}
]`

func newTestProvider(serverURL string) *Provider {
	p := New()
	p.BaseURL = serverURL
	p.Token = ""
	return p
}

func TestFetchVersionsSkipsPrereleasesAndDrafts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/k3s-io/k3s/releases" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte("[]"))
			return
		}
		w.Write([]byte(mockReleasesPage))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	releases, err := p.FetchVersions(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(releases) != 2 {
		t.Fatalf("expected 2 releases (stable only), got %d", len(releases))
	}
	if releases[0].Version != "v1.28.5+k3s1" {
		t.Errorf("expected 'v1.28.5+k3s1', got %q", releases[0].Version)
	}
	if releases[0].ReleaseTimestamp == nil {
		t.Error("expected a release timestamp")
	}
}

func TestFetchVersionsIncludesPrereleases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte("[]"))
			return
		}
		w.Write([]byte(mockReleasesPage))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	releases, err := p.FetchVersions(context.Background(), provider.Options{"include-prereleases": "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(releases) != 3 {
		t.Fatalf("expected 3 releases with prereleases, got %d", len(releases))
	}
}

func TestFetchVersionsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.FetchVersions(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for HTTP 403")
	}
	var unavailable *provider.UpstreamUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UpstreamUnavailableError, got %T: %v", err, err)
	}
}

func TestCreateManifest(t *testing.T) {
	p := New()
	releases := []manifest.Release{
		{Version: "v1.28.5+k3s1"},
		{Version: "v1.27.9+k3s1"},
		{Version: "v1.28.5+k3s1"},
	}

	m, err := p.CreateManifest(releases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Releases) != 2 {
		t.Fatalf("expected 2 deduplicated releases, got %d", len(m.Releases))
	}
	if m.Releases[0].Version != "v1.27.9+k3s1" || m.Releases[1].Version != "v1.28.5+k3s1" {
		t.Errorf("unexpected order: %q, %q", m.Releases[0].Version, m.Releases[1].Version)
	}
	if m.SourceURL != "https://github.com/k3s-io/k3s" {
		t.Errorf("unexpected sourceUrl: %q", m.SourceURL)
	}
	if m.Datasource != manifest.DatasourceGitHubReleases {
		t.Errorf("expected github-releases datasource, got %q", m.Datasource)
	}
}

func TestCreateManifestEmpty(t *testing.T) {
	p := New()

	m, err := p.CreateManifest(nil)
	if err == nil {
		t.Fatal("expected NoVersionsFoundError for empty input")
	}
	var noVersions *provider.NoVersionsFoundError
	if !errors.As(err, &noVersions) {
		t.Fatalf("expected NoVersionsFoundError, got %T: %v", err, err)
	}
	if m == nil || len(m.Releases) != 0 {
		t.Error("expected an empty manifest alongside the error")
	}
}
