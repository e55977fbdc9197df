package redhat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

const mockCatalogPage = `{
  "total": 3,
  "data": [
    {
      "repositories": [{"tags": [{"name": "9.4-1194"}]}],
      "parsed_data": {"created": "2024-05-02T08:15:00Z"},
      "manifest_schema2_digest": "abc123"
    },
    {
      "repositories": [{"tags": [{"name": "9.5-1734081738"}]}],
      "parsed_data": {"created": "2024-12-13T09:22:18Z"}
    },
    {
      "repositories": [{"tags": [{"name": "latest"}]}]
    }
  ]
}`

func newTestProvider(serverURL string) *Provider {
	p := New()
	p.BaseURL = serverURL
	return p
}

func TestFetchVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repositories/registry/registry.access.redhat.com/repository/ubi9/ubi/images" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(mockCatalogPage))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	releases, err := p.FetchVersions(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(releases) != 3 {
		t.Fatalf("expected 3 raw releases, got %d", len(releases))
	}
	if releases[0].Version != "9.4-1194" {
		t.Errorf("expected first version '9.4-1194', got %q", releases[0].Version)
	}
	if releases[0].Digest != "sha256:abc123" {
		t.Errorf("expected digest 'sha256:abc123', got %q", releases[0].Digest)
	}
	wantCreated := time.Date(2024, 5, 2, 8, 15, 0, 0, time.UTC)
	if releases[0].ReleaseTimestamp == nil || !releases[0].ReleaseTimestamp.Equal(wantCreated) {
		t.Errorf("expected timestamp %v, got %v", wantCreated, releases[0].ReleaseTimestamp)
	}
	if releases[1].Digest != "" {
		t.Errorf("expected empty digest for second release, got %q", releases[1].Digest)
	}
}

func TestFetchVersionsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.FetchVersions(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for HTTP 502")
	}
	var unavailable *provider.UpstreamUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UpstreamUnavailableError, got %T: %v", err, err)
	}
}

func TestFetchVersionsFormatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	_, err := p.FetchVersions(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
	var formatErr *provider.UpstreamFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected UpstreamFormatError, got %T: %v", err, err)
	}
}

func TestFetchVersionsRejectsUnknownOption(t *testing.T) {
	p := New()
	_, err := p.FetchVersions(context.Background(), provider.Options{"bogus": "x"})
	if err == nil {
		t.Fatal("expected error for unrecognized option")
	}
}

func TestCreateManifestFiltersAndSorts(t *testing.T) {
	p := New()
	releases := []manifest.Release{
		{Version: "9.5-1734081738"},
		{Version: "latest"},
		{Version: "9.4-1194", Digest: "sha256:abc"},
		{Version: "9.4-1194"},
	}

	m, err := p.CreateManifest(releases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.Releases) != 2 {
		t.Fatalf("expected 2 releases after filtering and deduplication, got %d", len(m.Releases))
	}
	if m.Releases[0].Version != "9.4-1194" || m.Releases[1].Version != "9.5-1734081738" {
		t.Errorf("unexpected order: %q, %q", m.Releases[0].Version, m.Releases[1].Version)
	}
	if m.Releases[0].Digest != "sha256:abc" {
		t.Errorf("expected first-seen digest to survive deduplication, got %q", m.Releases[0].Digest)
	}
	if m.Datasource != manifest.DatasourceDocker {
		t.Errorf("expected docker datasource, got %q", m.Datasource)
	}
	if m.SourceURL != "https://registry.access.redhat.com/ubi9/ubi" {
		t.Errorf("unexpected sourceUrl: %q", m.SourceURL)
	}
}

func TestCreateManifestDeterministic(t *testing.T) {
	p := New()
	releases := []manifest.Release{
		{Version: "9.5-1734081738"},
		{Version: "9.4-1194"},
		{Version: "9.3-100"},
	}

	first, err := p.CreateManifest(releases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.CreateManifest(releases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range first.Releases {
		if first.Releases[i].Version != second.Releases[i].Version {
			t.Errorf("position %d differs between runs: %q vs %q",
				i, first.Releases[i].Version, second.Releases[i].Version)
		}
	}
}

func TestCreateManifestEmptyAfterFiltering(t *testing.T) {
	p := New()

	m, err := p.CreateManifest([]manifest.Release{{Version: "latest"}, {Version: "9"}})
	if err == nil {
		t.Fatal("expected NoVersionsFoundError")
	}
	var noVersions *provider.NoVersionsFoundError
	if !errors.As(err, &noVersions) {
		t.Fatalf("expected NoVersionsFoundError, got %T: %v", err, err)
	}
	if m == nil || len(m.Releases) != 0 {
		t.Error("expected an empty manifest alongside the error")
	}
}
