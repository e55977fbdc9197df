// Package redhat fetches container versions from the Red Hat Container
// Catalog (Pyxis API).
package redhat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

const (
	ProviderName   = "redhat-catalog"
	defaultBaseURL = "https://catalog.redhat.com/api/containers/v1"

	defaultImagePath = "ubi9/ubi"
	defaultRegistry  = "registry.access.redhat.com"

	pageSize = 100
)

// versionPattern matches catalog tags shaped like 9.5-1734081738.
var versionPattern = regexp.MustCompile(`^\d+\.\d+-\d+$`)

type Provider struct {
	BaseURL string
	Client  *http.Client

	imagePath string
	registry  string
}

func New() *Provider {
	return &Provider{
		BaseURL:   defaultBaseURL,
		Client:    &http.Client{Timeout: 30 * time.Second},
		imagePath: defaultImagePath,
		registry:  defaultRegistry,
	}
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) FetchVersions(ctx context.Context, opts provider.Options) ([]manifest.Release, error) {
	if err := opts.Validate("image-path", "registry"); err != nil {
		return nil, err
	}
	p.imagePath = opts.String("image-path", defaultImagePath)
	p.registry = opts.String("registry", defaultRegistry)

	log.Debug().
		Str("imagePath", p.imagePath).
		Str("registry", p.registry).
		Msg("fetching Red Hat catalog images")

	releases := make([]manifest.Release, 0)
	page := 0

	for {
		imagesURL := fmt.Sprintf("%s/repositories/registry/%s/repository/%s/images?page_size=%d&page=%d",
			p.BaseURL, p.registry, p.imagePath, pageSize, page)

		pageData, err := p.fetchImagePage(ctx, imagesURL)
		if err != nil {
			return nil, err
		}

		for _, image := range pageData.Data {
			if release, ok := parseCatalogImage(image); ok {
				releases = append(releases, release)
			}
		}

		log.Trace().
			Int("page", page).
			Int("pageImages", len(pageData.Data)).
			Int("totalReleases", len(releases)).
			Msg("fetched catalog page")

		if len(pageData.Data) == 0 || (page+1)*pageSize >= pageData.Total {
			break
		}
		page++
	}

	log.Debug().
		Int("count", len(releases)).
		Str("imagePath", p.imagePath).
		Msg("fetched Red Hat catalog versions")

	return releases, nil
}

type catalogImage struct {
	Repositories []struct {
		Tags []struct {
			Name string `json:"name"`
		} `json:"tags"`
	} `json:"repositories"`
	ParsedData struct {
		Created string `json:"created"`
	} `json:"parsed_data"`
	ManifestSchema2Digest string `json:"manifest_schema2_digest"`
}

type catalogPage struct {
	Data  []catalogImage `json:"data"`
	Total int            `json:"total"`
}

func (p *Provider) fetchImagePage(ctx context.Context, imagesURL string) (*catalogPage, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, imagesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := p.Client.Do(request)
	if err != nil {
		return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: imagesURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &provider.UpstreamUnavailableError{
			Provider: ProviderName,
			URL:      imagesURL,
			Err:      fmt.Errorf("HTTP %d", response.StatusCode),
		}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: imagesURL, Err: err}
	}

	var pageData catalogPage
	if err := json.Unmarshal(body, &pageData); err != nil {
		return nil, &provider.UpstreamFormatError{Provider: ProviderName, URL: imagesURL, Err: err}
	}

	return &pageData, nil
}

// parseCatalogImage extracts the first tag of an image record together
// with its created timestamp and manifest digest. Images without tags are
// skipped.
func parseCatalogImage(image catalogImage) (manifest.Release, bool) {
	if len(image.Repositories) == 0 || len(image.Repositories[0].Tags) == 0 {
		return manifest.Release{}, false
	}
	version := image.Repositories[0].Tags[0].Name
	if version == "" {
		return manifest.Release{}, false
	}

	release := manifest.Release{Version: version}

	if image.ParsedData.Created != "" {
		if created, err := time.Parse(time.RFC3339, image.ParsedData.Created); err == nil {
			utc := created.UTC()
			release.ReleaseTimestamp = &utc
		}
	}
	if image.ManifestSchema2Digest != "" {
		release.Digest = "sha256:" + image.ManifestSchema2Digest
	}

	return release, true
}

func (p *Provider) CreateManifest(releases []manifest.Release) (*manifest.Manifest, error) {
	filtered := make([]manifest.Release, 0, len(releases))
	for _, release := range releases {
		if versionPattern.MatchString(release.Version) {
			filtered = append(filtered, release)
		}
	}

	m := &manifest.Manifest{
		Releases:    manifest.Normalize(filtered, nil),
		SourceURL:   fmt.Sprintf("https://%s/%s", p.registry, p.imagePath),
		Homepage:    fmt.Sprintf("https://catalog.redhat.com/software/containers/%s", url.PathEscape(p.imagePath)),
		RegistryURL: "https://catalog.redhat.com",
		Datasource:  manifest.DatasourceDocker,
	}

	if len(m.Releases) == 0 {
		reason := fmt.Sprintf("no tags matching major.minor-timestamp format for %s", p.imagePath)
		return m, &provider.NoVersionsFoundError{Provider: ProviderName, Reason: reason}
	}

	return m, nil
}
