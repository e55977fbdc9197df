// Package k3s fetches K3s distribution versions from GitHub releases.
package k3s

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

const (
	ProviderName   = "k3s"
	defaultBaseURL = "https://api.github.com"

	perPage = 100
)

type Provider struct {
	BaseURL string
	Client  *http.Client
	// Token authenticates against the GitHub API to lift the
	// unauthenticated rate limit. Optional.
	Token string
}

func New() *Provider {
	return &Provider{
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Token:   os.Getenv("GITHUB_TOKEN"),
	}
}

func (p *Provider) Name() string {
	return ProviderName
}

type githubRelease struct {
	TagName     string `json:"tag_name"`
	Draft       bool   `json:"draft"`
	PreRelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at"`
}

func (p *Provider) FetchVersions(ctx context.Context, opts provider.Options) ([]manifest.Release, error) {
	if err := opts.Validate("include-prereleases"); err != nil {
		return nil, err
	}
	includePrereleases := opts.Bool("include-prereleases", false)

	log.Debug().
		Bool("includePrereleases", includePrereleases).
		Msg("fetching K3s releases from GitHub")

	releases := make([]manifest.Release, 0)
	page := 1

	for {
		pageReleases, err := p.fetchReleasePage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(pageReleases) == 0 {
			break
		}

		for _, release := range pageReleases {
			if release.Draft {
				continue
			}
			if release.PreRelease && !includePrereleases {
				continue
			}
			if release.TagName == "" {
				continue
			}

			entry := manifest.Release{Version: release.TagName}
			if release.PublishedAt != "" {
				if published, err := time.Parse(time.RFC3339, release.PublishedAt); err == nil {
					utc := published.UTC()
					entry.ReleaseTimestamp = &utc
				}
			}
			releases = append(releases, entry)
		}

		log.Trace().
			Int("page", page).
			Int("pageReleases", len(pageReleases)).
			Int("totalReleases", len(releases)).
			Msg("fetched GitHub releases page")

		if len(pageReleases) < perPage {
			break
		}
		page++
	}

	log.Debug().Int("count", len(releases)).Msg("fetched K3s versions")

	return releases, nil
}

func (p *Provider) fetchReleasePage(ctx context.Context, page int) ([]githubRelease, error) {
	apiURL := fmt.Sprintf("%s/repos/k3s-io/k3s/releases?per_page=%d&page=%d", p.BaseURL, perPage, page)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if p.Token != "" {
		request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.Token))
	}

	response, err := p.Client.Do(request)
	if err != nil {
		return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: apiURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &provider.UpstreamUnavailableError{
			Provider: ProviderName,
			URL:      apiURL,
			Err:      fmt.Errorf("HTTP %d", response.StatusCode),
		}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: apiURL, Err: err}
	}

	var pageReleases []githubRelease
	if err := json.Unmarshal(body, &pageReleases); err != nil {
		return nil, &provider.UpstreamFormatError{Provider: ProviderName, URL: apiURL, Err: err}
	}

	return pageReleases, nil
}

func (p *Provider) CreateManifest(releases []manifest.Release) (*manifest.Manifest, error) {
	m := &manifest.Manifest{
		Releases:     manifest.Normalize(releases, nil),
		SourceURL:    "https://github.com/k3s-io/k3s",
		Homepage:     "https://k3s.io",
		ChangelogURL: "https://github.com/k3s-io/k3s/releases",
		Datasource:   manifest.DatasourceGitHubReleases,
	}

	if len(m.Releases) == 0 {
		return m, &provider.NoVersionsFoundError{Provider: ProviderName}
	}

	return m, nil
}
