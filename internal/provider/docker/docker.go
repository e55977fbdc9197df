// Package docker lists tags from container registries: Docker Hub via
// its repositories API, everything else via the Registry v2 API with
// token-exchange auth.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

const (
	ProviderName = "docker"

	hubPageSize = 100
	v2PageSize  = 100
)

type Provider struct {
	Client      *http.Client
	Credentials Credentials
	// BaseURL overrides the registry URL derived from the image
	// reference. Mainly for tests and registry mirrors.
	BaseURL string

	image          *ImageInfo
	tagPattern     string
	excludePattern string
}

func New() *Provider {
	return &Provider{
		Client:      &http.Client{Timeout: 30 * time.Second},
		Credentials: Credentials{AuthType: AuthTypeNone},
	}
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) FetchVersions(ctx context.Context, opts provider.Options) ([]manifest.Release, error) {
	if err := opts.Validate("image", "tag-pattern", "exclude-pattern", "tag-limit"); err != nil {
		return nil, err
	}

	image := opts.String("image", "")
	if image == "" {
		return nil, fmt.Errorf("docker provider requires the 'image' option")
	}
	imageInfo, err := ParseImageURL(image)
	if err != nil {
		return nil, err
	}
	p.image = imageInfo
	p.tagPattern = opts.String("tag-pattern", "")
	p.excludePattern = opts.String("exclude-pattern", "")
	tagLimit := opts.Int("tag-limit", 0)
	if tagLimit < 0 {
		tagLimit = 0
	}

	log.Debug().
		Str("registry", imageInfo.Registry).
		Str("repository", imageInfo.Repository).
		Int("tagLimit", tagLimit).
		Msg("fetching container image tags")

	var releases []manifest.Release
	if imageInfo.Registry == "" {
		releases, err = p.fetchHubTags(ctx, imageInfo, tagLimit)
	} else {
		releases, err = p.fetchV2Tags(ctx, imageInfo, tagLimit)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("count", len(releases)).
		Str("repository", imageInfo.Repository).
		Msg("fetched container image tags")

	return releases, nil
}

// fetchHubTags pages through the Docker Hub repositories API, which
// carries push timestamps and digests alongside tag names.
func (p *Provider) fetchHubTags(ctx context.Context, imageInfo *ImageInfo, tagLimit int) ([]manifest.Release, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = "https://registry.hub.docker.com"
	}
	nextURL := fmt.Sprintf("%s/v2/repositories/%s/tags?page_size=%d", baseURL, imageInfo.Repository, hubPageSize)

	releases := make([]manifest.Release, 0)
	page := 0

	for nextURL != "" {
		if tagLimit > 0 && len(releases) >= tagLimit {
			break
		}
		page++

		body, err := p.get(ctx, nextURL)
		if err != nil {
			return nil, err
		}

		var pageResponse struct {
			Next    string `json:"next"`
			Results []struct {
				Name          string `json:"name"`
				TagLastPushed string `json:"tag_last_pushed"`
				Digest        string `json:"digest"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &pageResponse); err != nil {
			return nil, &provider.UpstreamFormatError{Provider: ProviderName, URL: nextURL, Err: err}
		}

		for _, result := range pageResponse.Results {
			if tagLimit > 0 && len(releases) >= tagLimit {
				break
			}
			release := manifest.Release{Version: result.Name, Digest: result.Digest}
			if result.TagLastPushed != "" {
				if pushed, err := time.Parse(time.RFC3339, result.TagLastPushed); err == nil {
					utc := pushed.UTC()
					release.ReleaseTimestamp = &utc
				}
			}
			releases = append(releases, release)
		}

		nextURL = pageResponse.Next

		log.Trace().
			Int("page", page).
			Int("pageTags", len(pageResponse.Results)).
			Int("totalTags", len(releases)).
			Bool("hasNext", nextURL != "").
			Msg("fetched Docker Hub tags page")
	}

	return releases, nil
}

// fetchV2Tags pages through a Registry v2 tags list, following Link
// headers and handling 401 token-exchange challenges.
func (p *Provider) fetchV2Tags(ctx context.Context, imageInfo *ImageInfo, tagLimit int) ([]manifest.Release, error) {
	registryURL := p.BaseURL
	if registryURL == "" {
		registryURL = imageInfo.RegistryBaseURL()
	}
	nextURL := fmt.Sprintf("%s/v2/%s/tags/list?n=%d", registryURL, imageInfo.Repository, v2PageSize)

	releases := make([]manifest.Release, 0)

	for nextURL != "" {
		if tagLimit > 0 && len(releases) >= tagLimit {
			break
		}

		response, err := doAuthenticatedRequest(p.Client, nextURL, p.Credentials, imageInfo.Repository)
		if err != nil {
			return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: nextURL, Err: err}
		}

		if response.StatusCode != http.StatusOK {
			response.Body.Close()
			return nil, &provider.UpstreamUnavailableError{
				Provider: ProviderName,
				URL:      nextURL,
				Err:      fmt.Errorf("HTTP %d", response.StatusCode),
			}
		}

		body, err := io.ReadAll(response.Body)
		linkHeader := response.Header.Get("Link")
		response.Body.Close()
		if err != nil {
			return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: nextURL, Err: err}
		}

		var tagList struct {
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}
		if err := json.Unmarshal(body, &tagList); err != nil {
			return nil, &provider.UpstreamFormatError{Provider: ProviderName, URL: nextURL, Err: err}
		}

		for _, tag := range tagList.Tags {
			if tagLimit > 0 && len(releases) >= tagLimit {
				break
			}
			releases = append(releases, manifest.Release{Version: tag})
		}

		nextURL = nextPageURL(linkHeader, registryURL)
	}

	return releases, nil
}

func (p *Provider) get(ctx context.Context, requestURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	applyStaticAuth(request, p.Credentials)

	response, err := p.Client.Do(request)
	if err != nil {
		return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: requestURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &provider.UpstreamUnavailableError{
			Provider: ProviderName,
			URL:      requestURL,
			Err:      fmt.Errorf("HTTP %d", response.StatusCode),
		}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &provider.UpstreamUnavailableError{Provider: ProviderName, URL: requestURL, Err: err}
	}
	return body, nil
}

func (p *Provider) CreateManifest(releases []manifest.Release) (*manifest.Manifest, error) {
	filtered, err := p.filterReleases(releases)
	if err != nil {
		return nil, err
	}

	m := &manifest.Manifest{
		Releases:   manifest.Normalize(filtered, nil),
		Datasource: manifest.DatasourceDocker,
	}
	if p.image != nil {
		m.SourceURL = p.image.SourceURL()
		m.RegistryURL = p.image.RegistryBaseURL()
	}

	if len(m.Releases) == 0 {
		return m, &provider.NoVersionsFoundError{Provider: ProviderName, Reason: "no tags matched the configured patterns"}
	}
	return m, nil
}

func (p *Provider) filterReleases(releases []manifest.Release) ([]manifest.Release, error) {
	var tagPatternRe *regexp.Regexp
	if p.tagPattern != "" {
		var err error
		tagPatternRe, err = regexp.Compile(p.tagPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid tag pattern %q: %w", p.tagPattern, err)
		}
	}

	var excludePatternRe *regexp.Regexp
	if p.excludePattern != "" {
		var err error
		excludePatternRe, err = regexp.Compile(p.excludePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p.excludePattern, err)
		}
	}

	filtered := make([]manifest.Release, 0, len(releases))
	for _, release := range releases {
		if tagPatternRe != nil && !tagPatternRe.MatchString(release.Version) {
			continue
		}
		if excludePatternRe != nil && excludePatternRe.MatchString(release.Version) {
			continue
		}
		filtered = append(filtered, release)
	}
	return filtered, nil
}
