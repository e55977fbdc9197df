package manifest

import "time"

// Datasource identifies how a consuming Renovate configuration should
// interpret a manifest.
type Datasource string

const (
	DatasourceDocker         Datasource = "docker"
	DatasourceGitHubReleases Datasource = "github-releases"
	DatasourceCustom         Datasource = "custom"
)

// Release is a single version record within a manifest.
type Release struct {
	Version          string     `json:"version"`
	ReleaseTimestamp *time.Time `json:"releaseTimestamp,omitempty"`
	Digest           string     `json:"digest,omitempty"`
}

// Manifest is the Renovate custom datasource document: an ordered list of
// releases plus provenance metadata. Optional fields are omitted rather
// than emitted as null so that absence signals "unknown" to consumers.
type Manifest struct {
	Releases     []Release  `json:"releases"`
	SourceURL    string     `json:"sourceUrl"`
	Homepage     string     `json:"homepage,omitempty"`
	ChangelogURL string     `json:"changelogUrl,omitempty"`
	RegistryURL  string     `json:"registryUrl,omitempty"`
	Datasource   Datasource `json:"datasource"`
}
