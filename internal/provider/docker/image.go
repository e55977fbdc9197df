package docker

import (
	"fmt"
	"strings"
)

// ImageInfo is a parsed container image reference.
type ImageInfo struct {
	Registry   string // "ghcr.io", "gcr.io", or empty for Docker Hub
	Repository string // "library/nginx", "myorg/myapp"
	Tag        string // tag component, if the reference carried one
}

// ParseImageURL extracts registry, repository, and optional tag from an
// image reference. Accepted forms include "nginx", "nginx:1.21",
// "myorg/myapp:v1.2.3", "gcr.io/project/app", and
// "registry.example.com:5000/org/app".
func ParseImageURL(reference string) (*ImageInfo, error) {
	if reference == "" {
		return nil, fmt.Errorf("empty image reference")
	}

	reference = strings.TrimPrefix(reference, "docker://")
	reference = strings.TrimPrefix(reference, "https://")
	reference = strings.TrimPrefix(reference, "http://")

	// Separate a trailing tag from a registry port. A colon introduces a
	// tag only when the part before it contains a slash or is not a
	// domain-looking name.
	var tag string
	if idx := strings.LastIndex(reference, ":"); idx != -1 {
		afterColon := reference[idx+1:]
		beforeColon := reference[:idx]
		if !strings.Contains(afterColon, "/") &&
			(strings.Contains(beforeColon, "/") || !strings.Contains(beforeColon, ".")) {
			tag = afterColon
			reference = beforeColon
		}
	}

	var registry, repository string
	parts := strings.Split(reference, "/")
	switch {
	case len(parts) == 1:
		repository = "library/" + parts[0]
	case len(parts) == 2:
		first := parts[0]
		if strings.Contains(first, ".") || strings.Contains(first, ":") || first == "localhost" {
			registry = first
			repository = parts[1]
		} else {
			repository = reference
		}
	default:
		registry = parts[0]
		repository = strings.Join(parts[1:], "/")
	}

	if registry == "docker.io" || registry == "index.docker.io" {
		registry = ""
	}

	if repository == "" {
		return nil, fmt.Errorf("invalid image reference: %s (no repository found)", reference)
	}

	return &ImageInfo{
		Registry:   registry,
		Repository: repository,
		Tag:        tag,
	}, nil
}

// RegistryBaseURL returns the HTTPS base URL of the registry hosting the
// image, defaulting to Docker Hub.
func (i *ImageInfo) RegistryBaseURL() string {
	if i.Registry == "" {
		return "https://registry.hub.docker.com"
	}
	if strings.HasPrefix(i.Registry, "http://") || strings.HasPrefix(i.Registry, "https://") {
		return i.Registry
	}
	return "https://" + i.Registry
}

// SourceURL returns the canonical image URL used as manifest provenance.
func (i *ImageInfo) SourceURL() string {
	if i.Registry == "" {
		return "docker.io/" + i.Repository
	}
	return i.Registry + "/" + i.Repository
}
