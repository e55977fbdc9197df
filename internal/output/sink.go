// Package output serializes manifests to their destinations.
package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mxcd/renovate-datasource/internal/manifest"
	"github.com/mxcd/renovate-datasource/internal/provider"
)

// Sink writes a manifest under a destination name and returns the final
// path. Writes are independent of one another; a failed write does not
// affect manifests already written.
type Sink interface {
	Write(m *manifest.Manifest, name string) (string, error)
}

// DirectorySink writes manifests as pretty-printed JSON files into a
// single directory, creating it on first use.
type DirectorySink struct {
	Dir string
}

func NewDirectorySink(dir string) *DirectorySink {
	return &DirectorySink{Dir: dir}
}

func (s *DirectorySink) Write(m *manifest.Manifest, name string) (string, error) {
	path := filepath.Join(s.Dir, SanitizeFilename(name)+".json")

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", &provider.OutputWriteError{Path: path, Err: err}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", &provider.OutputWriteError{Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &provider.OutputWriteError{Path: path, Err: err}
	}

	log.Debug().
		Str("path", path).
		Int("releases", len(m.Releases)).
		Msg("wrote manifest")

	return path, nil
}

// FileSink writes a single manifest to an explicit file path, creating
// parent directories as needed.
type FileSink struct {
	Path string
}

func (s *FileSink) Write(m *manifest.Manifest, _ string) (string, error) {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &provider.OutputWriteError{Path: s.Path, Err: err}
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", &provider.OutputWriteError{Path: s.Path, Err: err}
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return "", &provider.OutputWriteError{Path: s.Path, Err: err}
	}
	return s.Path, nil
}

// SanitizeFilename makes a destination name safe for the filesystem:
// path separators and colons become dashes, spaces become underscores.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
