// Package manifest reads and checks the Python package manifest
// (pyproject.toml) that declares the coretex SDK's metadata, its build
// backend and its runtime dependencies.
package manifest

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/biomech/coretex/internal/model"
)

// DefaultPath is the manifest file name looked up in a project root.
const DefaultPath = "pyproject.toml"

// Manifest is the subset of pyproject.toml the tooling understands.
type Manifest struct {
	BuildSystem BuildSystem `toml:"build-system" json:"buildSystem"`
	Project     Project     `toml:"project" json:"project"`
}

// BuildSystem is the [build-system] table.
type BuildSystem struct {
	Requires     []string `toml:"requires" json:"requires"`
	BuildBackend string   `toml:"build-backend" json:"buildBackend"`
}

// Project is the [project] table.
type Project struct {
	Name           string            `toml:"name" json:"name"`
	Version        string            `toml:"version" json:"version"`
	Description    string            `toml:"description" json:"description"`
	Readme         string            `toml:"readme" json:"readme"`
	RequiresPython string            `toml:"requires-python" json:"requiresPython"`
	Authors        []Author          `toml:"authors" json:"authors"`
	Dependencies   []string          `toml:"dependencies" json:"dependencies"`
	Classifiers    []string          `toml:"classifiers" json:"classifiers"`
	URLs           map[string]string `toml:"urls" json:"urls,omitempty"`
}

// Author is one entry of project.authors.
type Author struct {
	Name  string `toml:"name" json:"name"`
	Email string `toml:"email" json:"email,omitempty"`
}

// Parse decodes manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Load reads and decodes the manifest at path. Read and parse failures are
// returned as a CLIError with ExitManifestInvalid.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitManifestInvalid,
			fmt.Sprintf("failed to read manifest %s", path), err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitManifestInvalid,
			fmt.Sprintf("invalid manifest %s", path), err)
	}
	return m, nil
}

// Requirements parses every runtime dependency. The first malformed entry
// aborts parsing.
func (m *Manifest) Requirements() ([]Requirement, error) {
	reqs := make([]Requirement, 0, len(m.Project.Dependencies))
	for _, dep := range m.Project.Dependencies {
		r, err := ParseRequirement(dep)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}
