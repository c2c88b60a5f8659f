package plugins

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the metadata file describing a directory plugin
const ManifestFile = "plugin.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// Manifest describes a plugin. It is optional metadata; discovery never reads it.
type Manifest struct {
	Name        string            `yaml:"name" json:"name"`                         // Display name
	Version     string            `yaml:"version" json:"version"`                   // Semver
	Description string            `yaml:"description" json:"description,omitempty"` // Short description
	Author      string            `yaml:"author" json:"author,omitempty"`           // Author name
	License     string            `yaml:"license" json:"license,omitempty"`         // License (e.g., MIT, Apache-2.0)
	Homepage    string            `yaml:"homepage" json:"homepage,omitempty"`       // Homepage URL
	Services    []string          `yaml:"services" json:"services,omitempty"`       // Services the plugin provides
	Metadata    map[string]string `yaml:"metadata" json:"metadata,omitempty"`       // Additional metadata
}

// ValidationError describes one invalid manifest field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseManifest parses a plugin manifest
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// Manifest loads the plugin's manifest. It reports false when the plugin has
// none and returns an error when the manifest is malformed.
func (p *Plugin) Manifest() (*Manifest, bool, error) {
	return LoadMetadata(p, ManifestFile, ParseManifest)
}

// ValidateManifest performs basic validation on a plugin manifest
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	if manifest.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "name",
			Message: "Plugin name is required",
		})
	}

	if manifest.Version == "" {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: "Version is required",
		})
	} else if !isValidSemver(manifest.Version) {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("Invalid semver format: %s", manifest.Version),
		})
	}

	for i, service := range manifest.Services {
		if service == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("services[%d]", i),
				Message: "Service name must not be empty",
			})
		}
	}

	return errors
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}
