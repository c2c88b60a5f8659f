package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// metadataPath resolves name against the metadata root. It reports false for
// plugins without a metadata root and for paths inside a classpath entry.
func (p *Plugin) metadataPath(name string) (string, bool) {
	if p.metadataRoot == "" {
		return "", false
	}

	path := filepath.Clean(name)
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.metadataRoot, name)
	}

	if p.entryKeys.Matches(entryKey(path)) {
		p.log.WithField("metadata", name).Debug("Metadata request inside classpath rejected")
		return "", false
	}
	return path, true
}

// LoadMetadata reads the metadata file name of p and decodes it. It reports
// false when the plugin has no such metadata: no metadata root, a path inside
// the classpath, or a file that cannot be read. Errors from decode are
// returned as is, so absent and malformed metadata stay distinguishable.
func LoadMetadata[T any](p *Plugin, name string, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T

	data, ok := p.readMetadata(name)
	if !ok {
		return zero, false, nil
	}

	v, err := decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("decode metadata %s of plugin %s: %w", name, p.name, err)
	}
	return v, true, nil
}

func (p *Plugin) readMetadata(name string) ([]byte, bool) {
	path, ok := p.metadataPath(name)
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		p.log.WithError(err).WithField("metadata", name).Debug("Metadata not readable")
		return nil, false
	}
	return data, true
}

// BinaryMetadata returns the raw bytes of metadata file name
func (p *Plugin) BinaryMetadata(name string) ([]byte, bool) {
	return p.readMetadata(name)
}

// TextMetadata returns metadata file name as a string
func (p *Plugin) TextMetadata(name string) (string, bool) {
	data, ok := p.readMetadata(name)
	return string(data), ok
}

// YAMLMetadata decodes metadata file name as YAML
func YAMLMetadata[T any](p *Plugin, name string) (T, bool, error) {
	return LoadMetadata(p, name, func(data []byte) (T, error) {
		var v T
		err := yaml.Unmarshal(data, &v)
		return v, err
	})
}
