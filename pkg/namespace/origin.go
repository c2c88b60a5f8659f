package namespace

import (
	"net/url"
	"path/filepath"
	"strings"
)

const (
	// ArchiveExt is the file extension of archive classpath entries
	ArchiveExt = ".zip"

	// PlatformScheme is the URL scheme of platform resources. Platform resources are always visible.
	PlatformScheme = "platform"

	// ArchiveScheme is the URL scheme of resources inside an archive
	ArchiveScheme = "zip"

	// FileScheme is the URL scheme of archives, directories and the resources inside directories
	FileScheme = "file"
)

// IsArchive reports whether path names an archive classpath entry.
func IsArchive(path string) bool {
	return strings.HasSuffix(path, ArchiveExt)
}

// ArchiveOrigin returns the origin of an archive classpath entry.
func ArchiveOrigin(path string) *url.URL {
	return &url.URL{Scheme: FileScheme, Path: filepath.ToSlash(path)}
}

// DirectoryOrigin returns the origin of a directory classpath entry.
// Directory origins always end with a slash so that "/a/b/" never claims "/a/bc".
func DirectoryOrigin(path string) *url.URL {
	p := filepath.ToSlash(path)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return &url.URL{Scheme: FileScheme, Path: p}
}

// ArchiveLocation returns the location of the resource name inside the archive at origin.
func ArchiveLocation(archive *url.URL, name string) *url.URL {
	return &url.URL{Scheme: ArchiveScheme, Opaque: archive.String() + "!/" + name}
}

// DirectoryLocation returns the location of the resource name inside the directory at origin.
func DirectoryLocation(dir *url.URL, name string) *url.URL {
	return &url.URL{Scheme: FileScheme, Path: dir.Path + name}
}

// PlatformLocation returns the location of a platform resource.
func PlatformLocation(name string) *url.URL {
	return &url.URL{Scheme: PlatformScheme, Opaque: name}
}

// LocationPath returns the path used to match loc against origins: the opaque
// part for archive resources, the plain path otherwise.
func LocationPath(loc *url.URL) string {
	if loc.Opaque != "" {
		return loc.Opaque
	}
	return loc.Path
}

// SplitArchiveLocation splits an archive resource location into the archive path and the entry name.
func SplitArchiveLocation(loc *url.URL) (archive string, entry string, ok bool) {
	if loc.Scheme != ArchiveScheme {
		return "", "", false
	}
	archiveURL, entry, found := strings.Cut(loc.Opaque, "!/")
	if !found {
		return "", "", false
	}
	parsed, err := url.Parse(archiveURL)
	if err != nil || parsed.Scheme != FileScheme {
		return "", "", false
	}
	return filepath.FromSlash(parsed.Path), entry, true
}
