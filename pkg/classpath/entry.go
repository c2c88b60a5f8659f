package classpath

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"

	"github.com/platinummonkey/plugwall/pkg/namespace"
)

// entry is one classpath entry. Names are slash separated and relative to
// the entry root.
type entry interface {
	path() string
	origin() *url.URL
	location(name string) *url.URL
	has(name string) bool
	open(name string) (io.ReadCloser, error)
	close() error
}

func newEntry(path string) (entry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve classpath entry %s: %w", path, err)
	}
	// A directory is a directory entry whatever its name.
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return &dirEntry{abs: abs, url: namespace.DirectoryOrigin(abs)}, nil
	}
	if namespace.IsArchive(abs) {
		return &archiveEntry{abs: abs, url: namespace.ArchiveOrigin(abs)}, nil
	}
	return &dirEntry{abs: abs, url: namespace.DirectoryOrigin(abs)}, nil
}

func validName(name string) bool {
	return name != "" && name != "." && fs.ValidPath(name)
}

type dirEntry struct {
	abs string
	url *url.URL
}

func (d *dirEntry) path() string {
	return d.abs
}

func (d *dirEntry) origin() *url.URL {
	return d.url
}

func (d *dirEntry) location(name string) *url.URL {
	return namespace.DirectoryLocation(d.url, name)
}

func (d *dirEntry) has(name string) bool {
	info, err := os.Stat(filepath.Join(d.abs, filepath.FromSlash(name)))
	return err == nil && info.Mode().IsRegular()
}

func (d *dirEntry) open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.abs, filepath.FromSlash(name)))
}

func (d *dirEntry) close() error {
	return nil
}

// archiveEntry opens its archive on first use and keeps it open until close.
type archiveEntry struct {
	abs string
	url *url.URL

	once   sync.Once
	reader *zip.ReadCloser
	files  map[string]*zip.File
	err    error
}

func (a *archiveEntry) path() string {
	return a.abs
}

func (a *archiveEntry) origin() *url.URL {
	return a.url
}

func (a *archiveEntry) location(name string) *url.URL {
	return namespace.ArchiveLocation(a.url, name)
}

func (a *archiveEntry) load() error {
	a.once.Do(func() {
		reader, err := zip.OpenReader(a.abs)
		if err != nil {
			a.err = fmt.Errorf("open archive %s: %w", a.abs, err)
			return
		}
		a.reader = reader
		a.files = make(map[string]*zip.File, len(reader.File))
		for _, f := range reader.File {
			if strings.HasSuffix(f.Name, "/") {
				continue
			}
			a.files[f.Name] = f
		}
	})
	return a.err
}

func (a *archiveEntry) has(name string) bool {
	if err := a.load(); err != nil {
		return false
	}
	_, ok := a.files[name]
	return ok
}

func (a *archiveEntry) open(name string) (io.ReadCloser, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	f, ok := a.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: a.abs + "!/" + name, Err: fs.ErrNotExist}
	}
	return f.Open()
}

func (a *archiveEntry) close() error {
	// An archive never opened stays unopened.
	a.once.Do(func() { a.err = ErrClosed })
	if a.reader == nil {
		return nil
	}
	return a.reader.Close()
}

// readArchiveEntry reads one entry of an archive that no classpath holds open.
func readArchiveEntry(archive, name string) ([]byte, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, &fs.PathError{Op: "open", Path: archive + "!/" + name, Err: fs.ErrNotExist}
}
