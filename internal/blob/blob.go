// Package blob stores uploaded manifests and processed results as
// opaque objects addressed by key. Keys use forward slashes regardless
// of host OS; the filesystem backend maps them onto a root directory.
package blob

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = eris.New("blob: object not found")

const (
	// UploadPrefix is where incoming manifest files land.
	UploadPrefix = "uploads/"
	// resultPrefix is where processed workbooks are written.
	resultPrefix = "results/"
)

// ResultKey derives the output key for a processed manifest by
// prefixing the file key as-is, so an upload key nests under the
// result prefix and the original file key stays recoverable from it.
func ResultKey(fileKey string) string {
	return resultPrefix + fileKey
}

// Store reads and writes objects by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// FSStore keeps objects on an afero filesystem rooted at dir.
type FSStore struct {
	fs  afero.Fs
	dir string
}

// NewFS returns a store backed by the local filesystem.
func NewFS(dir string) (*FSStore, error) {
	return newFS(afero.NewOsFs(), dir)
}

// NewMem returns an in-memory store, used by tests and the preview path.
func NewMem() *FSStore {
	s, _ := newFS(afero.NewMemMapFs(), "blob")
	return s
}

func newFS(fs afero.Fs, dir string) (*FSStore, error) {
	if dir == "" {
		return nil, eris.New("blob: root directory is required")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "blob: create root directory")
	}
	return &FSStore{fs: fs, dir: dir}, nil
}

func (s *FSStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", eris.New("blob: empty key")
	}
	return path.Join(s.dir, clean), nil
}

func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "blob: put")
	}
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return eris.Wrapf(err, "blob: create directory for %s", key)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return eris.Wrapf(err, "blob: write %s", key)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "blob: get")
	}
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "key %s", key)
		}
		return nil, eris.Wrapf(err, "blob: open %s", key)
	}
	defer f.Close() //nolint:errcheck
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s", key)
	}
	return data, nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, eris.Wrap(err, "blob: exists")
	}
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return false, eris.Wrapf(err, "blob: stat %s", key)
	}
	return ok, nil
}
