package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// LocalFetcher serves files already on disk, for manifests that arrive
// out of band (mail attachments, shared drives).
type LocalFetcher struct{}

// NewLocal creates a local-path fetcher.
func NewLocal() *LocalFetcher {
	return &LocalFetcher{}
}

// Fetch opens the path named by a file:// URL or a bare path.
func (f *LocalFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "fetcher: local")
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		p = u.Path
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", p)
	}
	return file, nil
}
