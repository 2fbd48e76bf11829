// Package fetcher pulls carrier manifest files from remote drop
// locations. Carriers publish manifests over plain HTTP endpoints or
// legacy FTP servers; ops can also point at a local path when a file
// arrives out of band.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a source URL and returns the raw file body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Options configures source fetching across all schemes.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	// FTP credentials; anonymous login when left empty.
	FTPUser     string
	FTPPassword string
}

// ForURL picks a fetcher by URL scheme. Bare paths and file:// URLs
// resolve to the local fetcher.
func ForURL(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse source url %s", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTP(opts), nil
	case "ftp":
		return NewFTP(opts), nil
	case "", "file":
		return NewLocal(), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// FetchBytes downloads the source and reads the whole body.
func FetchBytes(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	f, err := ForURL(rawURL, opts)
	if err != nil {
		return nil, err
	}
	rc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", rawURL)
	}
	return data, nil
}
