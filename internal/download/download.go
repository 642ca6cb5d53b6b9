package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"mediascribe/internal/logging"
	"mediascribe/internal/services"
)

const defaultTimeout = 30 * time.Second

// Fetcher downloads remote media into a local staging directory so the rest
// of the pipeline only ever sees files.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func NewFetcher(timeout time.Duration, logger *slog.Logger, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	f := &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "download"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsURL reports whether the source looks like a remote asset.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads rawURL into destDir and returns the local path. The file
// name comes from the URL path, falling back to "download" when the URL has
// none.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", services.Wrap(services.ErrUnsupportedInput, "download", "parse_url", rawURL, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "download", "destdir", destDir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrUnsupportedInput, "download", "request", rawURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "download", "fetch", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			marker = services.ErrUnsupportedInput
		}
		return "", services.Wrap(marker, "download", "fetch",
			fmt.Sprintf("%s returned status %d", rawURL, resp.StatusCode), nil)
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "download", "create", dest, err)
	}
	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(dest)
		return "", services.Wrap(services.ErrTransient, "download", "copy", rawURL, err)
	}
	if closeErr != nil {
		os.Remove(dest)
		return "", services.Wrap(services.ErrTransient, "download", "close", dest, closeErr)
	}

	f.logger.Debug("downloaded remote asset",
		logging.String("url", rawURL),
		logging.String("path", dest),
		logging.Int64("bytes", written))
	return dest, nil
}
