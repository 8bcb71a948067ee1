// Package modelrepo implements the FetchModel collaborator (spec §4.1b):
// it downloads a model repo's artifacts into a local directory, resuming a
// prior partial download via an HTTP Range request. The out-of-scope
// downloader is specified only at its interface by spec.md; this is one
// concrete, swappable implementation, grounded on the teacher's
// net/http-based APIClient idiom (cmd/transcriber/call/transcriber.go).
package modelrepo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const requestTimeout = 5 * time.Minute

// HTTPFetcher fetches model archives from a base URL of the form
// "<BaseURL>/<repo_id>/resolve/main/model.bin", resuming partial downloads.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{BaseURL: baseURL, Client: http.DefaultClient}
}

// FetchModel downloads repoID's artifact into targetDir/model.bin, resuming
// from byte offset len(partial file) if one already exists on disk.
func (f *HTTPFetcher) FetchModel(ctx context.Context, repoID, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create target dir: %w", err)
	}

	dest := filepath.Join(targetDir, "model.bin")
	var resumeFrom int64
	if info, err := os.Stat(dest); err == nil {
		resumeFrom = info.Size()
	}

	url := fmt.Sprintf("%s/%s/resolve/main/model.bin", f.BaseURL, repoID)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("unexpected status %d fetching %q", resp.StatusCode, url)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	out, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}

	return nil
}
