// Package ota pulls file updates from the configured repository onto the
// storage device. Pulls are an interactive CLI action, never part of the
// coordination loop; the storage manager's busy discipline keeps them from
// overlapping other storage access.
package ota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// manifestFile indexes the repository: path -> hex SHA-256 of the content.
const manifestFile = "manifest.json"

// maxFileSize bounds a single pulled file.
const maxFileSize = 4 << 20

// Puller is the OTA collaborator interface consumed by the CLI.
type Puller interface {
	Pull(ctx context.Context) error
}

// Storage is the slice of the storage surface the puller needs.
// *storage.Manager satisfies it.
type Storage interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// Options configures an HTTPPuller.
type Options struct {
	RepoURL string        // base URL of the update repository
	Ignore  []string      // paths protected from sync (exact or directory prefix)
	Client  *http.Client  // optional; defaults to a client with Timeout
	Timeout time.Duration // per-request timeout for the default client
}

// HTTPPuller fetches the manifest and downloads changed files.
type HTTPPuller struct {
	store  Storage
	opts   Options
	client *http.Client
}

// NewHTTPPuller validates the repository URL and builds the puller.
func NewHTTPPuller(store Storage, opts Options) (*HTTPPuller, error) {
	u, err := url.Parse(opts.RepoURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ota: invalid repository URL %q", opts.RepoURL)
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPPuller{store: store, opts: opts, client: client}, nil
}

// Pull downloads the manifest and syncs every non-ignored file whose local
// content differs. Any failure aborts the pull; files already written stay
// written (each file is complete or untouched).
func (p *HTTPPuller) Pull(ctx context.Context) error {
	manifest, err := p.fetchManifest(ctx)
	if err != nil {
		return err
	}

	var pulled, skipped int
	for path, wantSum := range manifest {
		if p.ignored(path) {
			slog.Debug("[OTA] ignoring protected path", "path", path)
			skipped++
			continue
		}
		if local, err := p.store.ReadFile(path); err == nil && checksum(local) == wantSum {
			skipped++
			continue
		}

		data, err := p.fetch(ctx, path)
		if err != nil {
			return err
		}
		if got := checksum(data); got != wantSum {
			return fmt.Errorf("ota: checksum mismatch for %s: got %s, want %s", path, got, wantSum)
		}
		if err := p.store.WriteFile(path, data); err != nil {
			return fmt.Errorf("ota: store %s: %w", path, err)
		}
		slog.Info("[OTA] updated", "path", path, "bytes", len(data))
		pulled++
	}

	slog.Info("[OTA] pull complete", "updated", pulled, "unchanged", skipped)
	return nil
}

func (p *HTTPPuller) fetchManifest(ctx context.Context) (map[string]string, error) {
	data, err := p.fetch(ctx, manifestFile)
	if err != nil {
		return nil, err
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("ota: parse manifest: %w", err)
	}
	return manifest, nil
}

func (p *HTTPPuller) fetch(ctx context.Context, path string) ([]byte, error) {
	u := strings.TrimSuffix(p.opts.RepoURL, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("ota: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ota: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ota: fetch %s: status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("ota: read %s: %w", path, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("ota: %s exceeds %d bytes", path, maxFileSize)
	}
	return data, nil
}

// ignored reports whether path matches the protected list, either exactly
// or under an ignored directory.
func (p *HTTPPuller) ignored(path string) bool {
	for _, ig := range p.opts.Ignore {
		ig = strings.TrimSuffix(ig, "/")
		if path == ig || strings.HasPrefix(path, ig+"/") {
			return true
		}
	}
	return false
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
