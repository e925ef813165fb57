// Package sharepoint implements file operations against a SharePoint document
// library through the Microsoft Graph drive API.
package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/arclight-labs/spgate/internal/graph"
)

// SimpleUploadLimit is the largest payload Graph accepts on the single-PUT
// upload endpoint. Larger files must go through an upload session.
const SimpleUploadLimit = 4 * 1024 * 1024

// uploadChunkSize is the chunk size for upload sessions. Graph requires
// chunks to be multiples of 320 KiB.
const uploadChunkSize = 10 * 320 * 1024

// ErrNoDownloadURL indicates Graph returned a file item without the
// pre-authenticated download URL.
var ErrNoDownloadURL = errors.New("sharepoint: download URL not present in response")

// ErrIsFolder indicates a file operation was attempted on a folder.
var ErrIsFolder = errors.New("sharepoint: item is a folder")

// Config holds drive client configuration.
type Config struct {
	// SiteID is the SharePoint site identifier the drive belongs to.
	SiteID string
	// BaseURL overrides the Graph API base URL. Used by tests.
	BaseURL string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
}

// Drive performs file operations against a SharePoint site's default document
// library.
type Drive struct {
	siteID  string
	baseURL string
	tokens  graph.TokenProvider
	limiter *graph.RateLimiter
	client  *http.Client
	log     zerolog.Logger
}

// New creates a drive client for the configured site.
func New(cfg Config, tokens graph.TokenProvider, logger zerolog.Logger) *Drive {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graph.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Drive{
		siteID:  cfg.SiteID,
		baseURL: baseURL,
		tokens:  tokens,
		limiter: graph.NewRateLimiter(),
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// GetItem fetches drive item metadata for the given path. An empty path
// addresses the drive root.
func (d *Drive) GetItem(ctx context.Context, path string) (*DriveItem, error) {
	status, body, err := d.do(ctx, http.MethodGet, d.itemURL(path), "", nil)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if !graph.IsSuccess(status) {
		return nil, graph.StatusError(status, body)
	}

	var item DriveItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return &item, nil
}

// DownloadURL returns the short-lived pre-authenticated download URL for the
// file at the given path. The URL is served by Graph alongside the item
// metadata and needs no Authorization header.
func (d *Drive) DownloadURL(ctx context.Context, path string) (string, error) {
	item, err := d.GetItem(ctx, path)
	if err != nil {
		return "", err
	}
	if item.IsFolder() {
		return "", fmt.Errorf("%w: %s", ErrIsFolder, path)
	}
	if item.DownloadURL == "" {
		return "", ErrNoDownloadURL
	}
	return item.DownloadURL, nil
}

// EnsureFolder creates the folder chain for dir, one segment at a time.
// Existing segments are probed with a metadata GET; missing ones are created
// with a children POST. A concurrent create surfacing as a conflict is
// treated as success.
func (d *Drive) EnsureFolder(ctx context.Context, dir string) error {
	current := ""
	for _, segment := range Segments(CleanPath(dir)) {
		next := JoinPath(current, segment)

		_, err := d.GetItem(ctx, next)
		if err == nil {
			current = next
			continue
		}
		if !errors.Is(err, graph.ErrNotFound) {
			return fmt.Errorf("probe folder %q: %w", next, err)
		}

		if err := d.createFolder(ctx, current, segment); err != nil && !errors.Is(err, graph.ErrConflict) {
			return fmt.Errorf("create folder %q: %w", next, err)
		}
		d.log.Debug().Str("folder", next).Msg("created drive folder")
		current = next
	}
	return nil
}

// createFolder creates a single child folder under parent.
func (d *Drive) createFolder(ctx context.Context, parent, name string) error {
	payload, err := json.Marshal(map[string]any{
		"name":                              name,
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "fail",
	})
	if err != nil {
		return fmt.Errorf("encode folder request: %w", err)
	}

	status, body, err := d.do(ctx, http.MethodPost, d.childrenURL(parent), "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if !graph.IsSuccess(status) {
		return graph.StatusError(status, body)
	}
	return nil
}

// Upload writes a file into the drive at dir/name. Payloads within the
// simple-upload ceiling go through a single content PUT; larger ones use a
// chunked upload session. Size must be known up front.
func (d *Drive) Upload(ctx context.Context, dir, name string, r io.Reader, size int64) (*DriveItem, error) {
	path := JoinPath(dir, name)

	if size <= SimpleUploadLimit {
		return d.uploadSimple(ctx, path, r)
	}
	return d.uploadSession(ctx, path, r, size)
}

// uploadSimple uploads a small file with a single PUT to the content endpoint.
func (d *Drive) uploadSimple(ctx context.Context, path string, r io.Reader) (*DriveItem, error) {
	url := d.itemURL(path) + ":/content"

	status, body, err := d.do(ctx, http.MethodPut, url, "application/octet-stream", r)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if !graph.IsSuccess(status) {
		return nil, graph.StatusError(status, body)
	}

	var item DriveItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	d.log.Debug().Str("path", path).Int64("size", item.Size).Msg("uploaded file")
	return &item, nil
}

// uploadSessionResponse is the Graph response to createUploadSession.
type uploadSessionResponse struct {
	UploadURL          string `json:"uploadUrl"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

// uploadSession uploads a large file through a Graph upload session,
// transferring the payload in fixed-size chunks.
func (d *Drive) uploadSession(ctx context.Context, path string, r io.Reader, size int64) (*DriveItem, error) {
	session, err := d.createUploadSession(ctx, path)
	if err != nil {
		return nil, err
	}

	var offset int64
	buf := make([]byte, uploadChunkSize)
	for offset < size {
		n, err := io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("upload source ended at %d of %d bytes", offset, size)
		}

		item, done, err := d.uploadChunk(ctx, session.UploadURL, buf[:n], offset, size)
		if err != nil {
			return nil, err
		}
		offset += int64(n)
		if done {
			d.log.Debug().Str("path", path).Int64("size", size).Msg("uploaded file via session")
			return item, nil
		}
	}

	return nil, fmt.Errorf("upload session ended without a completed item")
}

// createUploadSession opens an upload session for the given path.
func (d *Drive) createUploadSession(ctx context.Context, path string) (*uploadSessionResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"item": map[string]any{
			"@microsoft.graph.conflictBehavior": "replace",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}

	url := d.itemURL(path) + ":/createUploadSession"
	status, body, err := d.do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create upload session: %w", err)
	}
	if !graph.IsSuccess(status) {
		return nil, graph.StatusError(status, body)
	}

	var session uploadSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if session.UploadURL == "" {
		return nil, fmt.Errorf("upload session response missing uploadUrl")
	}
	return &session, nil
}

// uploadChunk uploads one chunk to the session URL. The session URL is
// pre-authenticated, so no bearer token is attached, but chunk PUTs still
// count against the rate limiter like every other Graph call. Returns the
// completed item when Graph answers with the final 200/201.
func (d *Drive) uploadChunk(ctx context.Context, uploadURL string, chunk []byte, offset, total int64) (*DriveItem, bool, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return nil, false, fmt.Errorf("create chunk request: %w", err)
	}
	req.Header.Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total))
	req.ContentLength = int64(len(chunk))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("upload chunk: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("read chunk response: %w", err)
	}

	if graph.IsRateLimited(resp.StatusCode) {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		d.limiter.RecordRateLimitError(retryAfter)
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		// More chunks expected.
		return nil, false, nil
	case graph.IsSuccess(resp.StatusCode):
		var item DriveItem
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, false, fmt.Errorf("decode chunk response: %w", err)
		}
		return &item, true, nil
	default:
		return nil, false, graph.StatusError(resp.StatusCode, body)
	}
}

// ListChildren lists the items directly under dir, following Graph paging.
func (d *Drive) ListChildren(ctx context.Context, dir string) ([]DriveItem, error) {
	var items []DriveItem

	url := d.childrenURL(CleanPath(dir))
	for url != "" {
		status, body, err := d.do(ctx, http.MethodGet, url, "", nil)
		if err != nil {
			return nil, fmt.Errorf("list children: %w", err)
		}
		if !graph.IsSuccess(status) {
			return nil, graph.StatusError(status, body)
		}

		var page struct {
			Value    []DriveItem `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode children page: %w", err)
		}

		items = append(items, page.Value...)
		url = page.NextLink
	}

	return items, nil
}

// itemURL builds the metadata URL for a drive path. An empty path addresses
// the drive root.
func (d *Drive) itemURL(path string) string {
	root := fmt.Sprintf("%s/sites/%s/drive/root", d.baseURL, d.siteID)
	path = CleanPath(path)
	if path == "" {
		return root
	}
	return root + ":/" + escapePath(path)
}

// childrenURL builds the children collection URL for a directory path.
func (d *Drive) childrenURL(dir string) string {
	if CleanPath(dir) == "" {
		return d.itemURL("") + "/children"
	}
	return d.itemURL(dir) + ":/children"
}

// do performs an authenticated Graph request, draining the response body.
// A 429 response records its Retry-After on the rate limiter before the
// status is handed back to the caller.
func (d *Drive) do(ctx context.Context, method, url, contentType string, body io.Reader) (int, []byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	token, err := d.tokens.GetToken(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("get token: %w", err)
	}

	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	if graph.IsRateLimited(resp.StatusCode) {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		d.limiter.RecordRateLimitError(retryAfter)
	}

	return resp.StatusCode, respBody, nil
}
