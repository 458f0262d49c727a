// Package drive provides a Google Drive client for artifact storage and the
// concurrency-safe folder path resolver the render pipeline depends on.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2/jwt"
)

const (
	filesEndpoint  = "https://www.googleapis.com/drive/v3/files"
	uploadEndpoint = "https://www.googleapis.com/upload/drive/v3/files"

	tokenURL   = "https://oauth2.googleapis.com/token"
	driveScope = "https://www.googleapis.com/auth/drive"

	folderMimeType = "application/vnd.google-apps.folder"

	// DefaultTimeout covers metadata calls; uploads get their own budget.
	DefaultTimeout       = 30 * time.Second
	DefaultUploadTimeout = 3 * time.Minute
)

// File is a Drive file or folder as the pipeline sees it.
type File struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	CreatedTime time.Time `json:"createdTime"`
	WebViewLink string    `json:"webViewLink"`
}

// FolderStore is the slice of Drive the folder resolver needs. Split out so
// resolver tests can run against an in-memory store.
type FolderStore interface {
	FindFolders(ctx context.Context, parentID, name string) ([]File, error)
	CreateFolder(ctx context.Context, parentID, name string) (*File, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// APIError represents an error from the Drive API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsNotFound reports whether err is a Drive 404. A delete that races another
// deleter hits this; the goal state already holds, so callers treat it as
// success.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is a Google Drive v3 REST client authenticated as a service account.
type Client struct {
	httpClient   *http.Client
	uploadClient *http.Client
	logger       arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
		c.uploadClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Drive client from service account credentials.
func NewClient(ctx context.Context, serviceAccountEmail, privateKey string, opts ...ClientOption) (*Client, error) {
	if serviceAccountEmail == "" || privateKey == "" {
		return nil, fmt.Errorf("missing Google service account credentials")
	}

	conf := &jwt.Config{
		Email:      serviceAccountEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{driveScope},
		TokenURL:   tokenURL,
	}

	authClient := conf.Client(ctx)
	authClient.Timeout = DefaultTimeout

	uploadClient := conf.Client(ctx)
	uploadClient.Timeout = DefaultUploadTimeout

	c := &Client{
		httpClient:   authClient,
		uploadClient: uploadClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type fileList struct {
	Files []File `json:"files"`
}

// escapeQuery escapes single quotes for Drive query strings
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

func (c *Client) list(ctx context.Context, query string) ([]File, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id, name, mimeType, createdTime, webViewLink)")
	params.Set("supportsAllDrives", "true")
	params.Set("includeItemsFromAllDrives", "true")

	var result fileList
	if err := c.do(ctx, http.MethodGet, filesEndpoint+"?"+params.Encode(), nil, "", &result); err != nil {
		return nil, err
	}
	return result.Files, nil
}

// FindFolders returns non-trashed folders named exactly name under parentID.
func (c *Client) FindFolders(ctx context.Context, parentID, name string) ([]File, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
		escapeQuery(name), parentID, folderMimeType)
	return c.list(ctx, query)
}

// ListFiles returns non-trashed, non-folder files directly under folderID.
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType!='%s' and trashed=false", folderID, folderMimeType)
	return c.list(ctx, query)
}

// FindFileByName returns the first non-trashed file named name in folderID,
// or nil when absent.
func (c *Client) FindFileByName(ctx context.Context, folderID, name string) (*File, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escapeQuery(name), folderID)
	files, err := c.list(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// CreateFolder creates a folder named name under parentID.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (*File, error) {
	body := map[string]interface{}{
		"name":     name,
		"mimeType": folderMimeType,
		"parents":  []string{parentID},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal folder metadata: %w", err)
	}

	params := url.Values{}
	params.Set("fields", "id, name, mimeType, createdTime")
	params.Set("supportsAllDrives", "true")

	var created File
	if err := c.do(ctx, http.MethodPost, filesEndpoint+"?"+params.Encode(), bytes.NewReader(payload), "application/json", &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteFile permanently removes a file or folder by ID.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	params := url.Values{}
	params.Set("supportsAllDrives", "true")
	return c.do(ctx, http.MethodDelete, filesEndpoint+"/"+fileID+"?"+params.Encode(), nil, "", nil)
}

// MoveFile reparents a file from oldParentID to newParentID.
func (c *Client) MoveFile(ctx context.Context, fileID, oldParentID, newParentID string) error {
	params := url.Values{}
	params.Set("addParents", newParentID)
	params.Set("removeParents", oldParentID)
	params.Set("supportsAllDrives", "true")

	return c.do(ctx, http.MethodPatch, filesEndpoint+"/"+fileID+"?"+params.Encode(), strings.NewReader("{}"), "application/json", nil)
}

// UploadFile writes data as name inside folderID. When a file with the same
// name already exists its content is replaced, so re-running a completion for
// the same post overwrites rather than duplicates.
func (c *Client) UploadFile(ctx context.Context, folderID, name, mimeType string, data []byte) (*File, error) {
	existing, err := c.FindFileByName(ctx, folderID, name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return c.updateMedia(ctx, existing.ID, mimeType, data)
	}
	return c.createMedia(ctx, folderID, name, mimeType, data)
}

func (c *Client) createMedia(ctx context.Context, folderID, name, mimeType string, data []byte) (*File, error) {
	metadata := map[string]interface{}{
		"name":    name,
		"parents": []string{folderID},
	}

	body, contentType, err := multipartBody(metadata, mimeType, data)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("uploadType", "multipart")
	params.Set("fields", "id, name, webViewLink")
	params.Set("supportsAllDrives", "true")

	var uploaded File
	if err := c.upload(ctx, http.MethodPost, uploadEndpoint+"?"+params.Encode(), body, contentType, &uploaded); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

func (c *Client) updateMedia(ctx context.Context, fileID, mimeType string, data []byte) (*File, error) {
	body, contentType, err := multipartBody(map[string]interface{}{}, mimeType, data)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("uploadType", "multipart")
	params.Set("fields", "id, name, webViewLink")
	params.Set("supportsAllDrives", "true")

	var uploaded File
	if err := c.upload(ctx, http.MethodPatch, uploadEndpoint+"/"+fileID+"?"+params.Encode(), body, contentType, &uploaded); err != nil {
		return nil, err
	}
	return &uploaded, nil
}

// multipartBody builds a Drive multipart/related upload body
func multipartBody(metadata map[string]interface{}, mimeType string, data []byte) (io.Reader, string, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal upload metadata: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata part: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create media part: %w", err)
	}
	if _, err := mediaPart.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write media part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	contentType := "multipart/related; boundary=" + writer.Boundary()
	return &buf, contentType, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, endpoint, result)
}

func (c *Client) upload(ctx context.Context, method, endpoint string, body io.Reader, contentType string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute upload: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, endpoint, result)
}

func decodeResponse(resp *http.Response, endpoint string, result interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   endpoint,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
