// Package remote provides the typed HTTP client for the document-store
// service: project listing, file inventories, content transfer, and
// conversation threads. Every call is wrapped with bounded retry.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftsync/draftsync/pkg/codec"
	"github.com/draftsync/draftsync/pkg/models"
	"github.com/draftsync/draftsync/pkg/protocol"
	"github.com/draftsync/draftsync/pkg/retry"
)

// Client is the document-store API client. All methods are safe to
// invoke from multiple concurrent workers.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	alg         codec.Algorithm
	logger      *zap.Logger

	mu        sync.RWMutex
	online    bool
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
	Codec       codec.Algorithm
	Logger      *zap.Logger
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		alg:         cfg.Codec,
		logger:      cfg.Logger,
		online:      true,
		authToken:   cfg.AuthToken,
	}
}

// SetAuthToken sets the bearer token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// IsOnline returns true if the last remote call reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			c.logger.Info("server is back online")
		} else {
			c.logger.Warn("server is unreachable")
		}
	}
	c.online = online
}

// Codec returns the transfer codec algorithm configured for uploads.
func (c *Client) Codec() codec.Algorithm {
	return c.alg
}

// escapePath percent-encodes each segment of a forward-slash path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// checkStatus classifies a non-2xx response. Transient statuses are
// wrapped retryable; 404 and 403 surface immediately.
func (c *Client) checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.setOnline(true)
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.setOnline(true)
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode == http.StatusForbidden:
		c.setOnline(true)
		return fmt.Errorf("%s: %w", op, ErrPermission)
	case transientStatus(resp.StatusCode):
		c.setOnline(false)
		return retry.Retryable(fmt.Errorf("%s: server returned %d", op, resp.StatusCode))
	default:
		c.setOnline(true)
		var errResp protocol.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s failed: %s", op, errResp.Error)
		}
		return fmt.Errorf("%s failed: %d", op, resp.StatusCode)
	}
}

// do executes one request with retry. build is called per attempt so
// request bodies are re-created; handle consumes a 2xx response.
func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error), handle func(*http.Response) error) error {
	err := retry.Do(ctx, c.retryConfig, func() error {
		req, err := build()
		if err != nil {
			return err
		}
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return retry.Retryable(err)
		}
		defer resp.Body.Close()

		if err := c.checkStatus(resp, op); err != nil {
			return err
		}
		return handle(resp)
	})

	if err != nil && retry.IsRetryable(err) {
		// Budget exhausted on a transient failure.
		return &UnavailableError{Op: op, Err: err}
	}
	return err
}

// ListProjects returns the descriptors of all non-archived projects.
func (c *Client) ListProjects(ctx context.Context) ([]models.ProjectDescriptor, error) {
	var projects []models.ProjectDescriptor

	err := c.do(ctx, "list projects",
		func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/projects", nil)
		},
		func(resp *http.Response) error {
			var list protocol.ProjectListResponse
			if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
				return fmt.Errorf("parse project list: %w", err)
			}
			projects = projects[:0]
			for _, p := range list.Projects {
				if p.Archived {
					continue
				}
				projects = append(projects, models.ProjectDescriptor{
					ID:          p.ID,
					DisplayName: p.Name,
				})
			}
			return nil
		})

	return projects, err
}

// ListFiles returns a project's remote file inventory. The instruction
// template, when present, is reported separately via Instructions.
func (c *Client) ListFiles(ctx context.Context, projectID string) (models.Inventory, string, error) {
	var inv models.Inventory
	var instructions string

	err := c.do(ctx, "list files",
		func() (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/projects/%s/files", c.baseURL, url.PathEscape(projectID))
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		},
		func(resp *http.Response) error {
			var list protocol.FileListResponse
			if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
				return fmt.Errorf("parse file list: %w", err)
			}
			inv = make(models.Inventory, len(list.Files))
			for _, f := range list.Files {
				inv[f.Path] = models.FileRecord{
					RelativePath:   f.Path,
					ContentHash:    f.Hash,
					SizeBytes:      f.Size,
					ModifiedAt:     f.UpdatedAt,
					ExistsRemotely: true,
				}
			}
			instructions = list.Instructions
			return nil
		})

	return inv, instructions, err
}

// FetchContent downloads a file's content, reversing the transfer
// codec declared by the response.
func (c *Client) FetchContent(ctx context.Context, projectID, path string) ([]byte, error) {
	var content []byte

	err := c.do(ctx, "fetch content",
		func() (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/projects/%s/files/%s",
				c.baseURL, url.PathEscape(projectID), escapePath(path))
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		},
		func(resp *http.Response) error {
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			alg, err := codec.ParseAlgorithm(resp.Header.Get("Content-Encoding"))
			if err != nil {
				return err
			}
			content, err = codec.Decode(raw, alg)
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		})

	return content, err
}

// PutContent uploads or replaces a file's content, applying the
// configured transfer codec.
func (c *Client) PutContent(ctx context.Context, projectID, path string, data []byte) (models.FileRecord, error) {
	encoded, err := codec.Encode(data, c.alg)
	if err != nil {
		return models.FileRecord{}, fmt.Errorf("encode %s: %w", path, err)
	}

	var record models.FileRecord
	err = c.do(ctx, "put content",
		func() (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/projects/%s/files/%s",
				c.baseURL, url.PathEscape(projectID), escapePath(path))
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(encoded))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/octet-stream")
			if c.alg != codec.None {
				req.Header.Set("Content-Encoding", c.alg.String())
			}
			return req, nil
		},
		func(resp *http.Response) error {
			var up protocol.UploadResponse
			if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
				return fmt.Errorf("parse upload response: %w", err)
			}
			record = models.FileRecord{
				RelativePath:   up.Path,
				ContentHash:    up.Hash,
				SizeBytes:      up.Size,
				ModifiedAt:     up.UpdatedAt,
				ExistsRemotely: true,
			}
			return nil
		})

	return record, err
}

// DeleteFile removes a file from the remote store. Deleting a file
// that is already gone is a success.
func (c *Client) DeleteFile(ctx context.Context, projectID, path string) error {
	err := c.do(ctx, "delete file",
		func() (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/projects/%s/files/%s",
				c.baseURL, url.PathEscape(projectID), escapePath(path))
			return http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
		},
		func(resp *http.Response) error { return nil })

	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ListThreads returns summaries of a project's conversation threads.
func (c *Client) ListThreads(ctx context.Context, projectID string) ([]models.ThreadSummary, error) {
	var threads []models.ThreadSummary

	err := c.do(ctx, "list threads",
		func() (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/projects/%s/threads", c.baseURL, url.PathEscape(projectID))
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		},
		func(resp *http.Response) error {
			var list protocol.ThreadListResponse
			if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
				return fmt.Errorf("parse thread list: %w", err)
			}
			threads = threads[:0]
			for _, t := range list.Threads {
				threads = append(threads, models.ThreadSummary{
					ID:           t.ID,
					Name:         t.Name,
					UpdatedAt:    t.UpdatedAt,
					MessageCount: t.MessageCount,
				})
			}
			return nil
		})

	return threads, err
}

// FetchThread returns one conversation thread in full.
func (c *Client) FetchThread(ctx context.Context, projectID, threadID string) (*models.ThreadContent, error) {
	var thread *models.ThreadContent

	err := c.do(ctx, "fetch thread",
		func() (*http.Request, error) {
			u := fmt.Sprintf("%s/api/v1/projects/%s/threads/%s",
				c.baseURL, url.PathEscape(projectID), url.PathEscape(threadID))
			return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		},
		func(resp *http.Response) error {
			var tr protocol.ThreadResponse
			if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
				return fmt.Errorf("parse thread: %w", err)
			}
			messages := make([]models.ThreadMessage, 0, len(tr.Messages))
			for _, m := range tr.Messages {
				messages = append(messages, models.ThreadMessage{
					Sender:    m.Sender,
					Text:      m.Text,
					CreatedAt: m.CreatedAt,
				})
			}
			thread = &models.ThreadContent{
				Summary: models.ThreadSummary{
					ID:           tr.ID,
					Name:         tr.Name,
					UpdatedAt:    tr.UpdatedAt,
					MessageCount: len(tr.Messages),
				},
				Messages: messages,
			}
			return nil
		})

	return thread, err
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	c.setOnline(true)
	return nil
}
