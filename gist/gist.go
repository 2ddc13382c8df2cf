// Package gist fetches snippet files from the GitHub gist API.
package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

var (
	ErrNotFound     = errors.New("gist not found")
	ErrFileNotFound = errors.New("file not found in gist")
)

// File is one entry of a gist's files map.
type File struct {
	Filename  string `json:"filename"`
	Language  string `json:"language"`
	Size      int    `json:"size"`
	Truncated bool   `json:"truncated"`
	RawURL    string `json:"raw_url"`
	Content   string `json:"content"`
}

type Gist struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Files       map[string]File `json:"files"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithToken authenticates requests, which raises GitHub's rate limit and
// allows reading secret gists of the token owner.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches a gist with all of its files.
func (c *Client) Get(ctx context.Context, id string) (*Gist, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	endpoint, err := url.JoinPath(c.baseURL, "gists", id)
	if err != nil {
		return nil, fmt.Errorf("build gist url: %w", err)
	}

	body, err := c.get(ctx, endpoint, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var g Gist
	if err := json.NewDecoder(body).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode gist %s: %w", id, err)
	}
	return &g, nil
}

// FetchFile returns the content of the file whose filename is file. Files
// the API truncates are fetched in full from their raw URL.
func (c *Client) FetchFile(ctx context.Context, id, file string) (string, error) {
	g, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}

	for _, f := range g.Files {
		if f.Filename != file {
			continue
		}
		if !f.Truncated || f.RawURL == "" {
			return f.Content, nil
		}
		c.logger.Debug("fetching truncated gist file", "gist", id, "file", file, "size", f.Size)
		return c.raw(ctx, f.RawURL)
	}
	return "", fmt.Errorf("%w: %s in %s", ErrFileNotFound, file, id)
}

func (c *Client) raw(ctx context.Context, rawURL string) (string, error) {
	body, err := c.get(ctx, rawURL, "text/plain")
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read raw file: %w", err)
	}
	return string(data), nil
}

func (c *Client) get(ctx context.Context, endpoint, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "gorupad")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}
	return resp.Body, nil
}
