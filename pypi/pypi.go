// Package pypi installs pure-Python wheels from a PyPI-compatible index
// into a directory the sandboxed interpreter imports from.
//
// No pip is involved: the JSON API is used to locate a py3-none-any wheel,
// which is downloaded and unpacked directly. Packages with C extensions
// cannot run under WASI and are rejected.
package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultIndexURL is the public PyPI JSON API.
const DefaultIndexURL = "https://pypi.org/pypi"

var (
	ErrInvalidName   = errors.New("invalid package name")
	ErrBlocked       = errors.New("package not supported in WASM")
	ErrNotFound      = errors.New("package not found on PyPI")
	ErrNoPureWheel   = errors.New("no compatible wheel found (pure Python wheel required)")
	ErrCExtension    = errors.New("package contains C extensions")
	ErrUnsafeArchive = errors.New("wheel entry escapes the package directory")
)

// PEP 508 distribution names, optionally followed by extras.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?(\[[A-Za-z0-9._,-]+\])?$`)

// Packages that won't work in WASM (C extensions, sockets, etc.)
var defaultBlocklist = map[string]string{
	"numpy":         "requires C extensions",
	"pandas":        "requires C extensions (numpy)",
	"scipy":         "requires C extensions",
	"tensorflow":    "requires C extensions",
	"torch":         "requires C extensions",
	"scikit-learn":  "requires C extensions",
	"matplotlib":    "requires C extensions",
	"pillow":        "requires C extensions",
	"opencv-python": "requires C extensions",
	"psycopg2":      "requires C extensions",
	"cryptography":  "requires C extensions",
	"lxml":          "requires C extensions",
	"grpcio":        "requires C extensions",
	"aiohttp":       "uses async sockets",
	"uvicorn":       "requires sockets (ASGI server not supported)",
	"gunicorn":      "requires sockets (WSGI server not supported)",
}

// Installer downloads wheels into Dir.
type Installer struct {
	dir       string
	indexURL  string
	client    *http.Client
	blocklist map[string]string
	logger    *slog.Logger
}

type Option func(*Installer)

// WithIndexURL points the installer at another JSON API, e.g. a mirror or
// a test server.
func WithIndexURL(u string) Option {
	return func(i *Installer) {
		if u != "" {
			i.indexURL = strings.TrimSuffix(u, "/")
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) {
		if c != nil {
			i.client = c
		}
	}
}

// WithBlocklist replaces the default list of packages refused up front.
func WithBlocklist(blocked map[string]string) Option {
	return func(i *Installer) {
		i.blocklist = blocked
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

func NewInstaller(dir string, opts ...Option) *Installer {
	i := &Installer{
		dir:       dir,
		indexURL:  DefaultIndexURL,
		client:    &http.Client{Timeout: 2 * time.Minute},
		blocklist: defaultBlocklist,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the directory packages are extracted into.
func (i *Installer) Dir() string {
	return i.dir
}

type pypiURL struct {
	PackageType string `json:"packagetype"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
}

type pypiResponse struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"info"`
	Urls []pypiURL `json:"urls"`
}

// ParseSpec splits "requests==2.31.0" into name and pinned version. Range
// specifiers are dropped because the JSON API can only resolve exact
// versions; the latest release is used instead.
func ParseSpec(spec string) (name, version string) {
	spec = strings.TrimSpace(spec)
	if idx := strings.Index(spec, "=="); idx != -1 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+2:])
	}
	for _, op := range []string{">=", "<=", "~=", "!=", ">", "<"} {
		if idx := strings.Index(spec, op); idx != -1 {
			return strings.TrimSpace(spec[:idx]), ""
		}
	}
	return spec, ""
}

// baseName strips extras: "pydantic[email]" -> "pydantic".
func baseName(name string) string {
	if idx := strings.IndexByte(name, '['); idx != -1 {
		return name[:idx]
	}
	return name
}

// Install resolves spec on the index and extracts its wheel into Dir.
func (i *Installer) Install(ctx context.Context, spec string) error {
	name, version := ParseSpec(spec)
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	name = baseName(name)

	if reason, blocked := i.blocklist[strings.ToLower(name)]; blocked {
		return fmt.Errorf("%w: %s %s", ErrBlocked, name, reason)
	}

	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return fmt.Errorf("create package dir: %w", err)
	}

	info, err := i.resolve(ctx, name, version)
	if err != nil {
		return err
	}

	wheelURL := findWheel(info.Urls)
	if wheelURL == "" {
		return ErrNoPureWheel
	}

	i.logger.Info("downloading wheel", "package", info.Info.Name, "version", info.Info.Version)

	tmpPath, err := i.download(ctx, wheelURL)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := extractWheel(tmpPath, i.dir); err != nil {
		return fmt.Errorf("extract wheel: %w", err)
	}

	i.logger.Info("installed package", "package", info.Info.Name, "version", info.Info.Version, "dir", i.dir)
	return nil
}

func (i *Installer) resolve(ctx context.Context, name, version string) (*pypiResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/json", i.indexURL, url.PathEscape(name))
	if version != "" {
		endpoint = fmt.Sprintf("%s/%s/%s/json", i.indexURL, url.PathEscape(name), url.PathEscape(version))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch package info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PyPI returned status %d", resp.StatusCode)
	}

	var info pypiResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("parse PyPI response: %w", err)
	}
	return &info, nil
}

func (i *Installer) download(ctx context.Context, wheelURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wheelURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download wheel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download wheel: status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "gorupad-*.whl")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download wheel: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("download wheel: %w", err)
	}
	return tmpPath, nil
}

func findWheel(urls []pypiURL) string {
	for _, u := range urls {
		if u.PackageType != "bdist_wheel" {
			continue
		}

		filename := strings.ToLower(u.Filename)

		// Pure Python 3 wheel
		if strings.Contains(filename, "-py3-none-any") {
			return u.URL
		}

		// Universal wheel (Python 2 & 3)
		if strings.Contains(filename, "-py2.py3-none-any") {
			return u.URL
		}
	}

	return ""
}

// List returns the installed top-level packages.
func (i *Installer) List() ([]string, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasSuffix(name, ".dist-info") || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Remove deletes a package directory and any matching metadata.
func (i *Installer) Remove(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := os.RemoveAll(filepath.Join(i.dir, name)); err != nil {
		return err
	}

	entries, _ := os.ReadDir(i.dir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), name+"-") && strings.HasSuffix(entry.Name(), ".dist-info") {
			os.RemoveAll(filepath.Join(i.dir, entry.Name()))
		}
	}
	return nil
}
