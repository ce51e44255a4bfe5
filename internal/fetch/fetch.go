// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads paper PDFs and extracts their plain text.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/pdiddy/arxiv-agent/internal/httputil"
	"github.com/pdiddy/arxiv-agent/pkg/types"
)

const defaultMaxPDFBytes = 50 << 20

// ErrTooLarge is returned when a download exceeds the configured size cap.
var ErrTooLarge = errors.New("document exceeds size limit")

// ErrNoText is returned when a PDF yields no extractable text.
var ErrNoText = errors.New("document contains no extractable text")

var extraneousWhitespace = regexp.MustCompile(`[ \t\f\v]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// TextExtractor turns a PDF file on disk into plain text.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// PDFExtractor reads text with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

// ExtractText concatenates the plain text of every page.
func (PDFExtractor) ExtractText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return b.String(), nil
}

// Fetcher downloads documents and returns their text. When CacheDir is
// set, downloads are kept there keyed by URL and reused.
type Fetcher struct {
	HTTP      *http.Client
	Config    types.AnalysisConfig
	Extractor TextExtractor
	Logger    *zap.Logger
}

// New returns a Fetcher using the ledongthuc/pdf extractor.
func New(cfg types.AnalysisConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		HTTP:      httputil.NewClient(cfg.HTTPConfig),
		Config:    cfg,
		Extractor: PDFExtractor{},
		Logger:    logger,
	}
}

// FetchText downloads the PDF at url and returns its full text with runs
// of horizontal whitespace collapsed.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	path, cleanup, err := f.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer cleanup()

	raw, err := f.Extractor.ExtractText(path)
	if err != nil {
		return "", err
	}
	text := normalize(raw)
	if text == "" {
		return "", ErrNoText
	}

	f.Logger.Info("extracted document text",
		zap.String("url", url),
		zap.Int("chars", len(text)))
	return text, nil
}

// download fetches url to a local file. The returned cleanup removes the
// file unless it lives in the cache directory.
func (f *Fetcher) download(ctx context.Context, url string) (string, func(), error) {
	noop := func() {}

	dir := f.Config.CacheDir
	cached := dir != ""
	if cached {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", noop, fmt.Errorf("creating cache directory: %w", err)
		}
		dest := filepath.Join(dir, cacheKey(url)+".pdf")
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			f.Logger.Debug("using cached pdf", zap.String("url", url), zap.String("path", dest))
			return dest, noop, nil
		}
		if err := f.downloadFile(ctx, url, dest); err != nil {
			return "", noop, err
		}
		return dest, noop, nil
	}

	tmpDir, err := os.MkdirTemp("", "arxiv-agent-pdf-*")
	if err != nil {
		return "", noop, fmt.Errorf("creating temp directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }
	dest := filepath.Join(tmpDir, "paper.pdf")
	if err := f.downloadFile(ctx, url, dest); err != nil {
		cleanup()
		return "", noop, err
	}
	return dest, cleanup, nil
}

// downloadFile fetches url into destPath, writing to a temporary file
// first and renaming on success to avoid partial files.
func (f *Fetcher) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", httputil.UserAgent(f.Config.HTTPConfig))

	resp, err := httputil.DoWithRetry(ctx, f.HTTP, req, httputil.RetryOptions{
		MaxRetries: f.Config.MaxRetries,
		Logger:     f.Logger,
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	maxBytes := f.Config.MaxPDFBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxPDFBytes
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, io.LimitReader(resp.Body, maxBytes+1))
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing file: %w", closeErr)
	}
	if n > maxBytes {
		os.Remove(tmpPath)
		return fmt.Errorf("downloading %s: %w (%d bytes)", url, ErrTooLarge, maxBytes)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = extraneousWhitespace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
