// Package extract turns a document source into plain text.
//
// A source is either an http(s) URL or a local file path. PDF sources are
// parsed page by page; everything else is treated as UTF-8 text. Extracted
// text is sanitized so it can be stored in a PostgreSQL TEXT column.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrNoContent indicates the source yielded no extractable text.
var ErrNoContent = errors.New("no extractable text content")

// maxSourceSize caps a fetched document at 64 MiB.
const maxSourceSize = 64 << 20

// Extractor fetches and extracts document text.
//
// Extractor is safe for concurrent use by multiple goroutines.
type Extractor struct {
	client *http.Client
	logger *slog.Logger
}

// New creates an Extractor. timeout bounds the whole fetch of a remote
// source, connect included.
func New(timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Extract loads the source and returns its plain text.
// Returns ErrNoContent when the source parses but holds no text.
func (e *Extractor) Extract(ctx context.Context, source string) (string, error) {
	data, err := e.load(ctx, source)
	if err != nil {
		return "", err
	}

	var text string
	if isPDF(data) {
		text, err = pdfText(data)
		if err != nil {
			return "", fmt.Errorf("parsing PDF: %w", err)
		}
	} else {
		text = string(data)
	}

	text = Sanitize(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContent, source)
	}

	e.logger.Debug("extracted text", "source", source, "bytes", len(data), "chars", len(text))
	return text, nil
}

func (e *Extractor) load(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return e.fetch(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

func (e *Extractor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(data) > maxSourceSize {
		return nil, fmt.Errorf("source %s exceeds %d byte limit", url, maxSourceSize)
	}
	return data, nil
}

// isPDF checks the PDF magic header.
func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// pdfText extracts the text of every page, pages separated by newlines.
// Pages that fail to parse are skipped; a document where every page fails
// still returns the empty string rather than an error, so the caller's
// ErrNoContent check applies uniformly.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Sanitize strips NUL bytes and invalid UTF-8 sequences and trims
// surrounding whitespace. PostgreSQL rejects TEXT values containing NUL.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.TrimSpace(s)
}
