// Package download implements the byte-transfer layer: streaming an
// artifact URL to disk with retries, resumption, and a temp-file-then-rename
// discipline so the final destination never holds partial data.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/julget/julget/internal/safety"
)

// ProgressFunc is called periodically as bytes arrive. total is 0 when the
// server did not report a length.
type ProgressFunc func(downloaded, total int64)

// Options configures a single transfer.
type Options struct {
	URL      string
	DestPath string
	// TempSuffix distinguishes concurrent attempts targeting the same
	// destination (e.g. per-mirror). The transfer streams into
	// DestPath+"."+TempSuffix+".part" and only the final rename touches
	// DestPath.
	TempSuffix   string
	ExpectedSize int64 // 0 skips the size check
	RetryCount   int   // 0 defaults to 3
	OnProgress   ProgressFunc
}

// Result describes a completed transfer.
type Result struct {
	Path     string
	Size     int64
	SHA256   string
	Attempts int
	Duration time.Duration
}

// HTTPError represents a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Status)
}

// Client performs HTTP downloads.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a download client. The underlying HTTP client carries
// no overall timeout; body reads can take as long as needed and user cancel
// still works through the context.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: safety.NewHTTPClient(0),
		logger:     logger,
		userAgent:  "julget/1.0",
	}
}

// Download streams opts.URL to opts.DestPath. It retries with exponential
// backoff, resumes partial temp files between attempts, and renames the
// temp file onto DestPath only after the transfer fully succeeds. On final
// failure the temp file is removed; DestPath is never left partial.
func (c *Client) Download(ctx context.Context, opts Options) (*Result, error) {
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	}
	if _, err := safety.ValidateHTTPURL(opts.URL); err != nil {
		return nil, err
	}

	tmpPath := opts.DestPath + ".part"
	if opts.TempSuffix != "" {
		tmpPath = opts.DestPath + "." + opts.TempSuffix + ".part"
	}

	if dir := filepath.Dir(opts.DestPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= opts.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			removeQuiet(tmpPath)
			return nil, fmt.Errorf("download cancelled: %w", err)
		}

		result, err := c.attempt(ctx, tmpPath, opts, attempt)
		if err == nil {
			if err := os.Rename(tmpPath, opts.DestPath); err != nil {
				removeQuiet(tmpPath)
				return nil, fmt.Errorf("moving %s into place: %w", tmpPath, err)
			}
			result.Path = opts.DestPath
			result.Attempts = attempt
			result.Duration = time.Since(start)
			return result, nil
		}

		lastErr = err
		c.logger.Warn("download attempt failed", "url", opts.URL, "attempt", attempt, "error", err)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			removeQuiet(tmpPath)
			return nil, err
		}
		if !retryable(err) {
			removeQuiet(tmpPath)
			return nil, err
		}

		if attempt < opts.RetryCount {
			delay := backoffDelay(attempt)
			c.logger.Debug("retrying download", "url", opts.URL, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				removeQuiet(tmpPath)
				return nil, fmt.Errorf("download cancelled during retry: %w", ctx.Err())
			}
		}
	}

	removeQuiet(tmpPath)
	return nil, fmt.Errorf("download failed after %d attempts: %w", opts.RetryCount, lastErr)
}

// attempt performs one transfer into the temp file, resuming whatever a
// previous attempt left behind.
func (c *Client) attempt(ctx context.Context, tmpPath string, opts Options, attempt int) (*Result, error) {
	offset := int64(0)
	if fi, err := os.Stat(tmpPath); err == nil {
		existing := fi.Size()
		if opts.ExpectedSize > 0 && existing < opts.ExpectedSize {
			offset = existing
		} else if existing > 0 && opts.ExpectedSize == 0 {
			offset = existing
		} else if existing > 0 {
			// Larger than expected: stale, start fresh.
			removeQuiet(tmpPath)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(tmpPath, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening temp file: %w", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// Resuming from offset.
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			// Server ignored the Range header, start over.
			if err := file.Truncate(0); err != nil {
				return nil, fmt.Errorf("truncating temp file: %w", err)
			}
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewinding temp file: %w", err)
			}
			offset = 0
		}
	default:
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	total := resp.ContentLength
	if total > 0 {
		total += offset
	} else {
		total = opts.ExpectedSize
	}

	var reader io.Reader = resp.Body
	if opts.OnProgress != nil {
		reader = &progressReader{reader: resp.Body, callback: opts.OnProgress, current: offset, total: total}
	}

	written, err := io.Copy(file, reader)
	if err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	size := offset + written

	if opts.ExpectedSize > 0 && size != opts.ExpectedSize {
		removeQuiet(tmpPath)
		return nil, fmt.Errorf("size mismatch: got %d bytes, expected %d", size, opts.ExpectedSize)
	}

	// The digest covers the whole file, not just the bytes this attempt
	// fetched; resumed transfers only appended a tail.
	digest, err := hashFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	return &Result{Size: size, SHA256: digest, Attempts: attempt}, nil
}

// hashFile computes the SHA256 hex digest of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// backoffDelay doubles from 1s per attempt, plus jitter up to half the delay.
func backoffDelay(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	return base + jitter
}

// retryable reports whether the error is worth a retry. 4xx responses other
// than 429 are definitive.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			return false
		}
	}
	return true
}

func removeQuiet(path string) {
	_ = os.Remove(path)
}

// progressReader invokes a callback as data is read.
type progressReader struct {
	reader   io.Reader
	callback ProgressFunc
	current  int64
	total    int64
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.callback(pr.current, pr.total)
	}
	return n, err
}
