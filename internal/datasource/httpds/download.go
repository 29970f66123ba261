package httpds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileName derives a local file name from rawURL: the last path segment with
// unsafe characters replaced by "_", or a hash of the URL when the path has
// no usable segment. Extensions are preserved so the format can be detected.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("httpds: parse url: %w", err)
	}
	base := unsafeChars.ReplaceAllString(path.Base(u.Path), "_")
	switch base {
	case "", ".", "..", "_":
		return fmt.Sprintf("snapshot-%016x", xxh3.HashString(rawURL)), nil
	}
	return base, nil
}

// Download fetches rawURL into dir and returns the local path. The file only
// appears under its final name once the body has been fully written.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (string, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("httpds: download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	c.log.Info("snapshot downloaded",
		zap.String("url", rawURL),
		zap.String("path", dst),
		zap.Int64("bytes", n),
	)
	return dst, nil
}
