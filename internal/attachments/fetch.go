package attachments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
)

const maxUploadBytes int64 = 50 << 20 // 50 MiB

// Upload is the materialized form of an inbound attachment, ready to be
// handed to the chat platform's upload creator.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FetchUpload downloads the bytes behind an external attachment URL and
// derives a filename from the URL's path segment (query stripped). A
// non-success fetch status yields (nil, nil): the attachment is silently
// skipped, partial delivery of a multi-attachment message is acceptable.
func FetchUpload(ctx context.Context, client *http.Client, rawURL string) (*Upload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build attachment request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}

	return &Upload{
		Filename:    FilenameFromURL(rawURL),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// FilenameFromURL returns the last path segment of the URL with any query
// parameters removed. Falls back to "attachment" for pathless URLs.
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "attachment"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}
