package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func objectPath(bucket, path string) string {
	return "/storage/v1/object/" + bucket + "/" + strings.TrimLeft(path, "/")
}

// EnsureBucket creates a private bucket unless it already exists.
func (c *Client) EnsureBucket(ctx context.Context, name string) error {
	body := map[string]any{"id": name, "name": name, "public": false}
	err := c.doJSON(ctx, http.MethodPost, "/storage/v1/bucket", nil, body, nil)
	if err != nil && !IsConflict(err) {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

// Upload stores data at bucket/path, replacing any existing object.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	req, err := c.newRequest(ctx, http.MethodPost, objectPath(bucket, path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return nil
}

// Download returns the object at bucket/path.
func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, objectPath(bucket, path), nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// CreateSignedURL returns an absolute URL granting read access to
// bucket/path for expiresIn seconds.
func (c *Client) CreateSignedURL(ctx context.Context, bucket, path string, expiresIn int) (string, error) {
	var resp signResponse
	p := "/storage/v1/object/sign/" + bucket + "/" + strings.TrimLeft(path, "/")
	if err := c.doJSON(ctx, http.MethodPost, p, nil, map[string]int{"expiresIn": expiresIn}, &resp); err != nil {
		return "", fmt.Errorf("sign %s/%s: %w", bucket, path, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("sign %s/%s: empty signed url", bucket, path)
	}
	if strings.HasPrefix(resp.SignedURL, "http") {
		return resp.SignedURL, nil
	}
	return c.baseURL + "/storage/v1" + resp.SignedURL, nil
}

// Fetch GETs a URL without credentials, as a browser following a signed
// link would.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// Remove deletes objects from bucket.
func (c *Client) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	body := map[string][]string{"prefixes": paths}
	if err := c.doJSON(ctx, http.MethodDelete, "/storage/v1/object/"+bucket, nil, body, nil); err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	return nil
}
