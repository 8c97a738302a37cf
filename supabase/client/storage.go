package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Storage returns a storage client.
func (c *Client) Storage() *StorageClient {
	return &StorageClient{client: c}
}

// StorageClient handles storage operations.
type StorageClient struct {
	client *Client
}

// From returns a bucket client.
func (s *StorageClient) From(bucket string) *BucketClient {
	return &BucketClient{client: s.client, bucket: bucket}
}

// BucketClient handles object operations within one bucket.
type BucketClient struct {
	client *Client
	bucket string
}

// UploadOptions tunes an upload.
type UploadOptions struct {
	ContentType  string
	CacheControl int // seconds; 0 leaves the server default
	Upsert       bool
}

func (b *BucketClient) objectURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", b.client.baseURL, b.bucket, strings.TrimPrefix(path, "/"))
}

// Upload stores data at path.
func (b *BucketClient) Upload(ctx context.Context, path string, data []byte, opts UploadOptions) (*Response, error) {
	req, err := b.client.newRequest(ctx, http.MethodPost, b.objectURL(path), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if opts.CacheControl > 0 {
		req.Header.Set("Cache-Control", "max-age="+strconv.Itoa(opts.CacheControl))
	}
	req.Header.Set("x-upsert", strconv.FormatBool(opts.Upsert))

	return b.client.doChecked(req)
}

// Remove deletes the objects at paths.
func (b *BucketClient) Remove(ctx context.Context, paths []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal paths: %w", err)
	}
	req, err := b.client.newRequest(ctx, http.MethodDelete,
		fmt.Sprintf("%s/storage/v1/object/%s", b.client.baseURL, b.bucket), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = b.client.doChecked(req)
	return err
}

// GetPublicURL returns the public URL for an object in a public bucket.
func (b *BucketClient) GetPublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.client.baseURL, b.bucket, strings.TrimPrefix(path, "/"))
}
