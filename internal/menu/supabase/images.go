package supabase

import (
	"context"

	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/supabase/client"
)

// imageCacheSeconds is the Cache-Control max-age set on uploaded images.
const imageCacheSeconds = 3600

// ImageStore uploads menu images to a public Storage bucket.
type ImageStore struct {
	client *client.Client
	bucket string
}

var _ menu.ImageStore = (*ImageStore)(nil)

// NewImageStore creates an image store for bucket (menu.DefaultImageBucket when empty).
func NewImageStore(c *client.Client, bucket string) *ImageStore {
	if bucket == "" {
		bucket = menu.DefaultImageBucket
	}
	return &ImageStore{client: c, bucket: bucket}
}

// Upload stores data under "<owner>/<random>.<ext>" without overwriting and
// returns the object's public URL.
func (s *ImageStore) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error) {
	c := s.client
	if token, ok := ctx.Value(tokenKey{}).(string); ok && token != "" {
		c = c.WithAccessToken(token)
	}
	bucket := c.Storage().From(s.bucket)

	path := menu.ImagePath(ownerID, filename)
	if _, err := bucket.Upload(ctx, path, data, client.UploadOptions{
		ContentType:  contentType,
		CacheControl: imageCacheSeconds,
	}); err != nil {
		return "", mapError("upload image", err)
	}
	return bucket.GetPublicURL(path), nil
}
