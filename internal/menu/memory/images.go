package memory

import (
	"context"
	"sync"

	"github.com/R3E-Network/menu_layer/internal/menu"
)

// Image is one stored upload.
type Image struct {
	ContentType string
	Data        []byte
}

// ImageStore keeps uploads in memory and hands out URLs under BaseURL.
type ImageStore struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string]Image
	err     error
}

var _ menu.ImageStore = (*ImageStore)(nil)

// NewImageStore creates an image store serving under baseURL.
func NewImageStore(baseURL string) *ImageStore {
	return &ImageStore{BaseURL: baseURL, objects: make(map[string]Image)}
}

func (s *ImageStore) Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		err := s.err
		s.err = nil
		return "", err
	}
	path := menu.ImagePath(ownerID, filename)
	s.objects[path] = Image{ContentType: contentType, Data: append([]byte(nil), data...)}
	return s.BaseURL + "/" + path, nil
}

// Get returns the object stored at path.
func (s *ImageStore) Get(path string) (Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.objects[path]
	return img, ok
}

// Len returns the number of stored objects.
func (s *ImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// FailNext makes the next Upload return err.
func (s *ImageStore) FailNext(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
