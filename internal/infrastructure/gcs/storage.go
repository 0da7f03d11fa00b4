package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

type Storage struct {
	client *storage.Client
}

func NewClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

func New(client *storage.Client) *Storage {
	return &Storage{client: client}
}

// Download writes the object to dst. A partially written file is removed.
func (s *Storage) Download(ctx context.Context, bucket, object, dst string) (err error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(f, rc); err != nil {
		return fmt.Errorf("download gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, bucket, object string) error {
	err := s.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// SignedPutURL returns a V4 URL allowing a single PUT of contentType until now+ttl.
// The signing identity comes from the ambient credentials.
func (s *Storage) SignedPutURL(_ context.Context, bucket, object, contentType string, ttl time.Duration) (string, error) {
	url, err := s.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign url for gs://%s/%s: %w", bucket, object, err)
	}
	return url, nil
}
