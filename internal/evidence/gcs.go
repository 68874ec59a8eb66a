package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore keeps evidence in a Google Cloud Storage bucket. References are
// public object URLs.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSClient prefers explicit JSON credentials and falls back to ADC.
func NewGCSClient(ctx context.Context, credentialsJSON string) (*storage.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return storage.NewClient(ctx)
}

func NewGCSStore(client *storage.Client, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *GCSStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *GCSStore) ref(name string) Ref {
	return Ref(fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, s.key(name)))
}

func (s *GCSStore) Save(ctx context.Context, data []byte, name string) (Ref, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	w := s.client.Bucket(s.bucket).Object(s.key(name)).NewWriter(ctx)
	w.ContentType = "image/jpeg"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload evidence to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer: %w", err)
	}
	return s.ref(name), nil
}

func (s *GCSStore) Rename(ctx context.Context, ref Ref, newName string) (Ref, error) {
	if err := validateName(newName); err != nil {
		return "", err
	}
	bkt := s.client.Bucket(s.bucket)
	src := bkt.Object(s.key(Name(ref)))
	dst := bkt.Object(s.key(newName))
	copier := dst.If(storage.Conditions{DoesNotExist: true}).CopierFrom(src)
	if _, err := copier.Run(ctx); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return "", ErrExists
		}
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("copy evidence object: %w", err)
	}
	if err := src.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("delete temp evidence object: %w", err)
	}
	return s.ref(newName), nil
}

func (s *GCSStore) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.key(Name(ref))).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}
