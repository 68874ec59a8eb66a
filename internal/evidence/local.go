package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// LocalStore keeps evidence in a directory and hands out references under a
// URL prefix, for example /static/uploads/<name>.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/static/uploads"
	}
	return &LocalStore{dir: dir, urlPrefix: urlPrefix}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) ref(name string) Ref {
	return Ref(path.Join(s.urlPrefix, name))
}

func (s *LocalStore) filePath(ref Ref) (string, error) {
	name := Name(ref)
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Save(_ context.Context, data []byte, name string) (Ref, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, name)
	tmp := target + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write evidence: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit evidence: %w", err)
	}
	return s.ref(name), nil
}

func (s *LocalStore) Rename(_ context.Context, ref Ref, newName string) (Ref, error) {
	if err := validateName(newName); err != nil {
		return "", err
	}
	from, err := s.filePath(ref)
	if err != nil {
		return "", err
	}
	// A hard link fails when the target exists, which os.Rename would replace.
	if err := os.Link(from, filepath.Join(s.dir, newName)); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return "", ErrExists
		case errors.Is(err, fs.ErrNotExist):
			return "", ErrNotFound
		}
		return "", fmt.Errorf("rename evidence: %w", err)
	}
	if err := os.Remove(from); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove temp evidence: %w", err)
	}
	return s.ref(newName), nil
}

func (s *LocalStore) Open(_ context.Context, ref Ref) (io.ReadCloser, error) {
	p, err := s.filePath(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
