package evidence

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Ref identifies a stored artifact. It is what a challan keeps as its proof
// image path.
type Ref string

var (
	ErrNotFound    = errors.New("evidence not found")
	ErrInvalidName = errors.New("invalid evidence name")
	ErrExists      = errors.New("evidence name already taken")
)

// Store is the storage backend behind the evidence lifecycle. Rename never
// replaces an existing artifact; it fails with ErrExists instead.
type Store interface {
	Save(ctx context.Context, data []byte, name string) (Ref, error)
	Rename(ctx context.Context, ref Ref, newName string) (Ref, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// Name returns the trailing object name of a reference.
func Name(ref Ref) string {
	return path.Base(string(ref))
}
