// Package blobstore stores raw audio uploads on the local filesystem, keyed
// by opaque references. Baseline sessions keep references instead of payloads
// so the database stays small.
package blobstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tractorcare/tractorcare-go/internal/errors"
	"github.com/tractorcare/tractorcare-go/internal/logging"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("blobstore")
	})
	return logger
}

// Store is a filesystem-backed blob store rooted at a single directory.
type Store struct {
	root string
}

// New creates the store, creating the root directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.Newf("blob store root path is required").
			Component("blobstore").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("root", root).
			Build()
	}
	return &Store{root: root}, nil
}

// Put stores the payload and returns its reference. The write goes through a
// temp file and rename so a partial write never becomes readable.
func (s *Store) Put(data []byte) (string, error) {
	ref := uuid.New().String()

	tempFile, err := os.CreateTemp(s.root, "blob-*.tmp")
	if err != nil {
		return "", errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("operation", "put").
			Build()
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return "", errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("operation", "put").
			Build()
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return "", errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("operation", "put").
			Build()
	}

	if err := os.Rename(tempName, s.path(ref)); err != nil {
		os.Remove(tempName)
		return "", errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("operation", "put").
			Context("ref", ref).
			Build()
	}

	getLogger().Debug("Stored blob", "ref", ref, "size_bytes", len(data))
	return ref, nil
}

// Get returns the payload for a reference.
func (s *Store) Get(ref string) ([]byte, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("blob %s not found", ref).
				Component("blobstore").
				Category(errors.CategoryNotFound).
				Context("ref", ref).
				Build()
		}
		return nil, errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("operation", "get").
			Context("ref", ref).
			Build()
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *Store) Delete(ref string) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if err := os.Remove(s.path(ref)); err != nil && !os.IsNotExist(err) {
		return errors.New(err).
			Component("blobstore").
			Category(errors.CategoryFileIO).
			Context("operation", "delete").
			Context("ref", ref).
			Build()
	}
	return nil
}

func (s *Store) path(ref string) string {
	return filepath.Join(s.root, ref+".bin")
}

// validateRef rejects references that could escape the root directory.
func validateRef(ref string) error {
	if ref == "" || strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return errors.Newf("invalid blob reference %q", ref).
			Component("blobstore").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
