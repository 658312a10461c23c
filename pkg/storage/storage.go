package storage

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
)

// Storage is an abstraction of a blob store (eg a directory, or a GCS bucket)
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}

// Open returns a GCS store for locations of the form "gs://bucket/optional/prefix",
// and a filesystem store rooted at location for anything else.
func Open(log logs.Log, location string) (Storage, error) {
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("Invalid GCS location '%v'", location)
		}
		return NewStorageGCS(log, bucket, prefix)
	}
	return NewStorageFS(log, location)
}

func validName(name string) error {
	if name == "" || strings.Contains(name, "..") {
		return fmt.Errorf("Invalid file name %v", name)
	}
	return nil
}
