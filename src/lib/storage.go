package lib

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

// DocumentStorage keeps uploaded documents by key.
type DocumentStorage interface {
	Name() string
	Put(ctx context.Context, key string, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var storage DocumentStorage

func NewStorage(s DocumentStorage) {
	storage = s
}

// GetStorage defaults to a LocalStorage under DOCUMENTS_DIR.
func GetStorage() DocumentStorage {
	if storage != nil {
		return storage
	}
	dir := os.Getenv("DOCUMENTS_DIR")
	if dir == "" {
		dir = "documents"
	}
	storage = &LocalStorage{Dir: dir}
	return storage
}

type LocalStorage struct {
	Dir string
}

func (l *LocalStorage) Name() string {
	return "Local"
}

func (l *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", errors.New("invalid key")
	}
	return filepath.Join(l.Dir, clean), nil
}

func (l *LocalStorage) Put(ctx context.Context, key string, contentType string, body io.Reader, size int64) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, body)
	return err
}

func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
