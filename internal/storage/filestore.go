package storage

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/amirk1998/daybook/pkg/errors"
)

// AllowedImageTypes maps accepted sniffed content types to the stored
// file extension.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// StoredFile describes a file written by FileStore.Save.
type StoredFile struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// FileStore keeps uploaded files under a single directory with
// generated names.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save copies at most maxBytes from r into a new file. The content type
// is sniffed from the first 512 bytes and must be an allowed image type.
func (fs *FileStore) Save(r io.Reader, maxBytes int64) (*StoredFile, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, errors.Validation("image file is empty")
	}

	contentType := http.DetectContentType(head)
	ext, ok := AllowedImageTypes[contentType]
	if !ok {
		return nil, errors.NewAppError(errors.ErrUnsupportedMedia,
			"only JPEG, PNG, GIF and WebP images are accepted", http.StatusUnsupportedMediaType)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(fs.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	// one extra byte tells an exact-size upload from an oversized one
	n, err := io.Copy(f, io.LimitReader(br, maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if n > maxBytes {
		os.Remove(path)
		return nil, errors.NewAppError(errors.ErrFileTooLarge,
			fmt.Sprintf("image exceeds the %d byte limit", maxBytes), http.StatusRequestEntityTooLarge)
	}

	return &StoredFile{Name: name, Path: path, Size: n, ContentType: contentType}, nil
}

// Open returns the stored file called name.
func (fs *FileStore) Open(name string) (*os.File, error) {
	path, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.ErrRecordNotFound
	}
	return f, err
}

// Remove deletes the stored file; a missing file is not an error.
func (fs *FileStore) Remove(name string) error {
	path, err := fs.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func (fs *FileStore) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.ErrRecordNotFound
	}
	return filepath.Join(fs.dir, name), nil
}
