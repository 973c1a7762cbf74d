package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidFileType = errors.New("file type not allowed, use pdf, jpg, jpeg or png")
	ErrFileTooLarge    = errors.New("file exceeds the maximum upload size")
	ErrInvalidPath     = errors.New("path escapes the storage root")
)

// allowedExtensions maps accepted upload extensions to their content type
var allowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// LocalStorage handles file storage on the local filesystem
type LocalStorage struct {
	basePath string
	maxSize  int64
}

// StoredFile describes a file written to storage
type StoredFile struct {
	Name string // generated file name
	Path string // path relative to the storage root
	Size int64
	Ext  string // lower case, without the dot
}

// NewLocalStorage creates a new local storage instance. maxSize is the upload
// limit in bytes.
func NewLocalStorage(basePath string, maxSize int64) (*LocalStorage, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, maxSize: maxSize}, nil
}

// MaxSize returns the upload limit in bytes
func (s *LocalStorage) MaxSize() int64 {
	return s.maxSize
}

// Validate checks the extension and size of an upload and returns its extension
func (s *LocalStorage) Validate(header *multipart.FileHeader) (string, error) {
	ext := Extension(header.Filename)
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrInvalidFileType
	}
	if s.maxSize > 0 && header.Size > s.maxSize {
		return "", ErrFileTooLarge
	}
	return ext, nil
}

// Save validates and stores an upload under subDir (e.g. "clients/12")
func (s *LocalStorage) Save(header *multipart.FileHeader, subDir string) (*StoredFile, error) {
	ext, err := s.Validate(header)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	return s.write(file, ext, subDir)
}

// SaveBytes stores generated content (thumbnails, rendered reports)
func (s *LocalStorage) SaveBytes(data []byte, ext, subDir string) (*StoredFile, error) {
	return s.write(bytes.NewReader(data), strings.TrimPrefix(strings.ToLower(ext), "."), subDir)
}

func (s *LocalStorage) write(r io.Reader, ext, subDir string) (*StoredFile, error) {
	dir, err := s.resolve(subDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	name := uuid.New().String() + "." + ext
	fullPath := filepath.Join(dir, name)

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	// Read one byte past the limit so oversized streams are caught even when
	// the header lied about the size
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	size, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if s.maxSize > 0 && size > s.maxSize {
		os.Remove(fullPath)
		return nil, ErrFileTooLarge
	}

	relPath, _ := filepath.Rel(s.basePath, fullPath)
	return &StoredFile{Name: name, Path: filepath.ToSlash(relPath), Size: size, Ext: ext}, nil
}

// Open returns a stored file for reading
func (s *LocalStorage) Open(relativePath string) (*os.File, error) {
	fullPath, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// Delete removes a file. Missing files are not an error.
func (s *LocalStorage) Delete(relativePath string) error {
	fullPath, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteDir removes a directory and everything below it
func (s *LocalStorage) DeleteDir(subDir string) error {
	dir, err := s.resolve(subDir)
	if err != nil {
		return err
	}
	if dir == filepath.Clean(s.basePath) {
		return ErrInvalidPath
	}
	return os.RemoveAll(dir)
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(relativePath string) bool {
	fullPath, err := s.resolve(relativePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// FullPath returns the absolute path for serving files
func (s *LocalStorage) FullPath(relativePath string) (string, error) {
	return s.resolve(relativePath)
}

func (s *LocalStorage) resolve(relativePath string) (string, error) {
	root := filepath.Clean(s.basePath)
	full := filepath.Join(root, filepath.FromSlash(relativePath))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// ClientDir is the directory holding a client's documents
func ClientDir(clientID uint) string {
	return fmt.Sprintf("clients/%d", clientID)
}

// Extension returns the lower case extension of name without the dot
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// ContentType returns the content type for an accepted extension
func ContentType(ext string) string {
	if ct, ok := allowedExtensions[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
