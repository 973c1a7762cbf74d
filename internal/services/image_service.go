package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/sjperalta/cashflow-api/internal/storage"
)

const thumbnailSize = 256

// ImageService builds thumbnails for uploaded collateral and ID photos
type ImageService struct {
	storage *storage.LocalStorage
}

func NewImageService(storage *storage.LocalStorage) *ImageService {
	return &ImageService{storage: storage}
}

// Thumbnail reads a stored image, scales it to fit a 256px box and stores
// the result next to the original. It returns the thumbnail's relative path.
func (s *ImageService) Thumbnail(relativePath, subDir string) (string, error) {
	ext := storage.Extension(relativePath)
	if ext != "jpg" && ext != "jpeg" && ext != "png" {
		return "", fmt.Errorf("cannot thumbnail %s files", ext)
	}

	src, err := s.storage.FullPath(relativePath)
	if err != nil {
		return "", err
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	data, err := encodeImage(thumb, ext)
	if err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	stored, err := s.storage.SaveBytes(data, ext, subDir)
	if err != nil {
		return "", err
	}
	return stored.Path, nil
}

func encodeImage(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if ext == "png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
