// Package media stores uploaded files and derives thumbnails for images.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/socially-app/socially/internal/snowflake"
)

// thumbnailMax is the bounding box for generated thumbnails.
// Thumbnails never upscale.
const thumbnailMax = 640

// A File is a stored upload.
type File struct {
	// URL is the public path of the stored file, relative to the media root.
	URL string
	// ThumbnailURL is the public path of the thumbnail, empty for
	// non-image uploads.
	ThumbnailURL string
	// MediaType is the sniffed content type.
	MediaType string
}

// Storage writes uploads beneath a single directory, one subdirectory
// per kind of upload (messages, posts, stories).
type Storage struct {
	dir string
}

func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

// Dir returns the media root.
func (s *Storage) Dir() string {
	return s.dir
}

// Store saves the upload under kind and returns its public paths. The
// content type is sniffed from the data, not trusted from the client.
// Image uploads get a jpeg thumbnail alongside the original.
func (s *Storage) Store(r io.Reader, kind string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	mediaType := http.DetectContentType(data)

	id := snowflake.Now()
	name := fmt.Sprintf("%d%s", id, extension(mediaType))
	if err := os.MkdirAll(filepath.Join(s.dir, kind), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, kind, name), data, 0o644); err != nil {
		return nil, err
	}

	file := &File{
		URL:       path(kind, name),
		MediaType: mediaType,
	}
	if strings.HasPrefix(mediaType, "image/") {
		thumb, err := s.storeThumbnail(data, kind, id)
		if err == nil {
			file.ThumbnailURL = thumb
		}
		// an undecodable image keeps its original; the thumbnail is
		// best effort
	}
	return file, nil
}

// storeThumbnail decodes the image and writes a bounded jpeg copy.
func (s *Storage) storeThumbnail(data []byte, kind string, id snowflake.ID) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumb := resize.Thumbnail(thumbnailMax, thumbnailMax, img, resize.Lanczos3)

	name := fmt.Sprintf("%d_thumb.jpg", id)
	f, err := os.Create(filepath.Join(s.dir, kind, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := jpeg.Encode(f, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return path(kind, name), nil
}

func path(kind, name string) string {
	return "/media/" + kind + "/" + name
}

// extension maps a sniffed content type to a file extension.
func extension(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ""
	}
}
