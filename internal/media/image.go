// Package media stores uploaded recipe images on local disk.
package media

import (
	"bytes"
	"errors"
	"image"

	// Registered decoders for accepted upload formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when data does not decode as a supported image.
var ErrNotImage = errors.New("not a supported image")

// extensions maps decoder format names to file extensions.
var extensions = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

// contentTypes maps file extensions to MIME types for serving.
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// maxPixels caps the width*height declared in an image header.
const maxPixels = 40_000_000

// DecodeImage checks the header of data, then fully decodes it and returns
// the file extension for its format.
func DecodeImage(data []byte) (ext string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}

	ext, ok := extensions[format]
	if !ok {
		return "", ErrNotImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return "", ErrNotImage
	}

	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", ErrNotImage
	}
	return ext, nil
}

// DecodeBytes rejects an empty payload, then runs DecodeImage.
func DecodeBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}
	return DecodeImage(data)
}

// ContentType returns the MIME type for a stored image path.
func ContentType(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			if ct, ok := contentTypes[path[i+1:]]; ok {
				return ct
			}
			break
		}
	}
	return "application/octet-stream"
}
