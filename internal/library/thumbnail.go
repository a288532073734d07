package library

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// DefaultThumbnailSize is the longest edge of a thumbnail in pixels.
	DefaultThumbnailSize = 256
	MinThumbnailSize     = 32
	MaxThumbnailSize     = 1024
)

// ClampThumbnailSize keeps a requested size within the allowed range. Zero
// or negative means the default.
func ClampThumbnailSize(size int) int {
	switch {
	case size <= 0:
		return DefaultThumbnailSize
	case size < MinThumbnailSize:
		return MinThumbnailSize
	case size > MaxThumbnailSize:
		return MaxThumbnailSize
	}
	return size
}

// GenerateThumbnail takes raw image data, scales it so its longer edge is
// maxDim pixels and returns it encoded as JPEG. Images already smaller than
// maxDim are re-encoded at their own size.
func GenerateThumbnail(imageData []byte, maxDim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// Get image dimensions
	imgHeight := img.Bounds().Dy()
	imgWidth := img.Bounds().Dx()

	resizedImg := img
	if imgHeight > maxDim || imgWidth > maxDim {
		if imgHeight > imgWidth {
			resizedImg = resize.Resize(0, uint(maxDim), img, resize.Lanczos3)
		} else {
			resizedImg = resize.Resize(uint(maxDim), 0, img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	// Quality 75 is a good balance.
	if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
