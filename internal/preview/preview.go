// Package preview produces small image summaries so tool responses stay
// well under transport limits even for full-resolution generations.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Info describes a decoded image without holding its pixels.
type Info struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
}

// DecodeDimensions reads just enough of a base64 image to report its size.
func DecodeDimensions(imageBase64 string) (*Info, error) {
	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	return &Info{Width: cfg.Width, Height: cfg.Height, MimeType: "image/" + format}, nil
}

// Thumbnail downscales a base64 image to fit within maxDim on its longer
// side, preserving aspect ratio. Images already within bounds pass through
// unchanged.
func Thumbnail(imageBase64 string, maxDim int) (string, error) {
	if maxDim < 1 {
		return "", fmt.Errorf("maxDim must be at least 1, got %d", maxDim)
	}

	data, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("invalid base64 image data: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return imageBase64, nil
	}

	small := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
