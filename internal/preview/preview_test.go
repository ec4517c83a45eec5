package preview

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
)

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeDimensions(t *testing.T) {
	info, err := DecodeDimensions(encodedPNG(t, 640, 480))
	if err != nil {
		t.Fatalf("DecodeDimensions() error = %v", err)
	}
	if info.Width != 640 || info.Height != 480 {
		t.Errorf("dims = %dx%d, want 640x480", info.Width, info.Height)
	}
	if info.MimeType != "image/png" {
		t.Errorf("MimeType = %q", info.MimeType)
	}
}

func TestDecodeDimensionsBadInput(t *testing.T) {
	if _, err := DecodeDimensions("not base64!!!"); err == nil {
		t.Error("DecodeDimensions accepted invalid base64")
	}
	garbage := base64.StdEncoding.EncodeToString([]byte("not an image"))
	if _, err := DecodeDimensions(garbage); err == nil {
		t.Error("DecodeDimensions accepted non-image bytes")
	}
}

func TestThumbnailDownscales(t *testing.T) {
	thumb, err := Thumbnail(encodedPNG(t, 800, 400), 200)
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	info, err := DecodeDimensions(thumb)
	if err != nil {
		t.Fatalf("thumbnail not decodable: %v", err)
	}
	if info.Width > 200 || info.Height > 200 {
		t.Errorf("thumbnail %dx%d exceeds 200", info.Width, info.Height)
	}
	// Aspect ratio is preserved: 2:1 input stays 2:1.
	if info.Width != 2*info.Height {
		t.Errorf("aspect ratio lost: %dx%d", info.Width, info.Height)
	}
}

func TestThumbnailPassThrough(t *testing.T) {
	orig := encodedPNG(t, 100, 100)
	thumb, err := Thumbnail(orig, 200)
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	if thumb != orig {
		t.Error("image within bounds was re-encoded")
	}
}

func TestThumbnailInvalidMaxDim(t *testing.T) {
	if _, err := Thumbnail(encodedPNG(t, 10, 10), 0); err == nil {
		t.Error("Thumbnail accepted maxDim 0")
	}
}
