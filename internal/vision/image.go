package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidImage is returned for bytes that no registered decoder accepts.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidDataURL is returned for a frame payload that is not valid base64.
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// Frame is a decoded image with its original bytes.
type Frame struct {
	Data   []byte
	Format string
	Gray   *image.Gray
}

// DecodeDataURL extracts the bytes of a browser data URL ("data:image/jpeg;base64,...").
// A bare base64 payload without the prefix is accepted too.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: missing comma", ErrInvalidDataURL)
		}
		if !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURL)
		}
		s = s[comma+1:]
	}

	if base64.StdEncoding.DecodedLen(len(s)) > constants.MaxImageSize {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalidDataURL, constants.MaxImageSize)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
		}
	}
	return data, nil
}

// Decode decodes an encoded image and converts it to grayscale.
func Decode(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if len(data) > constants.MaxImageSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidImage, constants.MaxImageSize)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return &Frame{Data: data, Format: format, Gray: ToGray(img)}, nil
}

// ToGray converts img to an origin-anchored grayscale image.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// DetectMIMEType detects the MIME type from image magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
