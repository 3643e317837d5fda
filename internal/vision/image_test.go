package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte("hello frame")
	enc := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"jpeg data url", "data:image/jpeg;base64," + enc, false},
		{"bare base64", enc, false},
		{"unpadded", base64.RawStdEncoding.EncodeToString(payload), false},
		{"empty", "", true},
		{"no comma", "data:image/jpeg;base64" + enc, true},
		{"not base64 url", "data:text/plain," + enc, true},
		{"garbage", "data:image/jpeg;base64,!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Errorf("expected ErrInvalidDataURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("got %q, want %q", got, payload)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := range 30 {
		for x := range 40 {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 100, A: 255})
		}
	}

	frame, err := Decode(encodePNG(t, img))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Format != "png" {
		t.Errorf("expected png, got %s", frame.Format)
	}
	if frame.Gray.Bounds() != image.Rect(0, 0, 40, 30) {
		t.Errorf("unexpected bounds %v", frame.Gray.Bounds())
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	if frame, err := Decode(buf.Bytes()); err != nil || frame.Format != "jpeg" {
		t.Errorf("expected jpeg frame, got %v", err)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image at all")} {
		if _, err := Decode(data); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage for %q, got %v", data, err)
		}
	}
}

func TestToGray_OffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 20, 20))
	src.SetGray(12, 12, color.Gray{Y: 200})
	sub := src.SubImage(image.Rect(10, 10, 20, 20))

	gray := ToGray(sub)
	if gray.Bounds().Min != (image.Point{}) {
		t.Fatalf("expected origin-anchored image, got %v", gray.Bounds())
	}
	if gray.GrayAt(2, 2).Y != 200 {
		t.Errorf("expected pixel to move with the origin, got %d", gray.GrayAt(2, 2).Y)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEType(tt.data); got != tt.expected {
				t.Errorf("DetectMIMEType = %q, want %q", got, tt.expected)
			}
		})
	}
}
