// Package vision decodes kiosk frames and defines the face detection collaborators.
package vision

import (
	"context"
	"image"

	"github.com/kozaktomas/attendance-kiosk/internal/landmarks"
)

// FaceDetector locates face rectangles in a grayscale image.
type FaceDetector interface {
	Detect(img *image.Gray) ([]image.Rectangle, error)
}

// MeshProvider returns the landmark set of the primary face in an encoded image.
// The bool is false when no face was found.
type MeshProvider interface {
	Landmarks(ctx context.Context, imageData []byte) (landmarks.Set, bool, error)
}

// DetectorFunc adapts a function to FaceDetector.
type DetectorFunc func(img *image.Gray) ([]image.Rectangle, error)

func (f DetectorFunc) Detect(img *image.Gray) ([]image.Rectangle, error) {
	return f(img)
}
