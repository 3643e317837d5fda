// Package cascade detects faces with an OpenCV Haar cascade classifier.
package cascade

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

const (
	scaleFactor  = 1.1
	minNeighbors = 5
	minFaceSize  = 30
)

// Detector wraps a loaded cascade. CascadeClassifier is not safe for
// concurrent use, so Detect serializes calls.
type Detector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// New loads the cascade XML at path.
func New(path string) (*Detector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade file not found: %w", err)
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade classifier from %s", path)
	}
	return &Detector{classifier: classifier}, nil
}

// Detect returns the face rectangles found in img.
func (d *Detector) Detect(img *image.Gray) ([]image.Rectangle, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	faces := d.classifier.DetectMultiScaleWithParams(
		mat,
		scaleFactor,
		minNeighbors,
		0,
		image.Point{X: minFaceSize, Y: minFaceSize},
		image.Point{},
	)
	return faces, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
