// Package dlib detects faces with the dlib HOG detector through go-face.
package dlib

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"
)

// Detector runs go-face detection. The recognizer is not goroutine safe.
type Detector struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// New loads the dlib models from modelsDir.
func New(modelsDir string) (*Detector, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	return &Detector{rec: rec}, nil
}

// Detect returns the face rectangles found in img.
func (d *Detector) Detect(img *image.Gray) ([]image.Rectangle, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	faces, err := d.rec.Recognize(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("dlib detection failed: %w", err)
	}
	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle.Add(img.Bounds().Min)
	}
	return boxes, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
	return nil
}
