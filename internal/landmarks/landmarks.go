// Package landmarks computes scale-invariant ratios from face-mesh landmark points.
// All functions are pure; coordinates are normalized to the frame (0-1, Y grows downward).
package landmarks

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
)

var (
	// ErrLandmarkOutOfRange is returned when the layout references a point the mesh did not produce.
	ErrLandmarkOutOfRange = errors.New("landmark index out of range")
	// ErrDegenerateGeometry is returned when a ratio denominator collapses to zero.
	ErrDegenerateGeometry = errors.New("degenerate landmark geometry")
)

// Point is a normalized 2D landmark.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Set is the ordered landmark list for one detected face in one frame.
type Set []Point

// Layout names the mesh indices used by the ratio functions.
// Eye indices are ordered p1..p6: outer corner, two upper lid points, inner corner, two lower lid points.
type Layout struct {
	LeftEye    [6]int
	RightEye   [6]int
	MouthLeft  int
	MouthRight int
	FaceLeft   int
	FaceRight  int
	UpperLip   int
	LowerLip   int
}

// DefaultLayout returns the MediaPipe face-mesh indices.
func DefaultLayout() Layout {
	return Layout{
		LeftEye:    [6]int{33, 160, 158, 133, 153, 144},
		RightEye:   [6]int{362, 385, 387, 263, 373, 380},
		MouthLeft:  61,
		MouthRight: 291,
		FaceLeft:   234,
		FaceRight:  454,
		UpperLip:   13,
		LowerLip:   14,
	}
}

// LayoutFromConfig converts the configured index lists into a Layout.
func LayoutFromConfig(cfg config.LandmarkConfig) (Layout, error) {
	if len(cfg.LeftEye) != 6 || len(cfg.RightEye) != 6 {
		return Layout{}, fmt.Errorf("eye layouts need 6 indices, got %d and %d", len(cfg.LeftEye), len(cfg.RightEye))
	}
	l := Layout{
		MouthLeft:  cfg.MouthLeft,
		MouthRight: cfg.MouthRight,
		FaceLeft:   cfg.FaceLeft,
		FaceRight:  cfg.FaceRight,
		UpperLip:   cfg.UpperLip,
		LowerLip:   cfg.LowerLip,
	}
	copy(l.LeftEye[:], cfg.LeftEye)
	copy(l.RightEye[:], cfg.RightEye)
	return l, nil
}

// SmileThresholds tune SmirkSignal.
type SmileThresholds struct {
	WidthRatio float64 // mouth width / face width above which the mouth counts as smiling
	LiftMargin float64 // corners at or above lip centre plus this margin count as lifted
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func (s Set) at(i int) (Point, error) {
	if i < 0 || i >= len(s) {
		return Point{}, fmt.Errorf("%w: index %d, mesh has %d points", ErrLandmarkOutOfRange, i, len(s))
	}
	return s[i], nil
}

func (s Set) points(idx ...int) ([]Point, error) {
	out := make([]Point, len(idx))
	for i, n := range idx {
		p, err := s.at(n)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// EyeAspectRatio computes (|p2-p6| + |p3-p5|) / (2 * |p1-p4|) for one eye.
func EyeAspectRatio(s Set, idx [6]int) (float64, error) {
	p, err := s.points(idx[:]...)
	if err != nil {
		return 0, err
	}
	horizontal := Distance(p[0], p[3])
	if horizontal == 0 {
		return 0, fmt.Errorf("%w: zero eye width", ErrDegenerateGeometry)
	}
	return (Distance(p[1], p[5]) + Distance(p[2], p[4])) / (2 * horizontal), nil
}

// AverageEAR averages the eye aspect ratio over both eyes.
func AverageEAR(s Set, l Layout) (float64, error) {
	left, err := EyeAspectRatio(s, l.LeftEye)
	if err != nil {
		return 0, err
	}
	right, err := EyeAspectRatio(s, l.RightEye)
	if err != nil {
		return 0, err
	}
	return (left + right) / 2, nil
}

// MouthWidthRatio is mouth-corner distance over face width.
func MouthWidthRatio(s Set, l Layout) (float64, error) {
	p, err := s.points(l.MouthLeft, l.MouthRight, l.FaceLeft, l.FaceRight)
	if err != nil {
		return 0, err
	}
	face := Distance(p[2], p[3])
	if face == 0 {
		return 0, fmt.Errorf("%w: zero face width", ErrDegenerateGeometry)
	}
	return Distance(p[0], p[1]) / face, nil
}

// SmirkSignal reports a full smile (wide mouth) or lifted mouth corners.
func SmirkSignal(s Set, l Layout, th SmileThresholds) (bool, error) {
	ratio, err := MouthWidthRatio(s, l)
	if err != nil {
		return false, err
	}
	if ratio > th.WidthRatio {
		return true, nil
	}

	p, err := s.points(l.MouthLeft, l.MouthRight, l.UpperLip, l.LowerLip)
	if err != nil {
		return false, err
	}
	cornerY := (p[0].Y + p[1].Y) / 2
	lipCentreY := (p[2].Y + p[3].Y) / 2
	return cornerY <= lipCentreY+th.LiftMargin, nil
}
