// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Liveness constants
const (
	// BlinkEARThreshold is the average eye aspect ratio below which the eyes count as closed
	BlinkEARThreshold = 0.22

	// SmileWidthRatio is the mouth/face width ratio above which the mouth counts as smiling
	SmileWidthRatio = 0.38

	// SmirkLiftMargin is the allowed vertical slack (normalized units) between the mouth
	// corners and the lip centre for a corner lift to count as a smirk
	SmirkLiftMargin = 0.03

	// IdleTimeout resets a session back to the first challenge
	IdleTimeout = 15 * time.Second

	// SessionEvictionFactor multiplies IdleTimeout to get the age at which idle sessions are dropped
	SessionEvictionFactor = 4
)

// Face matching constants
const (
	// DefaultDistanceThreshold is the maximum LBPH chi-square distance accepted as a match.
	// Lower values = stricter matching
	DefaultDistanceThreshold = 85.0

	// CropSize is the edge length in pixels every face crop is resized to before encoding
	CropSize = 100

	// DuplicateBoxIoU is the overlap above which two detector boxes are treated as the same face
	DuplicateBoxIoU = 0.4

	// LBPGridX and LBPGridY are the number of histogram cells per crop axis
	LBPGridX = 8
	LBPGridY = 8

	// ExactScanLimit is the sample count up to which predictions scan every template.
	// Above it the HNSW graph supplies candidates.
	ExactScanLimit = 512

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node
	HNSWMaxNeighbors = 16

	// HNSWCandidates is how many neighbours are requested from HNSW before exact re-ranking
	HNSWCandidates = 10
)

// Template cache constants
const (
	// DefaultRemoteTimeout bounds a single blob-store call or download
	DefaultRemoteTimeout = 20 * time.Second

	// DefaultURLExpiry is the lifetime of a presigned fetch URL
	DefaultURLExpiry = 15 * time.Minute

	// MaxImageSize is the maximum accepted size of an enrollment image or frame in bytes (10MB)
	MaxImageSize = 10 << 20
)

// Attendance constants
const (
	// PresencePeriodDays is the fixed period length used for presence percentages
	PresencePeriodDays = 30

	// DateLayout formats attendance dates
	DateLayout = "2006-01-02"

	// TimeLayout formats attendance times
	TimeLayout = "15:04:05"
)
