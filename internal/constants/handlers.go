// Package constants provides shared constants used across the codebase.
package constants

import "time"

// HTTP server constants
const (
	// MaxRequestBody is the maximum JSON request body (a base64 frame is ~4/3 of the image)
	MaxRequestBody = MaxImageSize * 2

	// RequestTimeout bounds a single HTTP request
	RequestTimeout = 60 * time.Second

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout = 30 * time.Second

	// SessionHeader lets a kiosk pin its liveness session instead of using its IP
	SessionHeader = "X-Kiosk-Session"
)
