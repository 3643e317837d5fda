package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/templates"
	"github.com/kozaktomas/attendance-kiosk/internal/verify"
	"github.com/kozaktomas/attendance-kiosk/internal/web/middleware"
	"go.uber.org/zap"
)

// Error messages shown by the kiosk pages.
const (
	errNoID             = "No ID provided"
	errInvalidID        = "Invalid ID"
	errAttendanceLookup = "User not found or DB error"
)

// Verifier is the kiosk pipeline behind the HTTP surface.
type Verifier interface {
	ProcessFrame(ctx context.Context, f verify.Frame) (verify.Result, error)
	EnrollUser(ctx context.Context, name string, uid int64, img []byte) (string, error)
	AttendanceSummary(ctx context.Context, uid int64) (attendance.Summary, error)
	Health() verify.Health
}

// KioskHandler serves the frame, registration and report endpoints.
type KioskHandler struct {
	verifier Verifier
	log      *zap.Logger
}

// NewKioskHandler creates a new kiosk handler
func NewKioskHandler(v Verifier, log *zap.Logger) *KioskHandler {
	return &KioskHandler{verifier: v, log: log}
}

type frameRequest struct {
	Image string `json:"image"`
}

type saveUserRequest struct {
	Name  string          `json:"name"`
	ID    json.RawMessage `json:"id"`
	Image string          `json:"image"`
}

type attendanceRequest struct {
	ID json.RawMessage `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func frameError() verify.Result {
	return verify.Result{Status: verify.StatusError, Name: verify.UnknownName, Color: verify.ColorRed}
}

// ProcessFrame handles POST /process_frame
func (h *KioskHandler) ProcessFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Image == "" {
		respondJSON(w, http.StatusBadRequest, frameError())
		return
	}

	res, err := h.verifier.ProcessFrame(r.Context(), verify.Frame{
		Data:       []byte(req.Image),
		SessionKey: middleware.GetSessionKey(r),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, verify.ErrInvalidFrame) {
			status = http.StatusBadRequest
		}
		h.log.Debug("frame rejected", zap.Error(err))
		respondJSON(w, status, frameError())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// SaveUser handles POST /save_user
func (h *KioskHandler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req saveUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, messageResponse{Message: verify.MsgInvalidEnrollment})
		return
	}
	uid, err := parseUID(req.ID)
	if err != nil || req.Name == "" || req.Image == "" {
		respondJSON(w, http.StatusBadRequest, messageResponse{Message: verify.MsgInvalidEnrollment})
		return
	}

	msg, err := h.verifier.EnrollUser(r.Context(), req.Name, uid, []byte(req.Image))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, templates.ErrInvalidEnrollment):
			status = http.StatusBadRequest
		case errors.Is(err, templates.ErrUploadFailed):
			status = http.StatusBadGateway
		}
		h.log.Warn("registration failed",
			zap.String("name", sanitizeForLog(req.Name)), zap.Int64("uid", uid), zap.Error(err))
		respondJSON(w, status, messageResponse{Message: msg})
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// AttendanceData handles POST /get_attendance_data
func (h *KioskHandler) AttendanceData(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	uid, err := parseUID(req.ID)
	if errors.Is(err, errMissingID) {
		respondError(w, http.StatusBadRequest, errNoID)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidID)
		return
	}

	summary, err := h.verifier.AttendanceSummary(r.Context(), uid)
	if err != nil {
		h.log.Error("attendance lookup failed", zap.Int64("uid", uid), zap.Error(err))
		respondError(w, http.StatusInternalServerError, errAttendanceLookup)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

type healthResponse struct {
	Status string `json:"status"`
	verify.Health
}

// Health handles GET /api/v1/health
func (h *KioskHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Health: h.verifier.Health()})
}
