// Package verify runs the per-frame kiosk pipeline: liveness challenge first,
// identity matching only once the session is live, and one attendance write
// per successful match.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/liveness"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
	"github.com/kozaktomas/attendance-kiosk/internal/templates"
	"github.com/kozaktomas/attendance-kiosk/internal/vision"
	"go.uber.org/zap"
)

// ErrInvalidFrame is returned for frames that cannot be decoded.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame statuses.
const (
	StatusNoFace   = "no face"
	StatusUnknown  = "unknown face"
	StatusVerified = "verified"
	StatusError    = "error"
)

// Color hints for the kiosk display.
const (
	ColorGray   = "gray"
	ColorYellow = "yellow"
	ColorRed    = "red"
	ColorGreen  = "green"
)

// UnknownName is reported whenever no identity is attached to a result.
const UnknownName = "Unknown"

// Enrollment messages shown to the operator.
const (
	MsgRegistered        = "User Registered Successfully!"
	MsgRegisteredNoFace  = "User Registered, but no face was found in the photo. Please register again with a clearer photo."
	MsgInvalidEnrollment = "Error: name, a positive id and a readable image are required"
	MsgUploadFailed      = "Error: could not store the photo, please try again"
	MsgLedgerFailed      = "Error: could not save the user, please try again"
	MsgEnrollFailed      = "Error: registration failed"
)

// Frame is one camera frame from a kiosk. Data holds encoded image bytes or a
// browser data URL.
type Frame struct {
	Data       []byte
	SessionKey string
}

// Result is what the kiosk displays for a frame.
type Result struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	UID    int64  `json:"uid,omitempty"`
	Color  string `json:"color"`
	Stage  string `json:"stage,omitempty"`
}

// Identifier is the read side of the identity matcher.
type Identifier interface {
	Identify(crop *image.Gray, threshold float64) (facematch.Prediction, bool)
	Stats() facematch.Stats
}

// Enroller registers new identities.
type Enroller interface {
	Enroll(ctx context.Context, name string, uid int64, img []byte) (templates.EnrollResult, error)
}

type Options struct {
	Threshold      float64          // maximum accepted match distance
	PresencePeriod int              // days in the attendance summary period
	IdleTimeout    time.Duration    // liveness idle reset, used to derive session eviction
	Now            func() time.Time // clock, defaults to time.Now
}

// Orchestrator owns the session table and composes the verification collaborators.
// It is safe for concurrent use.
type Orchestrator struct {
	mesh       vision.MeshProvider
	detector   vision.FaceDetector
	tracker    *liveness.Tracker
	matcher    Identifier
	enroller   Enroller
	attendance database.AttendanceLedger
	notifier   notify.Publisher
	opts       Options
	log        *zap.Logger
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Mesh       vision.MeshProvider
	Detector   vision.FaceDetector
	Tracker    *liveness.Tracker
	Matcher    Identifier
	Enroller   Enroller
	Attendance database.AttendanceLedger
	Notifier   notify.Publisher // optional
}

func New(deps Deps, opts Options, log *zap.Logger) (*Orchestrator, error) {
	switch {
	case deps.Mesh == nil:
		return nil, errors.New("mesh provider is required")
	case deps.Detector == nil:
		return nil, errors.New("face detector is required")
	case deps.Tracker == nil:
		return nil, errors.New("liveness tracker is required")
	case deps.Matcher == nil:
		return nil, errors.New("matcher is required")
	case deps.Attendance == nil:
		return nil, errors.New("attendance ledger is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = constants.DefaultDistanceThreshold
	}
	if opts.PresencePeriod <= 0 {
		opts.PresencePeriod = constants.PresencePeriodDays
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = constants.IdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		mesh:       deps.Mesh,
		detector:   deps.Detector,
		tracker:    deps.Tracker,
		matcher:    deps.Matcher,
		enroller:   deps.Enroller,
		attendance: deps.Attendance,
		notifier:   deps.Notifier,
		opts:       opts,
		log:        log,
	}, nil
}

func noFace() Result {
	return Result{Status: StatusNoFace, Name: UnknownName, Color: ColorGray}
}

func failed() Result {
	return Result{Status: StatusError, Name: UnknownName, Color: ColorRed}
}

// ProcessFrame evaluates one frame for a session.
// Only undecodable input is returned as an error; every other outcome,
// including collaborator failures, is a Result.
func (o *Orchestrator) ProcessFrame(ctx context.Context, f Frame) (Result, error) {
	data := f.Data
	if bytes.HasPrefix(data, []byte("data:")) {
		decoded, err := vision.DecodeDataURL(string(data))
		if err != nil {
			return failed(), fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
		data = decoded
	}
	frame, err := vision.Decode(data)
	if err != nil {
		return failed(), fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	log := o.log.With(zap.String("session", f.SessionKey))

	set, found, err := o.mesh.Landmarks(ctx, frame.Data)
	if err != nil {
		log.Warn("face mesh failed", zap.Error(err))
		return failed(), nil
	}
	if !found {
		return noFace(), nil
	}

	now := o.opts.Now()
	outcome, err := o.tracker.Advance(f.SessionKey, set, now)
	if err != nil {
		log.Debug("unusable landmark set", zap.Error(err))
		return noFace(), nil
	}
	if !outcome.Live() {
		return Result{
			Status: outcome.Message,
			Name:   UnknownName,
			Color:  ColorYellow,
			Stage:  outcome.Stage.String(),
		}, nil
	}

	pred, ok, err := o.identify(frame.Gray)
	if err != nil {
		log.Warn("face detection failed", zap.Error(err))
		return failed(), nil
	}
	if !ok {
		log.Debug("live face not recognized", zap.Float64("distance", pred.Distance))
		return Result{
			Status: StatusUnknown,
			Name:   UnknownName,
			Color:  ColorRed,
			Stage:  liveness.Verified.String(),
		}, nil
	}

	event := attendance.NewEvent(pred.UID, pred.Name, now)
	if err := o.attendance.RecordAttendance(ctx, event); err != nil {
		o.tracker.Reset(f.SessionKey)
		log.Error("failed to record attendance", zap.Int64("uid", pred.UID), zap.Error(err))
		return failed(), nil
	}
	if err := o.notifier.Publish(ctx, event); err != nil {
		log.Warn("failed to publish attendance event", zap.Int64("uid", pred.UID), zap.Error(err))
	}
	o.tracker.Reset(f.SessionKey)

	log.Info("attendance recorded",
		zap.Int64("uid", pred.UID),
		zap.String("name", pred.Name),
		zap.Float64("distance", pred.Distance),
		zap.String("date", event.Date))
	return Result{
		Status: StatusVerified,
		Name:   pred.Name,
		UID:    pred.UID,
		Color:  ColorGreen,
		Stage:  liveness.WaitingBlink.String(),
	}, nil
}

// identify runs the detector and the matcher over every distinct box. The
// last box wins; frames are expected to carry a single face.
func (o *Orchestrator) identify(gray *image.Gray) (facematch.Prediction, bool, error) {
	boxes, err := o.detector.Detect(gray)
	if err != nil {
		return facematch.Prediction{}, false, err
	}
	var (
		best    facematch.Prediction
		matched bool
	)
	for _, box := range facematch.DedupeBoxes(boxes) {
		crop := facematch.CropFace(gray, box)
		if crop == nil {
			continue
		}
		best, matched = o.matcher.Identify(crop, o.opts.Threshold)
	}
	return best, matched, nil
}

// EnrollUser registers a user and returns the message for the operator.
// The error is non-nil when the user was not registered.
func (o *Orchestrator) EnrollUser(ctx context.Context, name string, uid int64, img []byte) (string, error) {
	if o.enroller == nil {
		return MsgEnrollFailed, errors.New("enrollment is not configured")
	}
	if bytes.HasPrefix(img, []byte("data:")) {
		decoded, err := vision.DecodeDataURL(string(img))
		if err != nil {
			return MsgInvalidEnrollment, fmt.Errorf("%w: %w", templates.ErrInvalidEnrollment, err)
		}
		img = decoded
	}

	res, err := o.enroller.Enroll(ctx, name, uid, img)
	switch {
	case err == nil && res.Samples == 0:
		return MsgRegisteredNoFace, nil
	case err == nil:
		return MsgRegistered, nil
	case errors.Is(err, templates.ErrInvalidEnrollment):
		return MsgInvalidEnrollment, err
	case errors.Is(err, templates.ErrUploadFailed):
		return MsgUploadFailed, err
	case errors.Is(err, templates.ErrLedgerWrite):
		return MsgLedgerFailed, err
	default:
		return MsgEnrollFailed, err
	}
}

// AttendanceSummary reports the presence of uid over the configured period.
func (o *Orchestrator) AttendanceSummary(ctx context.Context, uid int64) (attendance.Summary, error) {
	dates, err := o.attendance.AttendanceDates(ctx, uid)
	if err != nil {
		return attendance.Summary{}, fmt.Errorf("failed to load attendance for uid %d: %w", uid, err)
	}
	return attendance.Summarize(dates, o.opts.PresencePeriod), nil
}

// SweepSessions drops sessions idle for several idle timeouts.
func (o *Orchestrator) SweepSessions() int {
	return o.tracker.Sweep(o.opts.Now(), o.opts.IdleTimeout*constants.SessionEvictionFactor)
}

// Health is a snapshot of the in-memory state.
type Health struct {
	Samples    int  `json:"samples"`
	Identities int  `json:"identities"`
	Indexed    bool `json:"indexed"`
	Sessions   int  `json:"sessions"`
}

func (o *Orchestrator) Health() Health {
	s := o.matcher.Stats()
	return Health{
		Samples:    s.Samples,
		Identities: s.Identities,
		Indexed:    s.Indexed,
		Sessions:   o.tracker.Len(),
	}
}
