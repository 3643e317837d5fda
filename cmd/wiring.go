package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/blobstore"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database/postgres"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/templates"
	"github.com/kozaktomas/attendance-kiosk/internal/vision"
	"github.com/kozaktomas/attendance-kiosk/internal/vision/cascade"
	"github.com/kozaktomas/attendance-kiosk/internal/vision/dlib"
	"go.uber.org/zap"
)

// newDetector builds the face-box detector selected by FACE_DETECTOR.
func newDetector(cfg config.VisionConfig) (vision.FaceDetector, io.Closer, error) {
	switch cfg.Detector {
	case "cascade", "":
		d, err := cascade.New(cfg.CascadePath)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case "dlib":
		d, err := dlib.New(cfg.DlibModelsDir)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	default:
		return nil, nil, fmt.Errorf("unknown face detector %q (want cascade or dlib)", cfg.Detector)
	}
}

// enrollment is the part of the application shared by serve, hydrate and enroll.
type enrollment struct {
	pool     *postgres.Pool
	detector vision.FaceDetector
	closer   io.Closer
	matcher  *facematch.Matcher
	cache    *templates.Cache
}

func (e *enrollment) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// openEnrollment connects the database, the blob store and the detector and builds the template cache.
func openEnrollment(ctx context.Context, cfg *config.Config, log *zap.Logger) (*enrollment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &enrollment{matcher: facematch.NewMatcher(log.Named("matcher"))}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	log.Info("connecting to PostgreSQL")
	pool, err := postgres.Open(ctx, &cfg.Database, log.Named("postgres"))
	if err != nil {
		return nil, err
	}
	e.pool = pool

	blobs, err := blobstore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	detector, closer, err := newDetector(cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}
	e.detector, e.closer = detector, closer

	cache, err := templates.New(templates.Options{
		Dir:           cfg.Storage.TemplateDir,
		RemoteTimeout: cfg.Storage.RemoteTimeout,
		HTTPClient:    &http.Client{Timeout: cfg.Storage.RemoteTimeout},
	}, blobs, postgres.NewIdentityRepository(pool), detector, e.matcher, log.Named("templates"))
	if err != nil {
		return nil, err
	}
	e.cache = cache

	log.Info("enrollment ready",
		zap.String("detector", cfg.Vision.Detector),
		zap.String("bucket", cfg.Storage.Bucket),
		zap.String("template_dir", cfg.Storage.TemplateDir))
	ok = true
	return e, nil
}
