// Package templates keeps a local file cache of enrollment images backed by
// the blob store and the identity ledger, and feeds the identity matcher.
package templates

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/vision"
	"go.uber.org/zap"
)

const fileExt = ".img"

var (
	// ErrInvalidEnrollment is returned for a missing name, non-positive uid or undecodable image.
	ErrInvalidEnrollment = errors.New("invalid enrollment")
	// ErrUploadFailed is returned when the blob store rejects the image. No local state is created.
	ErrUploadFailed = errors.New("upload failed")
	// ErrLedgerWrite is returned when the identity record could not be saved. No local state is created.
	ErrLedgerWrite = errors.New("identity ledger write failed")
)

// BlobStore is the remote home of enrollment images.
type BlobStore interface {
	Upload(ctx context.Context, data []byte) (string, error)
	FreshURL(ctx context.Context, handle string) (string, error)
}

// Trainer is the part of the identity matcher the cache feeds.
type Trainer interface {
	TrainBulk(samples []facematch.TrainingSample)
	UpdateIncremental(samples []facematch.TrainingSample)
}

type Options struct {
	Dir           string        // local cache directory
	RemoteTimeout time.Duration // per upload, presign and download
	HTTPClient    *http.Client  // used to download presigned URLs
}

type Cache struct {
	dir      string
	timeout  time.Duration
	http     *http.Client
	blobs    BlobStore
	ledger   database.IdentityLedger
	detector vision.FaceDetector
	trainer  Trainer
	log      *zap.Logger

	// Enrollments made while a hydration pass runs are kept in pending and
	// replayed into its TrainBulk, which would otherwise drop them.
	mu      sync.Mutex
	passes  int
	pending []facematch.TrainingSample
}

// EnrollResult describes a completed enrollment.
type EnrollResult struct {
	Identity database.Identity
	Path     string // empty if the local write failed
	Samples  int    // face crops added to the matcher
}

// HydrateReport summarizes one hydration pass.
type HydrateReport struct {
	Identities int `json:"identities"`
	Cached     int `json:"cached"`     // local file already present
	Downloaded int `json:"downloaded"` // fetched from the blob store
	Failed     int `json:"failed"`     // could not be materialized or read
	NoFace     int `json:"no_face"`    // image had no detectable face
	Samples    int `json:"samples"`    // crops passed to TrainBulk
	Replayed   int `json:"replayed"`   // of Samples, crops enrolled during the pass
}

func New(opts Options, blobs BlobStore, ledger database.IdentityLedger, detector vision.FaceDetector, trainer Trainer, log *zap.Logger) (*Cache, error) {
	if opts.Dir == "" {
		return nil, errors.New("template directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = constants.DefaultRemoteTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Cache{
		dir:      opts.Dir,
		timeout:  opts.RemoteTimeout,
		http:     opts.HTTPClient,
		blobs:    blobs,
		ledger:   ledger,
		detector: detector,
		trainer:  trainer,
		log:      log,
	}, nil
}

// Path returns the local file for an identity.
func (c *Cache) Path(name string, uid int64) string {
	return filepath.Join(c.dir, Key(name, uid)+fileExt)
}

// Enroll uploads image, records the identity and teaches the matcher.
// Local state is only written after the identity is durable.
func (c *Cache) Enroll(ctx context.Context, name string, uid int64, img []byte) (EnrollResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return EnrollResult{}, fmt.Errorf("%w: name is required", ErrInvalidEnrollment)
	}
	if uid <= 0 {
		return EnrollResult{}, fmt.Errorf("%w: uid must be positive", ErrInvalidEnrollment)
	}
	frame, err := vision.Decode(img)
	if err != nil {
		return EnrollResult{}, fmt.Errorf("%w: %w", ErrInvalidEnrollment, err)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	handle, err := c.blobs.Upload(uploadCtx, img)
	cancel()
	if err != nil {
		return EnrollResult{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	identity := database.Identity{UID: uid, Name: name, RemoteHandle: handle}
	if err := c.ledger.SaveIdentity(ctx, identity); err != nil {
		c.log.Error("identity ledger write failed, uploaded blob is orphaned",
			zap.Int64("uid", uid), zap.String("handle", handle), zap.Error(err))
		return EnrollResult{}, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}

	result := EnrollResult{Identity: identity}
	path := c.Path(name, uid)
	if err := writeFileAtomic(path, img); err != nil {
		c.log.Warn("failed to cache enrollment image locally",
			zap.Int64("uid", uid), zap.String("path", path), zap.Error(err))
	} else {
		result.Path = path
	}

	samples := c.samples(identity, frame.Gray)
	result.Samples = len(samples)
	if len(samples) == 0 {
		c.log.Warn("no face detected in enrollment image", zap.Int64("uid", uid), zap.String("name", name))
		return result, nil
	}
	c.teach(samples)
	c.log.Info("identity enrolled",
		zap.Int64("uid", uid), zap.String("name", name), zap.String("handle", handle), zap.Int("samples", len(samples)))
	return result, nil
}

// HydrateAll materializes every ledger identity locally and bulk-trains the matcher.
// Per-identity failures are logged and skipped. A cancelled context stops the
// pass before training.
func (c *Cache) HydrateAll(ctx context.Context, progress func(done, total int)) (HydrateReport, error) {
	c.beginPass()
	trained := false
	defer func() {
		if !trained {
			c.endPass()
		}
	}()

	identities, err := c.ledger.ListIdentities(ctx)
	if err != nil {
		return HydrateReport{}, fmt.Errorf("failed to list identities: %w", err)
	}

	report := HydrateReport{Identities: len(identities)}
	var samples []facematch.TrainingSample
	for i, id := range identities {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := c.log.With(zap.Int64("uid", id.UID), zap.String("name", id.Name))
		path := c.Path(id.Name, id.UID)
		data, fromCache, err := c.materialize(ctx, id, path)
		switch {
		case err != nil:
			report.Failed++
			log.Warn("failed to hydrate identity", zap.String("handle", id.RemoteHandle), zap.Error(err))
		default:
			if fromCache {
				report.Cached++
			} else {
				report.Downloaded++
			}
			frame, err := vision.Decode(data)
			if err != nil {
				report.Failed++
				log.Warn("cached image is unreadable", zap.String("path", path), zap.Error(err))
				break
			}
			got := c.samples(id, frame.Gray)
			if len(got) == 0 {
				report.NoFace++
				log.Warn("no face detected in cached image", zap.String("path", path))
			}
			samples = append(samples, got...)
		}

		if progress != nil {
			progress(i+1, len(identities))
		}
	}

	report.Samples, report.Replayed = c.trainPass(samples)
	trained = true
	c.log.Info("hydration complete",
		zap.Int("identities", report.Identities),
		zap.Int("cached", report.Cached),
		zap.Int("downloaded", report.Downloaded),
		zap.Int("failed", report.Failed),
		zap.Int("samples", report.Samples),
		zap.Int("replayed", report.Replayed))
	return report, nil
}

func (c *Cache) beginPass() {
	c.mu.Lock()
	c.passes++
	c.mu.Unlock()
}

func (c *Cache) endPass() {
	c.mu.Lock()
	c.endPassLocked()
	c.mu.Unlock()
}

func (c *Cache) endPassLocked() {
	c.passes--
	if c.passes == 0 {
		c.pending = nil
	}
}

// teach adds freshly enrolled samples to the live model and records them for
// any hydration pass in flight.
func (c *Cache) teach(samples []facematch.TrainingSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passes > 0 {
		c.pending = append(c.pending, samples...)
	}
	c.trainer.UpdateIncremental(samples)
}

// trainPass replaces the model with the hydrated samples plus the enrollments
// made during the pass. A uid enrolled during the pass keeps only its new
// samples. Returns the total and the replayed sample counts.
func (c *Cache) trainPass(hydrated []facematch.TrainingSample) (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.endPassLocked()

	fresh := make(map[int64]bool, len(c.pending))
	for _, s := range c.pending {
		fresh[s.UID] = true
	}
	merged := make([]facematch.TrainingSample, 0, len(hydrated)+len(c.pending))
	for _, s := range hydrated {
		if !fresh[s.UID] {
			merged = append(merged, s)
		}
	}
	merged = append(merged, c.pending...)
	c.trainer.TrainBulk(merged)
	return len(merged), len(c.pending)
}

// materialize returns the image bytes for id, downloading them when the local file is missing.
func (c *Cache) materialize(ctx context.Context, id database.Identity, path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("read cached image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url, err := c.blobs.FreshURL(ctx, id.RemoteHandle)
	if err != nil {
		return nil, false, fmt.Errorf("fresh url: %w", err)
	}
	data, err = c.download(ctx, url)
	if err != nil {
		return nil, false, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, false, fmt.Errorf("write cached image: %w", err)
	}
	return data, false, nil
}

func (c *Cache) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed (status %d)", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read download: %w", err)
	}
	if len(data) > constants.MaxImageSize {
		return nil, fmt.Errorf("download exceeds %d bytes", constants.MaxImageSize)
	}
	return data, nil
}

// samples detects faces in gray and turns each box into a labeled crop.
func (c *Cache) samples(id database.Identity, gray *image.Gray) []facematch.TrainingSample {
	boxes, err := c.detector.Detect(gray)
	if err != nil {
		c.log.Warn("face detection failed", zap.Int64("uid", id.UID), zap.Error(err))
		return nil
	}
	boxes = facematch.DedupeBoxes(boxes)
	out := make([]facematch.TrainingSample, 0, len(boxes))
	for _, box := range boxes {
		crop := facematch.CropFace(gray, box)
		if crop == nil {
			continue
		}
		out = append(out, facematch.TrainingSample{UID: id.UID, Name: id.Name, Crop: crop})
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
