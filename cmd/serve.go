package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/database/postgres"
	"github.com/kozaktomas/attendance-kiosk/internal/liveness"
	"github.com/kozaktomas/attendance-kiosk/internal/notify"
	"github.com/kozaktomas/attendance-kiosk/internal/verify"
	"github.com/kozaktomas/attendance-kiosk/internal/vision/meshclient"
	"github.com/kozaktomas/attendance-kiosk/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the kiosk web server.

The server accepts frames immediately. Enrolled identities are hydrated from
the blob store in the background; until that finishes every live face is
reported as unknown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("skip-hydrate", false, "Do not hydrate enrolled identities on startup")
}

// newNotifier connects to MQTT when a broker is configured.
func newNotifier(cfg config.MQTTConfig, log *zap.Logger) notify.Publisher {
	if cfg.Broker == "" {
		return notify.Nop{}
	}
	p, err := notify.NewMQTT(cfg, log)
	if err != nil {
		log.Warn("attendance events will not be published", zap.Error(err))
		return notify.Nop{}
	}
	return p
}

// hydrateInBackground fills the matcher while the server is already serving.
func hydrateInBackground(ctx context.Context, e *enrollment, log *zap.Logger) {
	go func() {
		start := time.Now()
		report, err := e.cache.HydrateAll(ctx, nil)
		if err != nil {
			log.Error("hydration failed", zap.Error(err))
			return
		}
		log.Info("hydration finished",
			zap.Int("identities", report.Identities),
			zap.Int("cached", report.Cached),
			zap.Int("downloaded", report.Downloaded),
			zap.Int("failed", report.Failed),
			zap.Int("no_face", report.NoFace),
			zap.Int("samples", report.Samples),
			zap.Int("replayed", report.Replayed),
			zap.Duration("took", time.Since(start)))
	}()
}

// sweepSessions drops abandoned liveness sessions until ctx is done.
func sweepSessions(ctx context.Context, orch *verify.Orchestrator, every time.Duration, log *zap.Logger) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := orch.SweepSessions(); n > 0 {
					log.Debug("swept idle sessions", zap.Int("count", n))
				}
			}
		}
	}()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnrollment(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer e.Close()

	livenessCfg, err := liveness.ConfigFrom(cfg)
	if err != nil {
		return fmt.Errorf("invalid landmark layout: %w", err)
	}

	mesh := meshclient.New(cfg.Vision.MeshURL)
	if err := mesh.Ping(ctx); err != nil {
		log.Warn("face mesh service is not reachable yet", zap.String("url", cfg.Vision.MeshURL), zap.Error(err))
	}

	notifier := newNotifier(cfg.MQTT, log.Named("notify"))
	defer notifier.Close()

	orch, err := verify.New(verify.Deps{
		Mesh:       mesh,
		Detector:   e.detector,
		Tracker:    liveness.NewTracker(livenessCfg),
		Matcher:    e.matcher,
		Enroller:   e.cache,
		Attendance: postgres.NewAttendanceRepository(e.pool),
		Notifier:   notifier,
	}, verify.Options{
		Threshold:      cfg.Matcher.DistanceThreshold,
		PresencePeriod: cfg.Matcher.PresencePeriod,
		IdleTimeout:    cfg.Liveness.IdleTimeout,
	}, log.Named("verify"))
	if err != nil {
		return err
	}

	if !mustGetBool(cmd, "skip-hydrate") {
		hydrateInBackground(ctx, e, log.Named("hydrate"))
	}
	sweepSessions(ctx, orch, cfg.Liveness.IdleTimeout*constants.SessionEvictionFactor, log)

	server := web.NewServer(cfg.Web, orch, log.Named("web"))

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	log.Info("kiosk ready", zap.String("url", fmt.Sprintf("http://%s:%d", cfg.Web.Host, cfg.Web.Port)))
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	// In-flight requests may still use the ledgers closed by the deferred calls.
	<-drained
	return nil
}
