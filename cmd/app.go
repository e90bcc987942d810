package cmd

import (
	"os"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facemodel"
	"github.com/kozaktomas/face-attendance/internal/faults"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// app bundles the wired components every command needs.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	registry    *registry.Store
	ledger      *ledger.Ledger
	credentials *credentials.Store
	model       *facemodel.HNSW
	pipeline    *enrollment.Pipeline
}

func newLogger() *zap.Logger {
	var cfg zap.Config
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		// Logging must not block startup; fall back to a no-op logger.
		return zap.NewNop()
	}
	return logger
}

// newApp loads configuration and constructs the stores. The admin
// credential is bootstrapped on first run.
func newApp() (*app, error) {
	cfg := config.Load()
	logger := newLogger()

	reg := registry.New(cfg.Store.RegistryPath, logger)
	led := ledger.New(cfg.Store.AttendanceDir, logger)
	creds := credentials.New(cfg.Store.AdminFile, cfg.Store.CredentialsDir, cfg.Credentials.Salt, logger)
	model := facemodel.NewHNSW()

	a := &app{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		ledger:      led,
		credentials: creds,
		model:       model,
	}
	a.pipeline = enrollment.New(
		reg, creds, model,
		a.openCamera, camera.FullFrame,
		cfg.Store.SamplesDir, cfg.Store.ArtifactPath,
		logger,
	)

	if _, err := creds.BootstrapAdmin(); err != nil {
		return nil, err
	}
	return a, nil
}

// openCamera acquires the configured frame source. The default build ships
// the directory-backed device; physical cameras plug in through the same
// interface.
func (a *app) openCamera() (camera.Device, error) {
	if a.cfg.Camera.Dir == "" {
		return nil, faults.Device("no camera configured: set CAMERA_DIR to a frame directory")
	}
	return camera.OpenDir(a.cfg.Camera.Dir)
}

// loadModel loads the trained artifact into the model.
func (a *app) loadModel() error {
	return a.model.Load(a.cfg.Store.ArtifactPath)
}

func (a *app) close() {
	_ = a.logger.Sync()
}
