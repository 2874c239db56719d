package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"go.uber.org/zap"
)

const defaultPurgeTimeout = 15 * time.Second

// Mode is the persistence state of the controller.
type Mode string

const (
	ModeLocalOnly     Mode = "local-only"
	ModeCloudMirrored Mode = "cloud-mirrored"
)

var (
	errMissingStore       = errors.New("persistence: record store is required")
	errMissingFactory     = errors.New("persistence: backend factory is required")
	errMissingPreferences = errors.New("persistence: preferences are required")
)

// Preferences persists the cloud sync flag.
type Preferences interface {
	CloudSyncEnabled() bool
	SetCloudSyncEnabled(enabled bool) error
}

// Purger clears the mirror during opt-out.
type Purger interface {
	DeleteAll(ctx context.Context) error
	Close() error
}

// BackendFactory builds the backends the controller switches between.
type BackendFactory interface {
	LocalBackend(ctx context.Context) (activities.Backend, error)
	MirroredBackend(ctx context.Context) (activities.Backend, error)
	OpenPurgeTarget(ctx context.Context) (Purger, error)
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Store        *activities.Store
	Factory      BackendFactory
	Preferences  Preferences
	PurgeTimeout time.Duration
	Logger       *zap.Logger
}

// Controller switches the store between local-only and cloud-mirrored
// persistence.
type Controller struct {
	mu           sync.Mutex
	mode         Mode
	store        *activities.Store
	factory      BackendFactory
	preferences  Preferences
	purgeTimeout time.Duration
	logger       *zap.Logger
}

// NewController reads the sync preference and binds the store accordingly.
// When the mirrored backend cannot be built the store starts local-only and
// the preference is left untouched so the next start tries again.
func NewController(ctx context.Context, cfg ControllerConfig) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Factory == nil {
		return nil, errMissingFactory
	}
	if cfg.Preferences == nil {
		return nil, errMissingPreferences
	}
	timeout := cfg.PurgeTimeout
	if timeout <= 0 {
		timeout = defaultPurgeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	controller := &Controller{
		store:        cfg.Store,
		factory:      cfg.Factory,
		preferences:  cfg.Preferences,
		purgeTimeout: timeout,
		logger:       logger,
	}

	if cfg.Preferences.CloudSyncEnabled() {
		err := controller.bind(ctx, ModeCloudMirrored)
		if err == nil {
			return controller, nil
		}
		logger.Warn("cloud mirror unavailable, starting local-only", zap.Error(err))
	}
	if err := controller.bind(ctx, ModeLocalOnly); err != nil {
		return nil, err
	}
	return controller, nil
}

// Mode reports the active persistence mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetEnabled dispatches to Enable or Disable.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		return c.Enable(ctx)
	}
	return c.Disable(ctx)
}

// Enable points the store at the mirrored backend and persists the flag.
// Existing local records are not uploaded.
func (c *Controller) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeCloudMirrored {
		if err := c.bind(ctx, ModeCloudMirrored); err != nil {
			return err
		}
	}
	return c.preferences.SetCloudSyncEnabled(true)
}

// Disable purges the mirror on a best-effort basis, then points the store at
// the local backend and persists the flag. Purge failures are logged only.
// The purge is also attempted when the store fell back to local-only at start
// while the preference still asked for the mirror.
func (c *Controller) Disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeLocalOnly || c.preferences.CloudSyncEnabled() {
		if err := c.purge(ctx); err != nil {
			if errors.Is(err, ErrMirrorNotConfigured) {
				c.logger.Info("mirror purge skipped", zap.Error(err))
			} else {
				c.logger.Warn("mirror purge failed", zap.Error(err))
			}
		}
	}
	if c.mode != ModeLocalOnly {
		if err := c.bind(ctx, ModeLocalOnly); err != nil {
			return err
		}
	}
	return c.preferences.SetCloudSyncEnabled(false)
}

func (c *Controller) bind(ctx context.Context, mode Mode) error {
	var (
		backend activities.Backend
		err     error
	)
	switch mode {
	case ModeCloudMirrored:
		backend, err = c.factory.MirroredBackend(ctx)
	default:
		backend, err = c.factory.LocalBackend(ctx)
	}
	if err != nil {
		return err
	}
	if err := c.store.Rebind(ctx, backend); err != nil {
		if closeErr := backend.Close(); closeErr != nil {
			c.logger.Warn("closing rejected backend failed", zap.Error(closeErr))
		}
		return err
	}
	c.mode = mode
	c.logger.Info("persistence mode changed", zap.String("mode", string(mode)))
	return nil
}

func (c *Controller) purge(ctx context.Context) error {
	purgeCtx, cancel := context.WithTimeout(ctx, c.purgeTimeout)
	defer cancel()

	target, err := c.factory.OpenPurgeTarget(purgeCtx)
	if err != nil {
		return &PurgeError{Reason: "open_failed", Err: err}
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			c.logger.Debug("closing purge target failed", zap.Error(closeErr))
		}
	}()

	if err := target.DeleteAll(purgeCtx); err != nil {
		return &PurgeError{Reason: "delete_all_failed", Err: err}
	}
	c.logger.Info("mirror purged")
	return nil
}
