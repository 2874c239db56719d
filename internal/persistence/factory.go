package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/mirror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrMirrorNotConfigured indicates cloud mode without a mirror URL or token.
var ErrMirrorNotConfigured = errors.New("persistence: mirror url and token are required")

// RemoteDialer opens a fresh mirror connection.
type RemoteDialer func(ctx context.Context) (Remote, error)

// FactoryConfig wires a Factory.
type FactoryConfig struct {
	Database      *gorm.DB
	Dial          RemoteDialer
	RemoteTimeout time.Duration
	Logger        *zap.Logger
}

// Factory builds persistence backends over one shared database handle.
type Factory struct {
	local         *LocalBackend
	dial          RemoteDialer
	remoteTimeout time.Duration
	logger        *zap.Logger
}

// NewFactory validates cfg and constructs a Factory. Dial may be nil when no
// mirror is configured; cloud backends then fail with ErrMirrorNotConfigured.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	local, err := NewLocalBackend(cfg.Database)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		local:         local,
		dial:          cfg.Dial,
		remoteTimeout: cfg.RemoteTimeout,
		logger:        logger,
	}, nil
}

// LocalBackend returns the local-only backend.
func (f *Factory) LocalBackend(context.Context) (activities.Backend, error) {
	return f.local, nil
}

// MirroredBackend returns a backend that mirrors to a fresh remote connection.
func (f *Factory) MirroredBackend(ctx context.Context) (activities.Backend, error) {
	remote, err := f.openRemote(ctx)
	if err != nil {
		return nil, err
	}
	return NewMirroredBackend(MirroredBackendConfig{
		Local:         f.local,
		Remote:        remote,
		RemoteTimeout: f.remoteTimeout,
		Logger:        f.logger,
	})
}

// OpenPurgeTarget opens a short-lived remote connection independent of the
// store's active backend.
func (f *Factory) OpenPurgeTarget(ctx context.Context) (Purger, error) {
	return f.openRemote(ctx)
}

func (f *Factory) openRemote(ctx context.Context) (Remote, error) {
	if f.dial == nil {
		return nil, ErrMirrorNotConfigured
	}
	return f.dial(ctx)
}

// MirrorDialer returns a RemoteDialer that constructs HTTP mirror clients.
// The token is resolved on every dial so logins take effect without restart.
func MirrorDialer(baseURL string, token func() (string, error), timeout time.Duration, logger *zap.Logger) RemoteDialer {
	return func(context.Context) (Remote, error) {
		if strings.TrimSpace(baseURL) == "" || token == nil {
			return nil, ErrMirrorNotConfigured
		}
		resolved, err := token()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(resolved) == "" {
			return nil, ErrMirrorNotConfigured
		}
		client, err := mirror.NewClient(mirror.ClientConfig{
			BaseURL: baseURL,
			Token:   resolved,
			Timeout: timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
