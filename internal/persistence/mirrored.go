package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"go.uber.org/zap"
)

const defaultRemoteTimeout = 10 * time.Second

var errMissingRemote = errors.New("persistence: mirror client is required")

// Remote is the slice of the mirror client a MirroredBackend needs.
type Remote interface {
	List(ctx context.Context) ([]activities.Record, error)
	Put(ctx context.Context, record activities.Record) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Close() error
}

// MirroredBackendConfig wires a MirroredBackend.
type MirroredBackendConfig struct {
	Local         *LocalBackend
	Remote        Remote
	RemoteTimeout time.Duration
	Logger        *zap.Logger
}

// MirroredBackend writes through to the local database and copies every
// change to the mirror service. The local copy serves reads. A failed save
// push is logged and carried by the next write of that record; a failed
// delete is queued locally and replayed on the next Load.
type MirroredBackend struct {
	local         *LocalBackend
	remote        Remote
	remoteTimeout time.Duration
	logger        *zap.Logger
}

// NewMirroredBackend validates cfg and constructs a MirroredBackend.
func NewMirroredBackend(cfg MirroredBackendConfig) (*MirroredBackend, error) {
	if cfg.Local == nil {
		return nil, errMissingDatabase
	}
	if cfg.Remote == nil {
		return nil, errMissingRemote
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirroredBackend{
		local:         cfg.Local,
		remote:        cfg.Remote,
		remoteTimeout: timeout,
		logger:        logger,
	}, nil
}

func (b *MirroredBackend) Name() string {
	return MirroredBackendName
}

// Load replays queued deletions, imports mirrored records that are missing or
// older locally, then returns the local collection. An unreachable mirror only
// costs the exchange.
func (b *MirroredBackend) Load(ctx context.Context) ([]activities.Record, error) {
	pending, err := b.replayDeletes(ctx)
	if err != nil {
		return nil, err
	}
	remoteCtx, cancel := context.WithTimeout(ctx, b.remoteTimeout)
	remoteRecords, err := b.remote.List(remoteCtx)
	cancel()
	if err != nil {
		b.logger.Warn("mirror import skipped", zap.Error(err))
	} else if err := b.importRecords(ctx, remoteRecords, pending); err != nil {
		return nil, err
	}
	return b.local.Load(ctx)
}

// replayDeletes pushes queued deletions in order and returns the ids still
// waiting. It stops at the first failure since the mirror is likely down.
func (b *MirroredBackend) replayDeletes(ctx context.Context) (map[string]struct{}, error) {
	ids, err := b.local.pendingRemoteDeletes(ctx)
	if err != nil {
		return nil, err
	}
	pending := make(map[string]struct{}, len(ids))
	replayed := 0
	for index, id := range ids {
		remoteCtx, cancel := context.WithTimeout(ctx, b.remoteTimeout)
		err := b.remote.Delete(remoteCtx, id)
		cancel()
		if err != nil {
			b.logger.Warn("mirror delete replay failed",
				zap.String("record_id", id),
				zap.Int("pending", len(ids)-index),
				zap.Error(err))
			for _, waiting := range ids[index:] {
				pending[waiting] = struct{}{}
			}
			break
		}
		if err := b.local.clearRemoteDelete(ctx, id); err != nil {
			return nil, err
		}
		replayed++
	}
	if replayed > 0 {
		b.logger.Info("mirror deletes replayed", zap.Int("count", replayed))
	}
	return pending, nil
}

// importRecords keeps the later of the local and mirrored copy of each
// record. Mirrored times carry millisecond precision, so ties go local.
func (b *MirroredBackend) importRecords(ctx context.Context, remoteRecords []activities.Record, pending map[string]struct{}) error {
	imported := 0
	for _, record := range remoteRecords {
		if _, deleted := pending[record.ID]; deleted {
			continue
		}
		current, found, err := b.local.get(ctx, record.ID)
		if err != nil {
			return err
		}
		if found && !record.UpdatedAt.After(current.UpdatedAt.Truncate(time.Millisecond)) {
			continue
		}
		if err := b.local.Save(ctx, record); err != nil {
			return err
		}
		imported++
	}
	if imported > 0 {
		b.logger.Info("mirror records imported", zap.Int("count", imported))
	}
	return nil
}

func (b *MirroredBackend) Save(ctx context.Context, record activities.Record) error {
	if err := b.local.Save(ctx, record); err != nil {
		return err
	}
	remoteCtx, cancel := context.WithTimeout(ctx, b.remoteTimeout)
	defer cancel()
	if err := b.remote.Put(remoteCtx, record); err != nil {
		b.logger.Warn("mirror push failed",
			zap.String("operation", "save"),
			zap.String("record_id", record.ID),
			zap.Error(err))
	}
	return nil
}

func (b *MirroredBackend) Delete(ctx context.Context, id string) error {
	if err := b.local.Delete(ctx, id); err != nil {
		return err
	}
	remoteCtx, cancel := context.WithTimeout(ctx, b.remoteTimeout)
	defer cancel()
	if err := b.remote.Delete(remoteCtx, id); err != nil {
		b.logger.Warn("mirror push failed",
			zap.String("operation", "delete"),
			zap.String("record_id", id),
			zap.Error(err))
		return b.local.queueRemoteDelete(ctx, id)
	}
	return nil
}

// DeleteAll clears the mirror first so a failure leaves both copies intact.
func (b *MirroredBackend) DeleteAll(ctx context.Context) error {
	remoteCtx, cancel := context.WithTimeout(ctx, b.remoteTimeout)
	defer cancel()
	if err := b.remote.DeleteAll(remoteCtx); err != nil {
		return err
	}
	if err := b.local.clearRemoteDeletes(ctx); err != nil {
		return err
	}
	return b.local.DeleteAll(ctx)
}

func (b *MirroredBackend) Close() error {
	return b.remote.Close()
}
