package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubFactory struct {
	local       *LocalBackend
	remote      *fakeRemote
	mirroredErr error
	purgeRemote *fakeRemote
	purgeErr    error
	purgeOpens  int
}

func (f *stubFactory) LocalBackend(context.Context) (activities.Backend, error) {
	return f.local, nil
}

func (f *stubFactory) MirroredBackend(context.Context) (activities.Backend, error) {
	if f.mirroredErr != nil {
		return nil, f.mirroredErr
	}
	return NewMirroredBackend(MirroredBackendConfig{Local: f.local, Remote: f.remote, RemoteTimeout: time.Second})
}

func (f *stubFactory) OpenPurgeTarget(context.Context) (Purger, error) {
	f.purgeOpens++
	if f.purgeErr != nil {
		return nil, f.purgeErr
	}
	return f.purgeRemote, nil
}

func newControllerFixture(t *testing.T, enabled bool) (*stubFactory, *memoryPreferences, *activities.Store) {
	t.Helper()
	remote := newFakeRemote()
	factory := &stubFactory{
		local:       newTestLocalBackend(t),
		remote:      remote,
		purgeRemote: remote,
	}
	store, err := activities.NewStore(context.Background(), activities.StoreConfig{})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return factory, &memoryPreferences{enabled: enabled}, store
}

func newTestController(t *testing.T, factory BackendFactory, preferences Preferences, store *activities.Store, logger *zap.Logger) *Controller {
	t.Helper()
	controller, err := NewController(context.Background(), ControllerConfig{
		Store:        store,
		Factory:      factory,
		Preferences:  preferences,
		PurgeTimeout: 200 * time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("unexpected controller error: %v", err)
	}
	return controller
}

func TestControllerStartsInPersistedMode(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, true)
	controller := newTestController(t, factory, preferences, store, zap.NewNop())
	if controller.Mode() != ModeCloudMirrored || store.BackendName() != MirroredBackendName {
		t.Fatalf("expected cloud mirrored start, got %s/%s", controller.Mode(), store.BackendName())
	}

	factory, preferences, store = newControllerFixture(t, false)
	controller = newTestController(t, factory, preferences, store, zap.NewNop())
	if controller.Mode() != ModeLocalOnly || store.BackendName() != LocalBackendName {
		t.Fatalf("expected local start, got %s/%s", controller.Mode(), store.BackendName())
	}
}

func TestControllerFallsBackToLocalWhenMirrorUnavailable(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, true)
	factory.mirroredErr = ErrMirrorNotConfigured
	core, logs := observer.New(zapcore.DebugLevel)

	controller := newTestController(t, factory, preferences, store, zap.New(core))
	if controller.Mode() != ModeLocalOnly {
		t.Fatalf("expected local fallback, got %s", controller.Mode())
	}
	if !preferences.CloudSyncEnabled() {
		t.Fatalf("expected preference to be kept for the next start")
	}
	if logs.FilterMessage("cloud mirror unavailable, starting local-only").Len() != 1 {
		t.Fatalf("expected fallback warning")
	}
}

func TestControllerDisablePurgesAndSwitchesToLocal(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, true)
	controller := newTestController(t, factory, preferences, store, zap.NewNop())
	ctx := context.Background()

	if _, err := store.Add(ctx, activities.CategoryWalk, ""); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if factory.remote.count() != 1 {
		t.Fatalf("expected record to reach the mirror")
	}

	if err := controller.Disable(ctx); err != nil {
		t.Fatalf("unexpected disable error: %v", err)
	}
	if controller.Mode() != ModeLocalOnly || store.BackendName() != LocalBackendName {
		t.Fatalf("expected local mode after disable")
	}
	if factory.remote.count() != 0 || factory.remote.purged != 1 {
		t.Fatalf("expected mirror to be purged")
	}
	if preferences.CloudSyncEnabled() {
		t.Fatalf("expected preference to be persisted as disabled")
	}
	if store.Count() != 1 {
		t.Fatalf("expected local records to be kept, got %d", store.Count())
	}
}

func TestControllerDisableSurvivesPurgeFailure(t *testing.T) {
	testCases := []struct {
		name      string
		configure func(*stubFactory)
	}{
		{name: "open fails", configure: func(f *stubFactory) { f.purgeErr = errRemoteDown }},
		{name: "delete all fails", configure: func(f *stubFactory) { f.purgeRemote = &fakeRemote{deleteAllErr: errRemoteDown} }},
		{name: "purge hangs", configure: func(f *stubFactory) { f.purgeRemote = &fakeRemote{block: make(chan struct{})} }},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			factory, preferences, store := newControllerFixture(t, true)
			core, logs := observer.New(zapcore.DebugLevel)
			controller := newTestController(t, factory, preferences, store, zap.New(core))
			testCase.configure(factory)

			started := time.Now()
			if err := controller.Disable(context.Background()); err != nil {
				t.Fatalf("expected purge failure to be swallowed, got %v", err)
			}
			if elapsed := time.Since(started); elapsed > 5*time.Second {
				t.Fatalf("expected bounded purge, took %s", elapsed)
			}
			if controller.Mode() != ModeLocalOnly || store.BackendName() != LocalBackendName {
				t.Fatalf("expected local mode after failed purge")
			}
			if preferences.CloudSyncEnabled() {
				t.Fatalf("expected preference to be persisted as disabled")
			}

			warnings := logs.FilterMessage("mirror purge failed").All()
			if len(warnings) != 1 {
				t.Fatalf("expected one purge warning, got %d", len(warnings))
			}
			hasPurgeError := false
			for _, field := range warnings[0].Context {
				if field.Type != zapcore.ErrorType {
					continue
				}
				var purgeErr *PurgeError
				if errors.As(field.Interface.(error), &purgeErr) {
					hasPurgeError = true
				}
			}
			if !hasPurgeError {
				t.Fatalf("expected PurgeError context, got %v", warnings[0].Context)
			}
		})
	}
}

func TestControllerEnableIsIdempotent(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, false)
	controller := newTestController(t, factory, preferences, store, zap.NewNop())
	ctx := context.Background()

	for attempt := 0; attempt < 2; attempt++ {
		if err := controller.Enable(ctx); err != nil {
			t.Fatalf("unexpected enable error: %v", err)
		}
	}
	if controller.Mode() != ModeCloudMirrored {
		t.Fatalf("expected cloud mode, got %s", controller.Mode())
	}
	if len(preferences.writes) != 2 || !preferences.writes[1] {
		t.Fatalf("expected the flag to be persisted on each call, got %v", preferences.writes)
	}
}

func TestControllerDisableWhileLocalSkipsPurge(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, false)
	controller := newTestController(t, factory, preferences, store, zap.NewNop())

	if err := controller.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("unexpected disable error: %v", err)
	}
	if factory.purgeOpens != 0 {
		t.Fatalf("expected no purge while already local")
	}
}

func TestControllerDisableAfterFallbackStillPurges(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, true)
	factory.mirroredErr = errRemoteDown
	if err := factory.remote.Put(context.Background(), sampleRecord("a", activities.CategoryWalk, time.Now())); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	controller := newTestController(t, factory, preferences, store, zap.NewNop())
	if controller.Mode() != ModeLocalOnly {
		t.Fatalf("expected local fallback, got %s", controller.Mode())
	}

	if err := controller.Disable(context.Background()); err != nil {
		t.Fatalf("unexpected disable error: %v", err)
	}
	if factory.purgeOpens != 1 || factory.remote.count() != 0 {
		t.Fatalf("expected the mirror to be purged, opens=%d remaining=%d", factory.purgeOpens, factory.remote.count())
	}
	if preferences.CloudSyncEnabled() {
		t.Fatalf("expected preference to be cleared")
	}
}

func TestControllerDisableLogsSkippedPurgeWithoutMirror(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, true)
	factory.mirroredErr = ErrMirrorNotConfigured
	factory.purgeErr = ErrMirrorNotConfigured
	core, logs := observer.New(zapcore.DebugLevel)
	controller := newTestController(t, factory, preferences, store, zap.New(core))

	if err := controller.Disable(context.Background()); err != nil {
		t.Fatalf("unexpected disable error: %v", err)
	}
	if logs.FilterMessage("mirror purge skipped").FilterLevelExact(zapcore.InfoLevel).Len() != 1 {
		t.Fatalf("expected an info entry for the skipped purge")
	}
	if logs.FilterMessage("mirror purge failed").Len() != 0 {
		t.Fatalf("expected no purge warning without a configured mirror")
	}
	if preferences.CloudSyncEnabled() {
		t.Fatalf("expected preference to be cleared")
	}
}

func TestControllerEnableDoesNotUploadExistingRecords(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, false)
	controller := newTestController(t, factory, preferences, store, zap.NewNop())
	ctx := context.Background()

	if _, err := store.Add(ctx, activities.CategoryEat, ""); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := controller.SetEnabled(ctx, true); err != nil {
		t.Fatalf("unexpected enable error: %v", err)
	}
	if factory.remote.count() != 0 {
		t.Fatalf("expected pre-existing records to stay local")
	}
	if store.Count() != 1 {
		t.Fatalf("expected local record to remain visible")
	}
}

func TestControllerEnableFailureKeepsLocalMode(t *testing.T) {
	factory, preferences, store := newControllerFixture(t, false)
	controller := newTestController(t, factory, preferences, store, zap.NewNop())
	factory.mirroredErr = ErrMirrorNotConfigured

	if err := controller.Enable(context.Background()); !errors.Is(err, ErrMirrorNotConfigured) {
		t.Fatalf("expected ErrMirrorNotConfigured, got %v", err)
	}
	if controller.Mode() != ModeLocalOnly || preferences.CloudSyncEnabled() {
		t.Fatalf("expected failed enable to change nothing")
	}
}
