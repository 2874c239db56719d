package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/auth"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/credential"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/database"
	"github.com/MarcoPoloResearchLab/pawpaw/internal/mirror"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, time.June, 14, 18, 30, 0, 0, time.UTC)

type cliHarness struct {
	t         *testing.T
	dataDir   string
	ring      keyring.Keyring
	confirmed bool
	prompts   []string
	extraArgs []string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	return &cliHarness{
		t:       t,
		dataDir: t.TempDir(),
		ring:    keyring.NewArrayKeyring(nil),
	}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	rt := newCLIRuntime()
	rt.now = func() time.Time { return testNow }
	rt.confirm = func(title, description string) (bool, error) {
		h.prompts = append(h.prompts, title)
		return h.confirmed, nil
	}
	rt.openKeyring = func(string) (*credential.Store, error) {
		return credential.NewStore(h.ring), nil
	}

	var out bytes.Buffer
	root := newRootCommand(rt)
	root.SetOut(&out)
	root.SetErr(&out)
	fullArgs := append([]string{"--data-dir", h.dataDir, "--timezone", "UTC", "--log-level", "error"}, h.extraArgs...)
	root.SetArgs(append(fullArgs, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("pawpaw %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (h *cliHarness) storedRecords() []activities.Record {
	h.t.Helper()
	db, err := database.OpenRecordStore(filepath.Join(h.dataDir, "pawpaw.db"), zap.NewNop())
	if err != nil {
		h.t.Fatalf("failed to open record store: %v", err)
	}
	defer func() { _ = database.Close(db) }()
	var records []activities.Record
	if err := db.Order("start_time DESC").Find(&records).Error; err != nil {
		h.t.Fatalf("failed to read records: %v", err)
	}
	return records
}

func TestRecordListAndLast(t *testing.T) {
	harness := newCLIHarness(t)
	harness.mustRun("record", "potty", "--note", "after nap")

	records := harness.storedRecords()
	if len(records) != 1 {
		t.Fatalf("expected one stored record, got %d", len(records))
	}
	if records[0].Category != activities.CategoryPee {
		t.Fatalf("expected legacy potty to record as Pee, got %s", records[0].Category)
	}
	if !records[0].StartTime.Equal(testNow) || records[0].Duration() != activities.DefaultDuration {
		t.Fatalf("unexpected span %s..%s", records[0].StartTime, records[0].EndTime)
	}

	listOutput := harness.mustRun("list")
	if !strings.Contains(listOutput, "Today") || !strings.Contains(listOutput, "after nap") {
		t.Fatalf("unexpected list output:\n%s", listOutput)
	}

	lastOutput := harness.mustRun("last")
	if !strings.Contains(lastOutput, records[0].ID) {
		t.Fatalf("expected last to show %s, got:\n%s", records[0].ID, lastOutput)
	}
}

func TestAddUsesSuggestedDurationBeforeEnd(t *testing.T) {
	harness := newCLIHarness(t)
	harness.mustRun("add", "eat", "--end", "18:00")

	records := harness.storedRecords()
	if len(records) != 1 {
		t.Fatalf("expected one stored record, got %d", len(records))
	}
	expectedStart := time.Date(2025, time.June, 14, 17, 45, 0, 0, time.UTC)
	if !records[0].StartTime.Equal(expectedStart) {
		t.Fatalf("expected start %s, got %s", expectedStart, records[0].StartTime)
	}
}

func TestAddRejectsEndBeforeStart(t *testing.T) {
	harness := newCLIHarness(t)
	if _, err := harness.run("add", "walk", "--start", "12:00", "--end", "11:00"); err == nil {
		t.Fatalf("expected an invalid range error")
	}
	if len(harness.storedRecords()) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestEditAndRemove(t *testing.T) {
	harness := newCLIHarness(t)
	harness.mustRun("record", "play", "--note", "fetch")
	id := harness.storedRecords()[0].ID

	harness.mustRun("edit", id, "--category", "walk", "--note", "")
	edited := harness.storedRecords()[0]
	if edited.Category != activities.CategoryWalk || edited.Note != nil {
		t.Fatalf("unexpected edited record %#v", edited)
	}

	harness.mustRun("rm", id)
	if len(harness.storedRecords()) != 0 {
		t.Fatalf("expected record to be removed")
	}
	if _, err := harness.run("rm", id); err == nil {
		t.Fatalf("expected error removing an unknown id")
	}
}

func TestClearHonoursConfirmation(t *testing.T) {
	harness := newCLIHarness(t)
	harness.mustRun("record", "pee")
	harness.mustRun("record", "poo")

	output := harness.mustRun("clear")
	if !strings.Contains(output, "Nothing deleted") || len(harness.storedRecords()) != 2 {
		t.Fatalf("expected declined clear to keep records, got:\n%s", output)
	}
	if len(harness.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(harness.prompts))
	}

	harness.confirmed = true
	harness.mustRun("clear")
	if len(harness.storedRecords()) != 0 {
		t.Fatalf("expected all records deleted")
	}
}

func TestStatsCommands(t *testing.T) {
	harness := newCLIHarness(t)
	harness.mustRun("add", "pee", "--start", "07:10", "--end", "07:11")
	harness.mustRun("add", "pee", "--start", "07:40", "--end", "07:41")
	harness.mustRun("add", "walk", "--start", "2025-06-01 09:00", "--end", "2025-06-01 09:30")

	totals := harness.mustRun("stats", "totals", "--range", "today")
	if !strings.Contains(totals, "Pee    2") || !strings.Contains(totals, "Walk   0") {
		t.Fatalf("unexpected totals output:\n%s", totals)
	}
	allTime := harness.mustRun("stats", "totals", "--range", "all")
	if !strings.Contains(allTime, "Walk   1") {
		t.Fatalf("unexpected all-time output:\n%s", allTime)
	}
	if _, err := harness.run("stats", "totals", "--range", "fortnight"); err == nil {
		t.Fatalf("expected unknown range error")
	}

	hourly := harness.mustRun("stats", "hourly", "--category", "pee")
	if !strings.Contains(hourly, "Pee by hour") {
		t.Fatalf("unexpected hourly output:\n%s", hourly)
	}
}

func TestSyncStatusFallsBackWithoutMirror(t *testing.T) {
	harness := newCLIHarness(t)
	output := harness.mustRun("sync", "status")
	if !strings.Contains(output, "local-only") || !strings.Contains(output, "working local-only") {
		t.Fatalf("expected local fallback notice, got:\n%s", output)
	}
	if _, err := harness.run("sync", "enable"); err == nil {
		t.Fatalf("expected enable to fail without a mirror")
	}
}

func TestSyncEnableMirrorsAndDisablePurges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mirrorDB, err := database.OpenMirrorStore(filepath.Join(t.TempDir(), "mirror.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open mirror store: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(mirrorDB) })
	repository, err := mirror.NewRepository(mirror.RepositoryConfig{Database: mirrorDB})
	if err != nil {
		t.Fatalf("unexpected repository error: %v", err)
	}
	tokens, err := auth.NewAccountTokens(auth.AccountTokensConfig{
		SigningSecret: []byte("cli-secret"),
		Issuer:        "pawpaw-mirror",
		Audience:      "pawpaw-app",
	})
	if err != nil {
		t.Fatalf("unexpected token error: %v", err)
	}
	handler, err := mirror.NewHTTPHandler(mirror.Dependencies{Tokens: tokens, Repository: repository})
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	token, _, err := tokens.Issue("household-cli")
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}

	harness := newCLIHarness(t)
	harness.extraArgs = []string{"--mirror-url", server.URL}
	harness.mustRun("sync", "login", "--token", token)
	harness.mustRun("sync", "enable")
	harness.mustRun("record", "walk", "--note", "park loop")

	ctx := context.Background()
	mirrored, err := repository.List(ctx, "household-cli")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(mirrored) != 1 || mirrored[0].NoteText() != "park loop" {
		t.Fatalf("expected record on the mirror, got %#v", mirrored)
	}

	declined := harness.mustRun("sync", "disable")
	if !strings.Contains(declined, "remains enabled") {
		t.Fatalf("expected declined disable, got:\n%s", declined)
	}

	harness.confirmed = true
	harness.mustRun("sync", "disable")
	mirrored, err = repository.List(ctx, "household-cli")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(mirrored) != 0 {
		t.Fatalf("expected mirror purge, got %d records", len(mirrored))
	}
	if len(harness.storedRecords()) != 1 {
		t.Fatalf("expected local record to survive opt-out")
	}

	harness.mustRun("sync", "logout")
	if token, err := credential.NewStore(harness.ring).MirrorToken(); err != nil || token != "" {
		t.Fatalf("expected token removed, got %q (%v)", token, err)
	}
}

func TestReportSaveFailuresPrintsOnlyFailures(t *testing.T) {
	events := make(chan activities.Event, 3)
	events <- activities.Event{Type: activities.EventRecordsChanged}
	events <- activities.Event{Type: activities.EventSaveFailed, Backend: "local", Err: context.DeadlineExceeded}

	var out bytes.Buffer
	reportSaveFailures(&out, events)
	if strings.Count(out.String(), "Not saved") != 1 || !strings.Contains(out.String(), "deadline exceeded") {
		t.Fatalf("unexpected failure report %q", out.String())
	}
}
