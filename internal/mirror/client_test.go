package mirror

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pawpaw/internal/activities"
)

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{BaseURL: baseURL, Token: token, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("unexpected client error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientRoundTripsAgainstHandler(t *testing.T) {
	server := httptest.NewServer(newTestHandler(t, nil))
	defer server.Close()
	client := newTestClient(t, server.URL, "token-1")
	ctx := context.Background()
	base := time.Date(2025, time.February, 3, 6, 0, 0, 0, time.UTC)

	first := sampleRecord("a", activities.CategoryEat, base)
	note := "kibble"
	first.Note = &note
	second := sampleRecord("b", activities.CategoryPlay, base.Add(time.Hour))
	for _, record := range []activities.Record{first, second} {
		if err := client.Put(ctx, record); err != nil {
			t.Fatalf("unexpected put error: %v", err)
		}
	}

	records, err := client.List(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(records) != 2 || records[0].ID != "b" || records[1].ID != "a" {
		t.Fatalf("unexpected records %#v", records)
	}
	if !records[1].StartTime.Equal(base) || records[1].NoteText() != "kibble" {
		t.Fatalf("expected fields to survive the round trip, got %#v", records[1])
	}

	if err := client.Delete(ctx, "a"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := client.Delete(ctx, "a"); err != nil {
		t.Fatalf("expected deleting a missing record to succeed, got %v", err)
	}
	if err := client.DeleteAll(ctx); err != nil {
		t.Fatalf("unexpected purge error: %v", err)
	}
	records, err = client.List(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected mirror to be empty, got %d", len(records))
	}
}

func TestClientMapsUnauthorized(t *testing.T) {
	server := httptest.NewServer(newTestHandler(t, nil))
	defer server.Close()
	client := newTestClient(t, server.URL, "forged")

	_, err := client.List(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClientMapsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	}))
	defer server.Close()
	client := newTestClient(t, server.URL, "token-1")

	err := client.DeleteAll(context.Background())
	if !errors.Is(err, ErrRemoteStatus) {
		t.Fatalf("expected ErrRemoteStatus, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Code != "maintenance" {
		t.Fatalf("unexpected status error %#v", statusErr)
	}
}

func TestClientHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)
	client := newTestClient(t, server.URL, "token-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := client.DeleteAll(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "  ", "ftp://mirror.example", "://bad"} {
		if _, err := NewClient(ClientConfig{BaseURL: raw}); !errors.Is(err, ErrInvalidClientConfig) {
			t.Fatalf("expected ErrInvalidClientConfig for %q, got %v", raw, err)
		}
	}
}
