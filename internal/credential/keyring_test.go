package credential

import (
	"testing"

	"github.com/99designs/keyring"
)

func TestMirrorTokenLifecycle(t *testing.T) {
	store := NewStore(keyring.NewArrayKeyring(nil))

	token, err := store.MirrorToken()
	if err != nil {
		t.Fatalf("unexpected error reading empty keyring: %v", err)
	}
	if token != "" {
		t.Fatalf("expected no token, got %q", token)
	}

	if err := store.SetMirrorToken("secret-token"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	token, err = store.MirrorToken()
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if token != "secret-token" {
		t.Fatalf("unexpected token %q", token)
	}

	if err := store.ClearMirrorToken(); err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}
	if err := store.ClearMirrorToken(); err != nil {
		t.Fatalf("expected clearing twice to succeed, got %v", err)
	}
	token, err = store.MirrorToken()
	if err != nil || token != "" {
		t.Fatalf("expected token to be gone, got %q err=%v", token, err)
	}
}
