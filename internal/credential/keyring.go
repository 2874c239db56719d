package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName    = "pawpaw"
	mirrorTokenKey = "mirror-token"
)

// Store keeps the mirror account token in the system keyring.
type Store struct {
	ring keyring.Keyring
}

// Open opens the system keyring, falling back to an encrypted file under dir.
func Open(dir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("pawpaw-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// MirrorToken returns the stored token, or an empty string when none is set.
func (s *Store) MirrorToken() (string, error) {
	item, err := s.ring.Get(mirrorTokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", mirrorTokenKey, err)
	}
	return string(item.Data), nil
}

// SetMirrorToken stores token.
func (s *Store) SetMirrorToken(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   mirrorTokenKey,
		Data:  []byte(token),
		Label: "pawpaw mirror token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", mirrorTokenKey, err)
	}
	return nil
}

// ClearMirrorToken removes the token. Clearing an absent token succeeds.
func (s *Store) ClearMirrorToken() error {
	err := s.ring.Remove(mirrorTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", mirrorTokenKey, err)
	}
	return nil
}
