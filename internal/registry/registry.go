package registry

// File-backed user registry (users.json). The registration bot owns the
// file; the watcher only ever reads it. Each entry is one watched subject:
// a beneficiary keypair plus the (token, liquidity pool) pair to scan.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// WatchedSubject is one registered (wallet, mint, pool) triple.
type WatchedSubject struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	TokenCA    string `json:"tokenCA"`
	LPAddress  string `json:"lpAddress"`
	Active     bool   `json:"active"`
}

// ID keys watermark/dedupe state across restarts.
func (s WatchedSubject) ID() string {
	return s.TokenCA + ":" + s.LPAddress
}

type UsersFile struct {
	Users []WatchedSubject `json:"users"`
}

type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the registered subjects. A missing file is an empty
// registry, not an error: the watcher may start before anyone signs up.
func (r *Store) Load() ([]WatchedSubject, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var file UsersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal users file: %w", err)
	}
	return file.Users, nil
}

// Active filters Load down to subjects with monitoring switched on.
func (r *Store) Active() ([]WatchedSubject, error) {
	users, err := r.Load()
	if err != nil {
		return nil, err
	}
	active := make([]WatchedSubject, 0, len(users))
	for _, u := range users {
		if u.Active {
			active = append(active, u)
		}
	}
	return active, nil
}

func (r *Store) save(file *UsersFile) error {
	jsonData, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users file: %w", err)
	}
	if err := os.WriteFile(r.path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to save users file: %w", err)
	}
	return nil
}

// Add appends a subject. Only the registration bot calls this.
func (r *Store) Add(subject WatchedSubject) error {
	users, err := r.Load()
	if err != nil {
		return err
	}
	return r.save(&UsersFile{Users: append(users, subject)})
}

// DeleteByPublicKey removes every subject registered under pub and reports
// how many were dropped.
func (r *Store) DeleteByPublicKey(pub string) (int, error) {
	users, err := r.Load()
	if err != nil {
		return 0, err
	}
	kept := make([]WatchedSubject, 0, len(users))
	for _, u := range users {
		if u.PublicKey != pub {
			kept = append(kept, u)
		}
	}
	removed := len(users) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, r.save(&UsersFile{Users: kept})
}

// ToggleByPublicKey flips Active on every subject registered under pub.
func (r *Store) ToggleByPublicKey(pub string) (int, error) {
	users, err := r.Load()
	if err != nil {
		return 0, err
	}
	toggled := 0
	for i := range users {
		if users[i].PublicKey == pub {
			users[i].Active = !users[i].Active
			toggled++
		}
	}
	if toggled == 0 {
		return 0, nil
	}
	return toggled, r.save(&UsersFile{Users: users})
}

// HasActive reports whether pub has at least one active subject.
func (r *Store) HasActive(pub string) (registered, active bool, err error) {
	users, err := r.Load()
	if err != nil {
		return false, false, err
	}
	for _, u := range users {
		if u.PublicKey == pub {
			registered = true
			if u.Active {
				active = true
			}
		}
	}
	return registered, active, nil
}

// ValidatePrivateKey checks a base58 secret key and derives its public key.
func ValidatePrivateKey(s string) (string, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("invalid base58: %w", err)
	}
	if len(raw) != 64 {
		return "", fmt.Errorf("invalid secret key length: %d", len(raw))
	}
	pk, err := solana.PrivateKeyFromBase58(s)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return pk.PublicKey().String(), nil
}

// ValidateAddress checks a base58 public key (mint, pool, wallet).
func ValidateAddress(s string) error {
	if _, err := solana.PublicKeyFromBase58(s); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}
