// Package auth stores the secrets the remote backends need: the Supabase
// API key, the Azure Tables connection string and the Redis password.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
)

const (
	serviceName  = "tada"
	credFileName = "credentials.json"
)

// Where a secret was found.
const (
	SourceEnv     = "env"
	SourceKeyring = "keyring"
	SourceFile    = "file"
)

// GenericEnv overrides the secret of whichever backend is active.
const GenericEnv = "TADA_TOKEN"

// envNames are the backend specific overrides, checked before GenericEnv.
var envNames = map[string]string{
	"supabase": "TADA_SUPABASE_KEY",
	"azure":    "TADA_AZURE_CONNECTION_STRING",
	"redis":    "TADA_REDIS_PASSWORD",
}

// EnvName returns the backend specific environment variable, or "".
func EnvName(backend string) string { return envNames[backend] }

// NeedsSecret reports whether the backend reads a secret at all.
func NeedsSecret(backend string) bool {
	_, ok := envNames[backend]
	return ok
}

type Secret struct {
	Value     string     `json:"token"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Store handles secret storage, preferring the system keychain.
type Store struct {
	useKeyring bool
	dir        string
}

// NewStore creates a secret store that falls back to dir/credentials.json
// when the keyring is unavailable or TADA_NO_KEYRING is set.
func NewStore(dir string) *Store {
	if os.Getenv("TADA_NO_KEYRING") != "" {
		return &Store{dir: dir}
	}
	testKey := serviceName + "::probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err != nil {
		return &Store{dir: dir}
	}
	_ = keyring.Delete(serviceName, testKey)
	return &Store{useKeyring: true, dir: dir}
}

// UsingKeyring returns true if the store is using the system keyring.
func (s *Store) UsingKeyring() bool { return s.useKeyring }

// Path is the plaintext fallback file.
func (s *Store) Path() string { return filepath.Join(s.dir, credFileName) }

func key(backend string) string { return serviceName + "::" + backend }

// Get returns the secret for backend, or nil when none is configured.
func (s *Store) Get(backend string) (*Secret, error) {
	if name := EnvName(backend); name != "" {
		if v := stripBearer(os.Getenv(name)); v != "" {
			return &Secret{Value: v, Source: SourceEnv}, nil
		}
	}
	if v := stripBearer(os.Getenv(GenericEnv)); v != "" {
		return &Secret{Value: v, Source: SourceEnv}, nil
	}

	if s.useKeyring {
		data, err := keyring.Get(serviceName, key(backend))
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("keyring: %w", err)
		}
		var sec Secret
		if err := json.Unmarshal([]byte(data), &sec); err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		sec.Source = SourceKeyring
		return &sec, nil
	}

	all, err := s.readFile()
	if err != nil {
		return nil, err
	}
	sec, ok := all[backend]
	if !ok {
		return nil, nil
	}
	sec.Value = stripBearer(sec.Value)
	sec.Source = SourceFile
	return sec, nil
}

// Set stores value for backend. A JWT's exp claim fills ExpiresAt when
// expires is nil.
func (s *Store) Set(backend, value string, expires *time.Time) error {
	value = stripBearer(value)
	if value == "" {
		return errors.New("empty secret")
	}
	if expires == nil {
		if c, err := ParseClaims(value); err == nil {
			expires = c.ExpiresAt
		}
	}
	sec := &Secret{Value: value, CreatedAt: time.Now().UTC(), ExpiresAt: expires}

	if s.useKeyring {
		sec.Source = SourceKeyring
		data, err := json.Marshal(sec)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		return keyring.Set(serviceName, key(backend), string(data))
	}
	sec.Source = SourceFile
	return s.update(func(all map[string]*Secret) { all[backend] = sec })
}

// Delete removes the stored secret for backend. Deleting a missing secret
// is not an error.
func (s *Store) Delete(backend string) error {
	if s.useKeyring {
		if err := keyring.Delete(serviceName, key(backend)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring: %w", err)
		}
		return nil
	}
	return s.update(func(all map[string]*Secret) { delete(all, backend) })
}

func (s *Store) readFile() (map[string]*Secret, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*Secret{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	all := map[string]*Secret{}
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return all, nil
}

// update runs a read-modify-write of the credentials file under a lock.
func (s *Store) update(fn func(map[string]*Secret)) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	lock := flock.New(s.Path() + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	all, err := s.readFile()
	if err != nil {
		return err
	}
	fn(all)
	if len(all) == 0 {
		if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove: %w", err)
		}
		return nil
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "credentials-*.json.tmp")
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// stripBearer drops a leading "Bearer" scheme, including a bare one with
// nothing after it.
func stripBearer(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if lower == "bearer" {
		return ""
	}
	if strings.HasPrefix(lower, "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
