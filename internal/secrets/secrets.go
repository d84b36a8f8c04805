// Package secrets resolves per-platform credential bundles by a fixed
// naming convention: DISSEM_<PLATFORM>_<NAME>, with an optional
// per-publisher variant DISSEM_<PLATFORM>_<NAME>_<PUBLISHER_ID> taking
// precedence (hyphens in the publisher ID map to underscores). A missing
// required secret is a configuration error, not a per-work failure.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissing indicates a required credential is absent from the store.
var ErrMissing = errors.New("missing credential")

// Store looks up named secrets. The default reads the process environment;
// tests inject a static map instead.
type Store struct {
	lookup func(key string) (string, bool)
}

// NewStore returns a Store backed by the process environment.
func NewStore() *Store {
	return &Store{lookup: os.LookupEnv}
}

// NewStaticStore returns a Store backed by the given map, for tests and
// dry runs.
func NewStaticStore(values map[string]string) *Store {
	return &Store{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

// Credential resolves one named secret for a platform. When publisherID is
// non-empty the per-publisher variant is tried first.
func (s *Store) Credential(platform, name, publisherID string) (string, error) {
	if publisherID != "" {
		key := keyFor(platform, name, publisherID)
		if v, ok := s.lookup(key); ok && v != "" {
			return v, nil
		}
	}
	key := keyFor(platform, name, "")
	if v, ok := s.lookup(key); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissing, key)
}

// BasicAuth resolves a username/password pair.
func (s *Store) BasicAuth(platform, publisherID string) (user, pass string, err error) {
	user, err = s.Credential(platform, "USER", publisherID)
	if err != nil {
		return "", "", err
	}
	pass, err = s.Credential(platform, "PASSWORD", publisherID)
	if err != nil {
		return "", "", err
	}
	return user, pass, nil
}

// KeyPair resolves an access-key/secret-key pair for object storage.
func (s *Store) KeyPair(platform string) (access, secret string, err error) {
	access, err = s.Credential(platform, "ACCESS_KEY", "")
	if err != nil {
		return "", "", err
	}
	secret, err = s.Credential(platform, "SECRET_KEY", "")
	if err != nil {
		return "", "", err
	}
	return access, secret, nil
}

// Token resolves a bearer token.
func (s *Store) Token(platform string) (string, error) {
	return s.Credential(platform, "TOKEN", "")
}

func keyFor(platform, name, publisherID string) string {
	parts := []string{"DISSEM", normalize(platform), normalize(name)}
	if publisherID != "" {
		parts = append(parts, normalize(publisherID))
	}
	return strings.Join(parts, "_")
}

func normalize(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}
