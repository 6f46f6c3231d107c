package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// StaticKeyStore is a simple in-memory store for token verification keys.
type StaticKeyStore struct {
	keys         map[string][]byte
	defaultKeyID string
}

// NewFromEnv builds a keystore from environment variables.
// VERIFICATION_KEYS format: "keyId:hex,keyId2:hex".
// VERIFICATION_DEFAULT_KEY_ID sets the default key id; when unset the first
// configured key is used.
func NewFromEnv() (*StaticKeyStore, error) {
	keys := make(map[string][]byte)
	first := ""
	raw := os.Getenv("VERIFICATION_KEYS")
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New("invalid VERIFICATION_KEYS format")
		}
		bytes, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, err
		}
		keys[parts[0]] = bytes
		if first == "" {
			first = parts[0]
		}
	}

	defaultID := os.Getenv("VERIFICATION_DEFAULT_KEY_ID")
	if defaultID == "" {
		defaultID = first
	}
	return &StaticKeyStore{keys: keys, defaultKeyID: defaultID}, nil
}

// NewStatic builds a keystore from explicit keys, mainly for tests and the
// single-key configuration path.
func NewStatic(defaultKeyID string, keys map[string][]byte) *StaticKeyStore {
	copied := make(map[string][]byte, len(keys))
	for id, k := range keys {
		copied[id] = append([]byte(nil), k...)
	}
	return &StaticKeyStore{keys: copied, defaultKeyID: defaultKeyID}
}

// Key returns the key for the given id.
func (s *StaticKeyStore) Key(keyID string) ([]byte, error) {
	if k, ok := s.keys[keyID]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown key id: %s", keyID)
}

// DefaultKey returns the default verification key.
func (s *StaticKeyStore) DefaultKey() ([]byte, error) {
	if s.defaultKeyID == "" {
		return nil, errors.New("no default verification key configured")
	}
	return s.Key(s.defaultKeyID)
}
