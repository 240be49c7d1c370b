package sqlite

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var errSealed = errors.New("cannot open sealed password")

// sealer encrypts secrets stored in the database with a local key
type sealer struct {
	key [keySize]byte
}

// loadSealer reads the key at path, creating it on first use
func loadSealer(path string) (*sealer, error) {
	s := &sealer{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != keySize {
			return nil, fmt.Errorf("key file %s has %d bytes, want %d", path, len(data), keySize)
		}
		copy(s.key[:], data)
		return s, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, s.key[:], 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return s, nil
}

// seal returns the base64 of nonce||box. The empty password stays empty.
func (s *sealer) seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *sealer) open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", errSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errSealed
	}
	return string(plain), nil
}
