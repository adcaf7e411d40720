// Package keystore persists named API keys on the storage device. Key
// values are sealed with ChaCha20-Poly1305 under a key derived from the
// device secret, so a lifted SD card does not leak credentials.
package keystore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/keymasterhq/keymaster/internal/storage"
)

// KeysFile is the store file name, relative to the storage mount point.
const KeysFile = "keys.json"

// ErrNotFound means no key with the requested name exists.
var ErrNotFound = errors.New("keystore: key not found")

// FileStore is the slice of the storage surface the keystore needs.
// *storage.Manager satisfies it.
type FileStore interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// entry is the on-disk record; Value holds base64(nonce || ciphertext).
type entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type fileFormat struct {
	Keys []entry `json:"keys"`
}

// Store reads and writes the encrypted key file.
type Store struct {
	files FileStore
	aead  cipher.AEAD
}

// New derives the sealing key from the device secret with HKDF-SHA256 and
// builds the AEAD.
func New(files FileStore, secret string) (*Store, error) {
	if secret == "" {
		return nil, fmt.Errorf("keystore: device secret required")
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("keymaster keystore v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("keystore: derive key: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: init cipher: %w", err)
	}
	return &Store{files: files, aead: aead}, nil
}

// List returns the stored key names.
func (s *Store) List() ([]string, error) {
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// Get decrypts and returns the value of the named key.
func (s *Store) Get(name string) (string, error) {
	entries, err := s.load()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Name == name {
			return s.open(e.Value)
		}
	}
	return "", ErrNotFound
}

// Add stores a key, replacing any existing key with the same name.
func (s *Store) Add(name, value string) error {
	if name == "" {
		return fmt.Errorf("keystore: key name required")
	}
	entries, err := s.load()
	if err != nil {
		return err
	}

	sealed, err := s.seal(value)
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Name == name {
			entries[i].Value = sealed
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry{Name: name, Value: sealed})
	}
	return s.save(entries)
}

// Delete removes the named key. It reports whether a key was deleted.
func (s *Store) Delete(name string) (bool, error) {
	entries, err := s.load()
	if err != nil {
		return false, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	if err := s.save(kept); err != nil {
		return false, err
	}
	return true, nil
}

// load reads the key file. A missing file is an empty store; a storage
// failure propagates.
func (s *Store) load() ([]entry, error) {
	data, err := s.files.ReadFile(KeysFile)
	if err != nil {
		// Storage absence propagates; a merely missing file does not.
		if isStorageUnavailable(err) {
			return nil, err
		}
		return nil, nil
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("keystore: parse %s: %w", KeysFile, err)
	}
	return f.Keys, nil
}

func (s *Store) save(entries []entry) error {
	data, err := json.Marshal(fileFormat{Keys: entries})
	if err != nil {
		return fmt.Errorf("keystore: encode: %w", err)
	}
	if err := s.files.WriteFile(KeysFile, data); err != nil {
		return fmt.Errorf("keystore: save: %w", err)
	}
	return nil
}

// seal encrypts a value to base64(nonce || ciphertext).
func (s *Store) seal(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("keystore: nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("keystore: decode value: %w", err)
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("keystore: sealed value too short")
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("keystore: decrypt: %w", err)
	}
	return string(plain), nil
}

func isStorageUnavailable(err error) bool {
	return errors.Is(err, storage.ErrUnavailable)
}
