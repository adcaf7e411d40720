package keystore

import (
	"errors"
	"strings"
	"testing"

	"github.com/keymasterhq/keymaster/internal/storage"
)

// memFiles is an in-memory FileStore.
type memFiles struct {
	files       map[string][]byte
	unavailable bool
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (m *memFiles) ReadFile(name string) ([]byte, error) {
	if m.unavailable {
		return nil, storage.ErrUnavailable
	}
	data, ok := m.files[name]
	if !ok {
		return nil, errors.New("mem: not found")
	}
	return data, nil
}

func (m *memFiles) WriteFile(name string, data []byte) error {
	if m.unavailable {
		return storage.ErrUnavailable
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func newTestStore(t *testing.T, files FileStore) *Store {
	t.Helper()
	s, err := New(files, "test-device-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestAddGetRoundTrip(t *testing.T) {
	files := newMemFiles()
	s := newTestStore(t, files)

	if err := s.Add("OpenAI", "sk-abc123"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := s.Get("OpenAI")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "sk-abc123" {
		t.Errorf("Get() = %q, want %q", got, "sk-abc123")
	}
}

func TestValuesEncryptedAtRest(t *testing.T) {
	files := newMemFiles()
	s := newTestStore(t, files)

	if err := s.Add("OpenAI", "sk-abc123"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	raw := string(files.files[KeysFile])
	if strings.Contains(raw, "sk-abc123") {
		t.Errorf("plaintext value found on disk: %s", raw)
	}
	if !strings.Contains(raw, "OpenAI") {
		t.Errorf("key name missing from disk: %s", raw)
	}
}

func TestWrongSecretCannotDecrypt(t *testing.T) {
	files := newMemFiles()
	s := newTestStore(t, files)
	if err := s.Add("k", "v"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	other, err := New(files, "different-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := other.Get("k"); err == nil {
		t.Error("Get() with wrong secret should fail")
	}
}

func TestAddReplacesExisting(t *testing.T) {
	s := newTestStore(t, newMemFiles())

	if err := s.Add("k", "old"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("k", "new"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 {
		t.Errorf("List() = %v, want single entry", names)
	}
	got, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, newMemFiles())
	if err := s.Add("a", "1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("b", "2"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	deleted, err := s.Delete("a")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("Delete() = false, want true")
	}

	deleted, err = s.Delete("missing")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted {
		t.Error("Delete(missing) = true, want false")
	}

	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestMissingFileIsEmptyStore(t *testing.T) {
	s := newTestStore(t, newMemFiles())
	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List() = %v, want empty", names)
	}
	if _, err := s.Get("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStorageUnavailablePropagates(t *testing.T) {
	files := newMemFiles()
	files.unavailable = true
	s := newTestStore(t, files)

	if _, err := s.List(); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("List() error = %v, want ErrUnavailable", err)
	}
	if err := s.Add("k", "v"); !errors.Is(err, storage.ErrUnavailable) {
		t.Errorf("Add() error = %v, want ErrUnavailable", err)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := New(newMemFiles(), ""); err == nil {
		t.Error("New() with empty secret should fail")
	}
}
