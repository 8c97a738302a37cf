package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func storeContract(t *testing.T, s Store) {
	t.Helper()

	if _, err := s.Get(SlotCart); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(empty) error = %v, want ErrNotFound", err)
	}

	if err := s.Set(SlotCart, `[{"id":"1"}]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(SlotCart)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != `[{"id":"1"}]` {
		t.Errorf("Get() = %q", got)
	}

	if err := s.Set(SlotCart, `[]`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if got, _ := s.Get(SlotCart); got != `[]` {
		t.Errorf("Get() after overwrite = %q, want []", got)
	}

	if err := s.Remove(SlotCart); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := s.Get(SlotCart); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(removed) error = %v, want ErrNotFound", err)
	}
	if err := s.Remove(SlotCart); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "profile"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	storeContract(t, s)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s1, _ := NewFileStore(dir)
	if err := s1.Set(SlotUser, `{"id":"u1"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s2, _ := NewFileStore(dir)
	got, err := s2.Get(SlotUser)
	if err != nil || got != `{"id":"u1"}` {
		t.Errorf("Get() = %q, %v", got, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1 (temp files cleaned up)", len(entries))
	}
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("quota exceeded")

	s.FailWrites(boom)
	if err := s.Set("k", "v"); !errors.Is(err, boom) {
		t.Errorf("Set() error = %v, want %v", err, boom)
	}
	s.FailWrites(nil)

	s.FailReads(boom)
	if _, err := s.Get("k"); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want %v", err, boom)
	}
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemoryStore()
	type user struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	if err := SetJSON(s, SlotUser, user{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	var got user
	if err := GetJSON(s, SlotUser, &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Name != "Ana" {
		t.Errorf("Name = %q, want Ana", got.Name)
	}

	s.Set(SlotUser, "{not json")
	if err := GetJSON(s, SlotUser, &got); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON(malformed) error = %v, want decode error", err)
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(RedisConfig{URL: url, Namespace: "menu-test-" + time.Now().Format("150405.000"), TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestNewRedisStoreAddress(t *testing.T) {
	for _, url := range []string{"redis://localhost:6379/notadb", "http://localhost:6379"} {
		if _, err := NewRedisStore(RedisConfig{URL: url}); err == nil {
			t.Errorf("NewRedisStore(%q) error = nil, want parse error", url)
		}
	}

	s, err := NewRedisStore(RedisConfig{URL: "localhost:6379"})
	if err != nil {
		t.Fatalf("NewRedisStore(bare address) error = %v", err)
	}
	s.Close()
}
